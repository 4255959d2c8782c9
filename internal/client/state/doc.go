// Package state persists small client documents (the session, the theme)
// across runs. Values are stored as JSON under a string key, so a store
// can restore exactly what it saved.
//
// SQLiteRepository is the on-disk implementation; MemoryRepository is used
// when persistence is disabled and in tests.
package state
