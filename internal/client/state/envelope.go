package state

// Envelope wraps a persisted store snapshot with a schema version, so a
// future layout change can tell old documents apart.
type Envelope[T any] struct {
	State   T   `json:"state"`
	Version int `json:"version"`
}
