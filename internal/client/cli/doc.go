// Package cli provides the interactive blog command-line client.
//
// It wires configuration, local state, the API client and the session,
// post, comment and theme stores, and runs a REPL over them. On start the
// saved session and theme are restored and the profile is reloaded from
// the token.
//
// A 401 from any request logs the session out; the next prompt then asks
// for credentials again. Commands that change data require a session and
// ask for a login first when there is none.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
