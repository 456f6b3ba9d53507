// Package session implements the per-connection subscription state
// machine.
//
// A Session interprets inbound subscribe/unsubscribe commands, attaches
// its outbound queue to feeds through the registry, and guarantees
// exactly-once cleanup of every attachment on teardown. All validation
// happens here before feed state is touched; the three client-facing
// failures (unsupported symbol, not subscribed, malformed message) are
// connection-local ERROR messages and never close the connection.
package session
