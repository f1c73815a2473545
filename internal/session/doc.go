// Package session obtains key-exchange sessions from the remote issuer and
// owns the table mapping session ids to the symmetric keys of in-flight
// requests.
//
// Sessions are never cached or reused: every logical request acquires its own
// session, which is what lets concurrent requests proceed without sharing any
// cryptographic state. A key enters the table when its request is sent and
// leaves it the first time it is taken, so each key is consumable exactly
// once.
package session
