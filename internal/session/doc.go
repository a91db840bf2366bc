// Package session correlates requests with their asynchronous replies.
//
// A module issuing a request registers an arbitrary context under the
// request id of the outgoing envelope. When the reply arrives (carrying the
// same request id) the context is restored exactly once and forgotten.
//
//	sessions := session.New(session.WithTTL(10 * time.Minute))
//	sessions.Register(request, "chart:living-room")
//	...
//	if ctx, ok := sessions.Restore(reply); ok { ... }
//
// Unanswered requests would otherwise stay registered forever, so the store
// can be bounded by entry count (oldest evicted first) and by age.
package session
