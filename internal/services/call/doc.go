// Package call implements the call signaling state machine.
//
// A Manager negotiates at most one WebRTC session at a time with a single
// partner. Offers, answers and ICE candidates travel through a
// domain.SignalingStore; deleting the signaling record is the universal
// "call is over" signal and both sides watch for it.
//
// # Concurrency
//
// Every mutation of the call state runs on one goroutine, fed by a queue of
// closures. Public operations, store notifications, peer connection
// callbacks and timers all post to that queue. Slow steps (device
// acquisition, store reads and writes) run on the caller's goroutine between
// posted steps, and each step re-checks a generation counter before touching
// state so a completion that belongs to a torn-down call is discarded.
//
// # States
//
//	idle -> outgoing -> connected -> idle
//	idle -> incoming -> connected -> idle
//	incoming -> idle (reject, or caller hung up)
//	outgoing | incoming | connected -> error -> idle
//
// There is no ringing timeout unless Options.RingTimeout is set.
package call
