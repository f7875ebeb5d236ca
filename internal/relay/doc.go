// Package relay carries signaling records, profiles and chat documents
// between nyx clients over HTTP.
//
// The relay is an untrusted rendezvous point. It stores call records, their
// ICE candidates, public profiles and conversations of sealed messages, and
// never sees message plaintext or private keys. Everything lives in memory
// for the lifetime of the process.
//
// HTTP API
//
//	PUT    /calls/{id}                       create or replace a record
//	PATCH  /calls/{id}                       merge a CallUpdate
//	GET    /calls/{id}                       fetch a record
//	DELETE /calls/{id}                       delete a record
//	POST   /calls/{id}/candidates/{side}     append an ICE candidate
//	PUT    /users/{id}                       publish a profile
//	GET    /users/{id}                       look up a profile
//	GET    /users/{id}/conversations         list a user's conversations
//	PUT    /conversations/{id}               open a conversation
//	GET    /conversations/{id}/messages      list messages
//	POST   /conversations/{id}/messages      send a message
//	POST   /conversations/{id}/read          mark messages read
//	PUT    /conversations/{id}/typing/{user} set or clear typing
//	PUT    /messages/{id}/reactions/{user}   set or clear a reaction
//
// Watches are websocket endpoints. Each text frame is one JSON change:
//
//	GET /watch/calls/{id}                    CallChange
//	GET /watch/incoming/{callee}             CallChange
//	GET /watch/calls/{id}/candidates/{side}  CandidateChange
//	GET /watch/conversations/{id}/messages   MessageChange
//	GET /watch/users/{id}/conversations      ConversationChange
//
// Client implements domain.SignalingStore, domain.MessageStore and
// domain.Directory against this API; Server serves it from a
// signaling.MemoryStore.
package relay
