// Package signaling holds the in-process signaling store. It backs tests,
// single-process use and the relay server.
package signaling
