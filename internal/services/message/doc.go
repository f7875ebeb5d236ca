// Package message seals chat payloads for a peer, delivers them through a
// MessageStore and opens the ones that come back.
//
// Text is sealed with the peer's published X25519 key (nacl/box). Files are
// sealed with a one-time key (nacl/secretbox), uploaded to a BlobStore, and
// referenced from an ordinary sealed message:
//
//	[secure_image]<url>|<file key>|<caption>
//
// The box key is shared by both participants, so a user can open their own
// sent messages as well as the peer's.
//
// Sending fails loudly. Read receipts and typing markers are best effort:
// failures are logged and dropped. Opening failures are reported as a Result
// rather than as placeholder text, so callers decide how to render them.
package message
