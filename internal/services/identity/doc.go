// Package identity manages the local identity: creating it from a fresh
// recovery phrase, restoring it from a phrase or raw hex seed, sealing it
// under a passphrase, and publishing the public profile peers use to find
// our key.
//
// It also owns the blocked-user list, which is kept in the local store and
// mirrored into the published profile.
package identity
