// Package memzero wipes key material once it is no longer needed.
package memzero

import "runtime"

// Zero overwrites b with zeros.
func Zero(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}

// Key wipes a 32-byte key or seed in place.
func Key(k *[32]byte) {
	if k == nil {
		return
	}
	Zero(k[:])
}
