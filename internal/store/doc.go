// Package store provides local persistence for nyx.
//
// It contains concrete implementations of the domain storage interfaces:
//   - BoltStore, a bbolt-backed key-value store addressed by fixed names
//   - Keystore, which seals the identity seed and recovery phrase under a
//     passphrase (scrypt + ChaCha20-Poly1305) inside a KeyValueStore
//   - DirBlobStore and S3BlobStore, which hold encrypted attachments
//
// Values are encoded as CBOR. All stores are safe for concurrent use.
package store
