// Package crypto exposes the primitives nyx is built on.
//
// Contents
//
//   - Recovery phrases and seed derivation (GeneratePhrase, SeedFromPhrase,
//     SeedFromHex, SeedFromCredential, HexSeed)
//   - Curve25519 keypairs and session identifiers derived from a seed
//     (KeypairFromSeed, SessionIDFromSeed, DeriveIdentity)
//   - Authenticated public-key message encryption (EncryptMessage,
//     DecryptMessage) and symmetric file encryption (EncryptFile, DecryptFile)
//
// # Notes
//
// Derivation is deterministic: the same phrase or seed always yields the same
// keypair and session id. Errors never come with partial key material.
package crypto
