// Package auth verifies signed requests and turns them into caller
// identities.
//
// A caller signs "timestamp|nonce|METHOD|path|sha256(body)" with an SSH
// ed25519 key. The identity is the SHA-256 of the marshaled public key, so
// the same key always maps to the same models.Identity.
package auth
