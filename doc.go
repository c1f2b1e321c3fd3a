// Package sealdb implements a single-file, password-encrypted document
// store: an in-memory collection of JSON-like documents persisted as one
// authenticated, optionally chunked ciphertext blob on disk.
//
// # Overview
//
// A database is a set of named collections of documents. The entire database
// value is serialized, encrypted and rewritten to one file on every mutation;
// there is no incremental persistence. Encryption is authenticated (AEAD), so
// any tampering with the stored blob, and any attempt to open it with the
// wrong passphrase, fails decryption outright.
//
// # On-Disk Format
//
// The file is one encrypted container: a JSON metadata block (salt,
// algorithm, chunking parameters) followed by one or more encrypted chunks.
// Buffers larger than the configured chunk size are split into contiguous
// chunks; each chunk is encrypted under its own key, derived from the
// passphrase, the shared salt and a per-chunk context string, with its own
// random IV. Lengths on the wire are big-endian.
//
// # Supported Algorithms
//
//   - AES-256-GCM (default)
//   - ChaCha20-Poly1305
//
// Keys are derived from the passphrase with PBKDF2-SHA256 over 100,000
// iterations. The cost is intentional and paid on every operation.
//
// # Basic Usage
//
//	base, _ := memfs.NewFS()
//	store, err := sealdb.Create(base, "/app.sdb", "passphrase", sealdb.DefaultOptions())
//	if err != nil {
//	    panic(err)
//	}
//
//	store.CreateCollection("users")
//	store.Insert("users", "", map[string]any{"name": "ada", "age": 36})
//
//	filter, _ := sealdb.ParseFilter(map[string]any{"age": map[string]any{"$gte": 21}})
//	result, _ := store.Find("users", sealdb.FindOptions{Filter: filter})
//
// Queries support $and/$or/$not logical keys, dot-path field addressing and
// the operators $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin, $regex, $exists.
// Updates support direct field merges and the $set/$unset/$inc modifiers;
// $mul, $push, $pull and $addToSet are recognized but unimplemented and fail
// fast.
//
// # Concurrency
//
// A Store performs no internal locking. The caller must guarantee at most one
// logical writer at a time.
package sealdb
