// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth owns the persistent credential store.
//
// # Records
//
// One Credential exists per case-folded username. The display casing used at
// registration is kept in the record. Records are created by Store.Register,
// their hash changes only through Store.ChangePassword, and they are never
// deleted.
//
// # Persistence
//
// The whole store is one pretty-printed JSON document rewritten after every
// mutation through a temporary file and a rename. A write that still fails
// after retries is logged and the in-memory state stays authoritative.
//
// # Hashing
//
// The default scheme is an unsalted SHA-256 hex digest, kept for
// compatibility with existing credential files. It is weak against offline
// attack; deployments that do not need that compatibility should set the
// argon2id scheme. Verification accepts either format regardless of which
// scheme new hashes use.
package auth
