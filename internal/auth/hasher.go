// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Scheme names a password hashing scheme.
type Scheme string

// Supported schemes.
const (
	SchemeSHA256   Scheme = "sha256"
	SchemeArgon2id Scheme = "argon2id"
)

const argon2Prefix = "$argon2id$"

// argon2id parameters for newly created hashes.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// Upper bounds accepted from stored argon2id hashes. Memory is in KiB.
const (
	maxArgon2Time   = 16
	maxArgon2Memory = 256 * 1024
)

// PasswordHasher produces and checks password hashes.
type PasswordHasher interface {
	// Hash produces a stored hash for password.
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. Malformed hashes are errors.
	Verify(password, hash string) (bool, error)
}

// NewHasher returns the hasher for a scheme. New hashes use that scheme and
// verification accepts every supported format.
func NewHasher(scheme Scheme) (PasswordHasher, error) {
	switch scheme {
	case SchemeSHA256, "":
		return &MultiHasher{primary: SHA256Hasher{}}, nil
	case SchemeArgon2id:
		return &MultiHasher{primary: Argon2idHasher{}}, nil
	default:
		return nil, oops.Code(CodeInvalidHash).With("scheme", scheme).Errorf("unknown password hash scheme")
	}
}

// SHA256Hasher is the legacy scheme: lowercase hex SHA-256 of the raw
// password with no salt. Identical passwords produce identical hashes.
type SHA256Hasher struct{}

// Hash implements PasswordHasher.
func (SHA256Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", oops.Code(CodeEmptyPassword).Errorf("password cannot be empty")
	}
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

// Verify implements PasswordHasher. The digest comparison is constant-time.
func (SHA256Hasher) Verify(password, hash string) (bool, error) {
	want, err := hex.DecodeString(strings.ToLower(hash))
	if err != nil || len(want) != sha256.Size {
		return false, oops.Code(CodeInvalidHash).Errorf("malformed sha256 hash")
	}
	got := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(got[:], want) == 1, nil
}

// Argon2idHasher stores salted argon2id hashes in PHC string format.
type Argon2idHasher struct{}

// Hash implements PasswordHasher.
func (Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", oops.Code(CodeEmptyPassword).Errorf("password cannot be empty")
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2(encoded string) (argon2Params, error) {
	var p argon2Params
	invalid := oops.Code(CodeInvalidHash)

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[1] != "argon2id" {
		return p, invalid.Errorf("malformed argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return p, invalid.Wrap(err)
	}
	if version != argon2.Version {
		return p, invalid.With("version", version).Errorf("unsupported argon2 version")
	}

	var threads uint32
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads); err != nil {
		return p, invalid.Wrap(err)
	}
	if p.time == 0 || p.time > maxArgon2Time {
		return p, invalid.With("time", p.time).Errorf("argon2 time cost out of range")
	}
	if p.memory == 0 || p.memory > maxArgon2Memory {
		return p, invalid.With("memory", p.memory).Errorf("argon2 memory cost out of range")
	}
	if threads == 0 || threads > 255 {
		return p, invalid.With("threads", threads).Errorf("argon2 parallelism out of range")
	}
	p.threads = uint8(threads)

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return p, invalid.Wrap(err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return p, invalid.Wrap(err)
	}
	if len(p.key) == 0 || len(p.key) > 1024 {
		return p, invalid.With("key_len", len(p.key)).Errorf("argon2 key length out of range")
	}
	return p, nil
}

// Verify implements PasswordHasher.
func (Argon2idHasher) Verify(password, encoded string) (bool, error) {
	p, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(got, p.key) == 1, nil
}

// MultiHasher hashes with its primary scheme and verifies any supported format.
type MultiHasher struct {
	primary PasswordHasher
}

// Hash implements PasswordHasher.
func (m *MultiHasher) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

// Verify implements PasswordHasher, dispatching on the stored format.
func (m *MultiHasher) Verify(password, hash string) (bool, error) {
	if strings.HasPrefix(hash, argon2Prefix) {
		return Argon2idHasher{}.Verify(password, hash)
	}
	return SHA256Hasher{}.Verify(password, hash)
}

// Scheme reports the scheme used for new hashes.
func (m *MultiHasher) Scheme() Scheme {
	if _, ok := m.primary.(Argon2idHasher); ok {
		return SchemeArgon2id
	}
	return SchemeSHA256
}
