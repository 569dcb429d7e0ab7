// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/loginguard/internal/world"
	"github.com/holomush/loginguard/pkg/errutil"
)

// Default write retry policy.
const (
	DefaultWriteAttempts = 3
	DefaultWriteDelay    = 50 * time.Millisecond
)

// Store is the credential store. All mutations are serialized and each one
// rewrites the backing file.
type Store struct {
	path   string
	hasher PasswordHasher
	logger *slog.Logger
	now    func() time.Time

	writeAttempts uint64
	writeDelay    time.Duration

	mu      sync.RWMutex
	records map[string]*Credential

	// writeMu orders file writes; each write snapshots the latest state.
	writeMu sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHasher sets the password hasher.
func WithHasher(h PasswordHasher) StoreOption {
	return func(s *Store) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithClock overrides the time source used for registration and login stamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWriteRetry sets how many times a failed file write is attempted and
// the pause between attempts.
func WithWriteRetry(attempts uint64, delay time.Duration) StoreOption {
	return func(s *Store) {
		if attempts > 0 {
			s.writeAttempts = attempts
		}
		if delay >= 0 {
			s.writeDelay = delay
		}
	}
}

// NewStore creates an empty store backed by path. Call Load to read the file.
func NewStore(path string, opts ...StoreOption) (*Store, error) {
	if path == "" {
		return nil, oops.Code(CodeLoadFailed).Errorf("credential file path cannot be empty")
	}
	s := &Store{
		path:          path,
		hasher:        &MultiHasher{primary: SHA256Hasher{}},
		logger:        slog.New(slog.DiscardHandler),
		now:           time.Now,
		writeAttempts: DefaultWriteAttempts,
		writeDelay:    DefaultWriteDelay,
		records:       make(map[string]*Credential),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory records with the file contents and returns the
// number of records loaded. A missing file starts an empty store and writes
// an empty document. An unreadable or corrupt file is logged and the store
// starts empty; the file is left untouched until the next mutation.
func (s *Store) Load(ctx context.Context) int {
	doc, err := readDocument(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("credential file not found, creating", "path", s.path)
		s.replace(document{})
		//nolint:errcheck // logged inside persist
		s.persist(ctx)
		return 0
	case err != nil:
		errutil.LogError(s.logger, "credential file unreadable, starting empty", err)
		s.replace(document{})
		return 0
	}

	loaded := make(document, len(doc))
	for key, rec := range doc {
		if rec == nil || rec.PasswordHash == "" {
			s.logger.Warn("skipping malformed credential record", "key", key)
			continue
		}
		if rec.Username == "" {
			rec.Username = key
		}
		loaded[Fold(key)] = rec
	}
	s.replace(loaded)
	s.logger.Info("credentials loaded", "path", s.path, "count", len(loaded))
	return len(loaded)
}

func (s *Store) replace(doc document) {
	s.mu.Lock()
	s.records = doc
	s.mu.Unlock()
}

// Register creates a record for username.
func (s *Store) Register(ctx context.Context, username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	// Hash before taking the lock; argon2id is deliberately slow.
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	key := Fold(username)
	s.mu.Lock()
	if _, exists := s.records[key]; exists {
		s.mu.Unlock()
		return ErrAlreadyRegistered(username)
	}
	s.records[key] = &Credential{
		Username:         username,
		PasswordHash:     hash,
		RegistrationDate: s.now().UnixMilli(),
	}
	s.mu.Unlock()

	s.logger.Info("user registered", "username", username)
	//nolint:errcheck // logged inside persist; memory stays authoritative
	s.persist(ctx)
	return nil
}

// Authenticate checks password for username and stamps the login time on success.
func (s *Store) Authenticate(ctx context.Context, username, password string) error {
	key := Fold(username)

	s.mu.RLock()
	rec, ok := s.records[key]
	var hash string
	if ok {
		hash = rec.PasswordHash
	}
	s.mu.RUnlock()

	if !ok {
		return ErrUnknownUser(username)
	}

	match, err := s.hasher.Verify(password, hash)
	if err != nil {
		errutil.LogError(s.logger, "stored password hash is malformed", oops.With("username", username).Wrap(err))
		return ErrInvalidCredentials(username)
	}
	if !match {
		return ErrInvalidCredentials(username)
	}

	s.mu.Lock()
	if rec, ok := s.records[key]; ok {
		rec.LastLogin = s.now().UnixMilli()
	}
	s.mu.Unlock()

	//nolint:errcheck // logged inside persist
	s.persist(ctx)
	return nil
}

// ChangePassword replaces the stored hash. The caller must already have
// re-authenticated the current password.
func (s *Store) ChangePassword(ctx context.Context, username, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	s.mu.Lock()
	rec, ok := s.records[Fold(username)]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownUser(username)
	}
	rec.PasswordHash = hash
	s.mu.Unlock()

	s.logger.Info("password changed", "username", username)
	//nolint:errcheck // logged inside persist
	s.persist(ctx)
	return nil
}

// SavePosition records where username last was.
func (s *Store) SavePosition(ctx context.Context, username string, pos world.Position) error {
	s.mu.Lock()
	rec, ok := s.records[Fold(username)]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownUser(username)
	}
	rec.LastPosition = &pos
	s.mu.Unlock()

	s.logger.Debug("position saved", "username", username, "position", pos.String())
	//nolint:errcheck // logged inside persist
	s.persist(ctx)
	return nil
}

// Position returns the last saved position for username.
func (s *Store) Position(username string) (world.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[Fold(username)]
	if !ok || rec.LastPosition == nil {
		return world.Position{}, false
	}
	return *rec.LastPosition, true
}

// IsRegistered reports whether username has a record.
func (s *Store) IsRegistered(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[Fold(username)]
	return ok
}

// Get returns a copy of the record for username.
func (s *Store) Get(username string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[Fold(username)]
	if !ok {
		return Credential{}, false
	}
	return rec.clone(), true
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Registered: len(s.records)}
}

// Flush writes the current state to disk and reports any failure.
func (s *Store) Flush(ctx context.Context) error {
	return s.persist(ctx)
}

// snapshot encodes the current records.
func (s *Store) snapshot() ([]byte, error) {
	s.mu.RLock()
	doc := make(document, len(s.records))
	for k, rec := range s.records {
		c := rec.clone()
		doc[k] = &c
	}
	s.mu.RUnlock()
	return encodeDocument(doc)
}

// persist rewrites the backing file, retrying transient failures.
func (s *Store) persist(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := s.snapshot()
	if err != nil {
		errutil.LogWarn(s.logger, "failed to encode credentials", err)
		return err
	}

	// Shutdown flushes run on an expiring context; the write still completes.
	writeCtx := context.WithoutCancel(ctx)
	backoff := retry.WithMaxRetries(s.writeAttempts-1, retry.NewConstant(max(s.writeDelay, time.Nanosecond)))
	err = retry.Do(writeCtx, backoff, func(_ context.Context) error {
		if werr := writeFileAtomic(s.path, data); werr != nil {
			return retry.RetryableError(werr)
		}
		return nil
	})
	if err != nil {
		errutil.LogWarn(s.logger, "failed to persist credentials, keeping in-memory state", err)
		return oops.Code(CodePersistFailed).With("path", s.path).Wrap(err)
	}
	return nil
}
