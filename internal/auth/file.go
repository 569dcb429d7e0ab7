// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// document is the on-disk layout: folded username to record.
type document map[string]*Credential

// readDocument loads the credential file. A missing file returns
// fs.ErrNotExist unwrapped so callers can tell it apart from corruption.
func readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fs.ErrNotExist
		}
		return nil, oops.Code(CodeLoadFailed).With("path", path).Wrap(err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return document{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code(CodeLoadFailed).With("path", path).Wrap(err)
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

// encodeDocument renders the document pretty-printed with a trailing newline.
func encodeDocument(doc document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, oops.Code(CodePersistFailed).Wrap(err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic replaces path with data so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code(CodePersistFailed).With("path", path).Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, ".users-*.tmp")
	if err != nil {
		return oops.Code(CodePersistFailed).With("path", path).Wrap(err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return oops.Code(CodePersistFailed).With("path", path).Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return oops.Code(CodePersistFailed).With("path", path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return oops.Code(CodePersistFailed).With("path", path).Wrap(err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return oops.Code(CodePersistFailed).With("path", path).Wrap(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return oops.Code(CodePersistFailed).With("path", path).Wrap(err)
	}
	return nil
}
