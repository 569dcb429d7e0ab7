// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/loginguard/internal/handshake"
	"github.com/holomush/loginguard/pkg/errutil"
)

func TestSign_ProducesVerifiableToken(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"sign", "Alice", "--secret", "s3cret"})

	require.NoError(t, cmd.Execute())

	msg, err := handshake.DecodeText(strings.TrimSpace(buf.String()))
	require.NoError(t, err)

	v := handshake.NewVerifier(handshake.Settings{AllowBypass: true, SharedSecret: "s3cret"}, nil)
	assert.NoError(t, v.Verify("alice", msg))
	assert.Error(t, v.Verify("bob", msg))
}

func TestRunSign_UsesClock(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cmd := NewSignCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	require.NoError(t, runSign(cmd, &signConfig{secret: "k", now: func() time.Time { return at }}, "alice"))

	msg, err := handshake.DecodeText(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), msg.Timestamp)
	assert.Equal(t, handshake.Sign("alice", at.UnixMilli(), "k"), msg.Signature)
}

func TestSign_NoSecretConfigured(t *testing.T) {
	configFile = filepath.Join(t.TempDir(), "absent.yaml")
	t.Cleanup(func() { configFile = "" })

	cmd := NewSignCmd()
	cmd.SetOut(new(bytes.Buffer))

	err := runSign(cmd, &signConfig{now: time.Now}, "alice")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, handshake.CodeNoSecret)
}

func TestSign_SecretFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	configFile = filepath.Join(dir, "config.yaml")
	t.Cleanup(func() { configFile = "" })
	writeFile(t, configFile, "shared_secret: from-file\n")

	cmd := NewSignCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	require.NoError(t, runSign(cmd, &signConfig{now: time.Now}, "alice"))

	msg, err := handshake.DecodeText(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	v := handshake.NewVerifier(handshake.Settings{AllowBypass: true, SharedSecret: "from-file"}, nil)
	assert.NoError(t, v.Verify("alice", msg))
}
