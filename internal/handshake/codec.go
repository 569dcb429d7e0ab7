// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handshake

import (
	"encoding/base64"
	"encoding/binary"
	"unicode/utf8"

	"github.com/samber/oops"
)

// MaxSignatureLength bounds the encoded signature in bytes.
const MaxSignatureLength = 32767

// MarshalBinary encodes the message as an 8-byte big-endian timestamp, a
// uvarint byte length and the UTF-8 signature.
func (m Message) MarshalBinary() ([]byte, error) {
	if len(m.Signature) > MaxSignatureLength {
		return nil, oops.Code(CodeMalformed).
			With("length", len(m.Signature)).
			Errorf("signature exceeds %d bytes", MaxSignatureLength)
	}
	if !utf8.ValidString(m.Signature) {
		return nil, oops.Code(CodeMalformed).Errorf("signature is not valid UTF-8")
	}

	buf := make([]byte, 8, 8+binary.MaxVarintLen32+len(m.Signature))
	binary.BigEndian.PutUint64(buf, uint64(m.Timestamp))
	buf = binary.AppendUvarint(buf, uint64(len(m.Signature)))
	buf = append(buf, m.Signature...)
	return buf, nil
}

// UnmarshalBinary decodes a frame produced by MarshalBinary. Truncated
// frames, oversized strings and trailing bytes are rejected.
func (m *Message) UnmarshalBinary(data []byte) error {
	malformed := oops.Code(CodeMalformed)
	if len(data) < 8 {
		return malformed.With("length", len(data)).Errorf("frame too short")
	}
	ts := int64(binary.BigEndian.Uint64(data[:8]))

	n, read := binary.Uvarint(data[8:])
	if read <= 0 {
		return malformed.Errorf("invalid signature length prefix")
	}
	if n > MaxSignatureLength {
		return malformed.With("length", n).Errorf("signature exceeds %d bytes", MaxSignatureLength)
	}
	rest := data[8+read:]
	if uint64(len(rest)) != n {
		return malformed.With("declared", n).With("actual", len(rest)).Errorf("signature length mismatch")
	}
	if !utf8.Valid(rest) {
		return malformed.Errorf("signature is not valid UTF-8")
	}

	m.Timestamp = ts
	m.Signature = string(rest)
	return nil
}

// EncodeText renders a message for line-based transports.
func EncodeText(m Message) (string, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeText parses a message produced by EncodeText.
func DecodeText(s string) (Message, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Message{}, oops.Code(CodeMalformed).Wrap(err)
	}
	var m Message
	if err := m.UnmarshalBinary(data); err != nil {
		return Message{}, err
	}
	return m, nil
}
