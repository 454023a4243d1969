package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordFormatVersionCurrent = 1

// envelope is the sealed payload: the record plus its token expiry.
type envelope struct {
	record    Record
	expiresAt int64 // unix seconds
}

func encodeEnvelope(env *envelope) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)

	if len(env.record.Subject) > 255 {
		return nil, errors.New("subject too long")
	}
	buf.WriteByte(byte(len(env.record.Subject)))
	buf.WriteString(env.record.Subject)

	if len(env.record.DisplayName) > 255 {
		return nil, errors.New("display name too long")
	}
	buf.WriteByte(byte(len(env.record.DisplayName)))
	buf.WriteString(env.record.DisplayName)

	buf.WriteByte(byte(env.record.Claims))

	if len(env.record.Environment) > 255 {
		return nil, errors.New("environment tag too long")
	}
	buf.WriteByte(byte(len(env.record.Environment)))
	buf.WriteString(env.record.Environment)

	if err := binary.Write(&buf, binary.BigEndian, env.record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, env.expiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeEnvelope(data []byte) (*envelope, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, errors.New("empty session payload")
	}
	if version != recordFormatVersionCurrent {
		return nil, errors.New("unknown session format version")
	}

	env := &envelope{}

	if env.record.Subject, err = readString(r); err != nil {
		return nil, err
	}
	if env.record.DisplayName, err = readString(r); err != nil {
		return nil, err
	}

	claims, err := r.ReadByte()
	if err != nil {
		return nil, errors.New("truncated session payload")
	}
	env.record.Claims = ClaimSet(claims)

	if env.record.Environment, err = readString(r); err != nil {
		return nil, err
	}

	if err := binary.Read(r, binary.BigEndian, &env.record.CreatedAt); err != nil {
		return nil, errors.New("truncated session payload")
	}
	if err := binary.Read(r, binary.BigEndian, &env.expiresAt); err != nil {
		return nil, errors.New("truncated session payload")
	}

	if r.Len() != 0 {
		return nil, errors.New("trailing bytes in session payload")
	}

	return env, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", errors.New("truncated session payload")
	}
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", errors.New("truncated session payload")
	}
	return string(b), nil
}
