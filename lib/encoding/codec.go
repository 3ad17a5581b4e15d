// Package encoding serializes the non-DOM state a control needs to be
// reconstructed from markup: primitive field values and the ids of named
// sub-controls.
//
// Three modes are supported:
//   - Plain (default): JSON with double quotes substituted by single quotes,
//     readable in the page source and cheap to embed in an attribute
//   - Signed: msgpack + HMAC-SHA256, visible but tamper-proof
//   - Sealed: msgpack + AES-256-GCM, fully opaque
//
// Decoded values are normalized (integers to int64, floats to float64,
// nested maps to map[string]any) so a round trip compares by value
// regardless of mode.
package encoding

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors for decoding.
var (
	ErrInvalidFormat    = errors.New("encoding: invalid format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: decryption failed")
	ErrUnknownMode      = errors.New("encoding: unknown mode")
)

// Mode selects how fields are encoded.
type Mode string

const (
	Plain  Mode = "plain"
	Signed Mode = "signed"
	Sealed Mode = "sealed"
)

// ParseMode validates a mode name. The empty string means Plain.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Plain:
		return Plain, nil
	case Signed:
		return Signed, nil
	case Sealed:
		return Sealed, nil
	}
	return "", errors.Wrapf(ErrUnknownMode, "%q", s)
}

// Codec encodes and decodes field maps.
type Codec struct {
	mode Mode
	key  []byte
	gcm  cipher.AEAD
}

// NewCodec creates a codec. Keys shorter than 32 bytes are stretched with
// SHA-256; Plain ignores the key.
func NewCodec(mode Mode, key []byte) (*Codec, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	c := &Codec{mode: mode}
	if mode == Plain {
		return c, nil
	}

	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}
	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, errors.Wrap(err, "cannot create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create GCM")
	}
	c.key = key
	c.gcm = gcm
	return c, nil
}

// PlainCodec returns a codec in Plain mode.
func PlainCodec() *Codec {
	return &Codec{mode: Plain}
}

// Mode returns the codec's mode.
func (c *Codec) Mode() Mode {
	return c.mode
}

// Encode serializes fields. An empty map encodes to "".
func (c *Codec) Encode(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	if c.mode == Plain {
		return encodePlain(fields)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(fields); err != nil {
		return "", errors.Wrap(err, "cannot pack fields")
	}
	if c.mode == Sealed {
		return c.seal(buf.Bytes())
	}
	return c.sign(buf.Bytes()), nil
}

// Decode parses an encoded string. "" decodes to an empty map.
func (c *Codec) Decode(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	if c.mode == Plain {
		return decodePlain(s)
	}

	var packed []byte
	var err error
	if c.mode == Sealed {
		packed, err = c.open(s)
	} else {
		packed, err = c.verify(s)
	}
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := msgpack.Unmarshal(packed, &out); err != nil {
		return nil, errors.Wrap(ErrInvalidFormat, err.Error())
	}
	return normalizeMap(out), nil
}

// encodePlain writes JSON with quotes substituted. Literal single quotes
// are escaped first so the substitution is reversible.
func encodePlain(fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", errors.Wrap(err, "cannot marshal fields")
	}
	s := strings.ReplaceAll(string(data), "'", `\u0027`)
	return strings.ReplaceAll(s, `"`, "'"), nil
}

func decodePlain(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(strings.ReplaceAll(s, "'", `"`)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrap(ErrInvalidFormat, err.Error())
	}
	return normalizeMap(out), nil
}

// sign produces base64(data).base64(mac[:16]).
func (c *Codec) sign(data []byte) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(data)
	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:16])
}

func (c *Codec) verify(s string) ([]byte, error) {
	payload, sig, ok := strings.Cut(s, ".")
	if !ok {
		return nil, ErrInvalidFormat
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, c.key)
	mac.Write(data)
	if !hmac.Equal(got, mac.Sum(nil)[:16]) {
		return nil, ErrSignatureInvalid
	}
	return data, nil
}

func (c *Codec) seal(data []byte) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "cannot read nonce")
	}
	return base64.RawURLEncoding.EncodeToString(c.gcm.Seal(nonce, nonce, data, nil)), nil
}

func (c *Codec) open(s string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	if len(raw) < c.gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}
	nonce, ciphertext := raw[:c.gcm.NonceSize()], raw[c.gcm.NonceSize():]
	data, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return data, nil
}
