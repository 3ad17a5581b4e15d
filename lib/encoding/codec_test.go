package encoding

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func fields() map[string]any {
	return map[string]any{
		"count": 3,
		"ratio": 0.5,
		"label": `it's "quoted" <b>`,
		"on":    true,
		"none":  nil,
		"tags":  []string{"a", "b"},
		"named": map[string]any{"title": "panel_2"},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, mode := range []Mode{Plain, Signed, Sealed} {
		t.Run(string(mode), func(t *testing.T) {
			c, err := NewCodec(mode, []byte("test-key"))
			if err != nil {
				t.Fatalf("NewCodec() error = %v", err)
			}

			encoded, err := c.Encode(fields())
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if strings.Contains(encoded, `"`) {
				t.Errorf("encoded value contains a double quote: %s", encoded)
			}

			decoded, err := c.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(NormalizeMap(fields()), decoded); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlainIsReadable(t *testing.T) {
	encoded, err := PlainCodec().Encode(map[string]any{"title": "panel_2"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if encoded != "{'title':'panel_2'}" {
		t.Errorf("Encode() = %s", encoded)
	}
}

func TestEmpty(t *testing.T) {
	c := PlainCodec()

	encoded, err := c.Encode(nil)
	if err != nil || encoded != "" {
		t.Errorf("Encode(nil) = %q, %v", encoded, err)
	}
	decoded, err := c.Decode("")
	if err != nil || len(decoded) != 0 {
		t.Errorf("Decode(\"\") = %v, %v", decoded, err)
	}
}

func TestSignatureVerificationFailure(t *testing.T) {
	c, _ := NewCodec(Signed, []byte("test-key"))
	encoded, err := c.Encode(map[string]any{"id": 123})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tampered := encoded[:len(encoded)-2] + "XX"
	if _, err := c.Decode(tampered); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Decode(tampered) error = %v, want ErrSignatureInvalid", err)
	}
}

func TestDifferentKeysCannotDecode(t *testing.T) {
	for _, mode := range []Mode{Signed, Sealed} {
		t.Run(string(mode), func(t *testing.T) {
			c1, _ := NewCodec(mode, []byte("key-one"))
			c2, _ := NewCodec(mode, []byte("key-two"))

			encoded, err := c1.Encode(map[string]any{"id": 123})
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if _, err := c2.Decode(encoded); err == nil {
				t.Error("expected error when decoding with a different key")
			}
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	tests := []struct {
		mode  Mode
		input string
		want  error
	}{
		{Plain, "{not json", ErrInvalidFormat},
		{Signed, "missing-separator", ErrInvalidFormat},
		{Sealed, "!!!", ErrInvalidFormat},
		{Sealed, "AAAA", ErrDecryptFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+tt.input, func(t *testing.T) {
			c, _ := NewCodec(tt.mode, []byte("k"))
			if _, err := c.Decode(tt.input); !errors.Is(err, tt.want) {
				t.Errorf("Decode(%q) error = %v, want %v", tt.input, err, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"", Plain, false},
		{"plain", Plain, false},
		{" Signed ", Signed, false},
		{"SEALED", Sealed, false},
		{"zip", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int", 3, int64(3)},
		{"int8", int8(-3), int64(-3)},
		{"uint16", uint16(7), int64(7)},
		{"float32", float32(0.5), float64(0.5)},
		{"string", "x", "x"},
		{"nil", nil, nil},
		{"slice", []any{1, "a"}, []any{int64(1), "a"}},
		{"loose map", map[any]any{"k": uint8(1)}, map[string]any{"k": int64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Normalize(tt.in)); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
