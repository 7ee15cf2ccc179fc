package currencycode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "standard code", input: "USD", expected: "USD"},
		{name: "native code", input: "XRP", expected: "XRP"},
		{name: "four letters", input: "RLUSD", expected: "524C555344000000000000000000000000000000"},
		{name: "already wire form", input: "524c555344000000000000000000000000000000", expected: "524C555344000000000000000000000000000000"},
		{name: "three printable non alphanumeric", input: "a$b", expected: "6124620000000000000000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEncodeRejectsInvalidLengths(t *testing.T) {
	for _, n := range []int{0, 1, 2, 21, 25, 39, 41, 64} {
		_, err := Encode(strings.Repeat("A", n))
		require.Error(t, err, "length %d must be rejected", n)
		assert.ErrorIs(t, err, ErrInvalidCurrencyCode)
	}
}

func TestEncodeRejectsBadCharset(t *testing.T) {
	_, err := Encode("TOKEN\x01")
	assert.ErrorIs(t, err, ErrInvalidCurrencyCode)

	_, err = Encode(strings.Repeat("Z", 40))
	assert.ErrorIs(t, err, ErrInvalidCurrencyCode)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "short code passes through", input: "EUR", expected: "EUR"},
		{name: "padded ascii", input: "534F4C4F00000000000000000000000000000000", expected: "SOLO"},
		{name: "iso layout", input: "0000000000000000000000005553440000000000", expected: "USD"},
		{name: "binary payload kept", input: "03A1B2C3D4E5F60718293A4B5C6D7E8F90A1B2C3", expected: "03A1B2C3D4E5F60718293A4B5C6D7E8F90A1B2C3"},
		{name: "all zero kept", input: strings.Repeat("0", 40), expected: strings.Repeat("0", 40)},
		{name: "not hex kept", input: strings.Repeat("G", 40), expected: strings.Repeat("G", 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decode(tt.input))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	var printable []byte
	for c := byte(0x20); c <= 0x7e; c++ {
		printable = append(printable, c)
	}

	// walk every length with windows over the printable alphabet
	for n := 3; n <= 20; n++ {
		for start := 0; start+n <= len(printable); start += 7 {
			s := string(printable[start : start+n])
			if strings.HasSuffix(s, "\x00") {
				continue
			}
			wire, err := Encode(s)
			require.NoError(t, err, "encode %q", s)
			assert.Equal(t, s, Decode(wire), "round trip of %q", s)
		}
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("SOLO", "534F4C4F00000000000000000000000000000000"))
	assert.True(t, Equal("USD", "USD"))
	assert.False(t, Equal("USD", "EUR"))
}

func TestIsNative(t *testing.T) {
	assert.True(t, IsNative("XRP"))
	assert.True(t, IsNative(""))
	assert.True(t, IsNative(strings.Repeat("0", 40)))
	assert.False(t, IsNative("USD"))
}
