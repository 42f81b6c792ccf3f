package encrypt

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Length(t *testing.T) {
	t.Parallel()

	assert.Len(t, DeriveKey([]byte("password")), KeySize)
	assert.Len(t, DeriveKey([]byte("")), KeySize)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DeriveKey([]byte("hunter2")), DeriveKey([]byte("hunter2")))
	assert.NotEqual(t, DeriveKey([]byte("hunter2")), DeriveKey([]byte("hunter3")))
}

// Known answers computed outside Go (Python hashlib.pbkdf2_hmac).
func TestDeriveKey_KnownAnswers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		password string
		key      string
	}{
		{"hunter2", "22c4015eb3754947a83ddf5fcabd26a0f1cde4c8f01331d1f63277418f0c603a"},
		{"p\u00e4ssw\u00f6rd", "29099c58610cdc001382e43eb759a5bfbba1fbc2ea2c1413ed93efa830545c28"},
		{"", "5afbea1f469d2abbf7e2f606f58edfeb290817ba2bd505d37ccd705f156bb397"},
	}

	for _, tt := range tests {
		want, err := hex.DecodeString(tt.key)
		require.NoError(t, err)
		assert.Equal(t, want, DeriveKey([]byte(tt.password)), "password %q", tt.password)
	}
}

func TestDeriveKey_UTF8Bytes(t *testing.T) {
	t.Parallel()

	// NFC and NFD forms are different byte strings and must give different keys
	nfc := []byte("caf\u00e9")
	nfd := []byte("cafe\u0301")

	assert.NotEqual(t, DeriveKey(nfc), DeriveKey(nfd))
}
