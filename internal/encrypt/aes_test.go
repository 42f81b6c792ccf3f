package encrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jorgepascosoto/neo-backup-decrypt/internal/errors"
)

// generateValidKey creates a valid 32-byte key for testing
func generateValidKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func testNonce() []byte {
	return []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
}

func encryptBytes(t *testing.T, c *AESGCM, plaintext []byte) []byte {
	t.Helper()
	r, err := c.Encrypt(bytes.NewReader(plaintext))
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func decryptBytes(c *AESGCM, data []byte) ([]byte, error) {
	r, err := c.Decrypt(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func TestNewAESGCM_ValidKey(t *testing.T) {
	t.Parallel()

	key := generateValidKey()
	c, err := NewAESGCM(key, testNonce())

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, key, c.key)
	assert.Equal(t, testNonce(), c.nonce)
}

func TestNewAESGCM_InvalidKeySize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		keySize int
	}{
		{"empty key", 0},
		{"too short 16 bytes", 16},
		{"too short 31 bytes", 31},
		{"too long 33 bytes", 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := NewAESGCM(make([]byte, tt.keySize), testNonce())

			assert.Error(t, err)
			assert.Nil(t, c)
			assert.Contains(t, err.Error(), "key must be exactly 32 bytes")
		})
	}
}

func TestNewAESGCM_EmptyNonce(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(generateValidKey(), nil)

	assert.Nil(t, c)
	assert.True(t, errors.Is(err, apperrors.ErrIntegrity))
}

func TestAESGCM_NameAndExtension(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(generateValidKey(), testNonce())
	require.NoError(t, err)

	assert.Equal(t, "AES/GCM/NoPadding", c.Name())
	assert.Equal(t, ".enc", c.Extension())
}

func TestAESGCM_EncryptDecrypt_SmallData(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(generateValidKey(), testNonce())
	require.NoError(t, err)

	original := []byte("hello")
	encrypted := encryptBytes(t, c, original)

	// ciphertext plus trailing tag, no nonce prefix
	assert.Len(t, encrypted, len(original)+TagSize)
	assert.NotEqual(t, original, encrypted[:len(original)])

	decrypted, err := decryptBytes(c, encrypted)
	require.NoError(t, err)
	assert.Equal(t, original, decrypted)
}

func TestAESGCM_EncryptDecrypt_EmptyData(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(generateValidKey(), testNonce())
	require.NoError(t, err)

	encrypted := encryptBytes(t, c, []byte{})
	assert.Len(t, encrypted, TagSize)

	decrypted, err := decryptBytes(c, encrypted)
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestAESGCM_EncryptDecrypt_LargeBinaryData(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(generateValidKey(), testNonce())
	require.NoError(t, err)

	original := make([]byte, 1024*1024)
	_, err = rand.Read(original)
	require.NoError(t, err)

	decrypted, err := decryptBytes(c, encryptBytes(t, c, original))
	require.NoError(t, err)
	assert.Equal(t, original, decrypted)
}

func TestAESGCM_Decrypt_StandardGCMLayout(t *testing.T) {
	t.Parallel()

	key := generateValidKey()
	nonce := testNonce()

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	sealed := gcm.Seal(nil, nonce, []byte("written by another implementation"), nil)

	c, err := NewAESGCM(key, nonce)
	require.NoError(t, err)

	decrypted, err := decryptBytes(c, sealed)
	require.NoError(t, err)
	assert.Equal(t, "written by another implementation", string(decrypted))
}

func TestAESGCM_NonStandardNonceLength(t *testing.T) {
	t.Parallel()

	nonce := make([]byte, 16)
	for i := range nonce {
		nonce[i] = byte(0xF0 + i)
	}

	c, err := NewAESGCM(generateValidKey(), nonce)
	require.NoError(t, err)

	original := []byte("sixteen byte nonce")
	decrypted, err := decryptBytes(c, encryptBytes(t, c, original))
	require.NoError(t, err)
	assert.Equal(t, original, decrypted)

	// same key, 12 byte nonce prefix must not open it
	other, err := NewAESGCM(generateValidKey(), nonce[:12])
	require.NoError(t, err)
	_, err = decryptBytes(other, encryptBytes(t, c, original))
	assert.True(t, errors.Is(err, apperrors.ErrIntegrity))
}

func TestAESGCM_DecryptWrongKey(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(DeriveKey([]byte("correct")), testNonce())
	require.NoError(t, err)
	encrypted := encryptBytes(t, c, []byte("secret data"))

	wrong, err := NewAESGCM(DeriveKey([]byte("wrong")), testNonce())
	require.NoError(t, err)

	r, err := wrong.Decrypt(bytes.NewReader(encrypted))
	assert.Nil(t, r, "no plaintext may be returned on tag failure")
	assert.True(t, errors.Is(err, apperrors.ErrIntegrity))
}

func TestAESGCM_DecryptWrongNonce(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(generateValidKey(), testNonce())
	require.NoError(t, err)
	encrypted := encryptBytes(t, c, []byte("secret data"))

	nonce := testNonce()
	nonce[0] ^= 0xFF
	other, err := NewAESGCM(generateValidKey(), nonce)
	require.NoError(t, err)

	_, err = decryptBytes(other, encrypted)
	assert.True(t, errors.Is(err, apperrors.ErrIntegrity))
}

func TestAESGCM_DecryptTamperedData(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(generateValidKey(), testNonce())
	require.NoError(t, err)
	encrypted := encryptBytes(t, c, []byte("This data will be tampered with"))

	tests := []struct {
		name   string
		offset int
	}{
		{"ciphertext byte", 0},
		{"tag byte", len(encrypted) - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tampered := append([]byte(nil), encrypted...)
			tampered[tt.offset] ^= 0xFF

			_, err := decryptBytes(c, tampered)
			assert.True(t, errors.Is(err, apperrors.ErrIntegrity))
		})
	}
}

func TestAESGCM_DecryptShorterThanTag(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(generateValidKey(), testNonce())
	require.NoError(t, err)

	for _, size := range []int{0, 1, TagSize - 1} {
		_, err := decryptBytes(c, make([]byte, size))
		assert.True(t, errors.Is(err, apperrors.ErrIntegrity), "size %d", size)
		assert.Contains(t, err.Error(), "shorter than the 16 byte tag")
	}
}

func TestAESGCM_DecryptReadError(t *testing.T) {
	t.Parallel()

	c, err := NewAESGCM(generateValidKey(), testNonce())
	require.NoError(t, err)

	_, err = c.Decrypt(&failingReader{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read ciphertext")
}

type failingReader struct{}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestConstants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 32, KeySize)
	assert.Equal(t, 16, TagSize)
	assert.Equal(t, ".enc", Extension)
	assert.Equal(t, "AES/GCM/NoPadding", CipherAESGCM)
}

func BenchmarkAESGCM_Decrypt_SmallData(b *testing.B) {
	c, _ := NewAESGCM(generateValidKey(), testNonce())
	r, _ := c.Encrypt(bytes.NewReader([]byte("Small test data for benchmarking")))
	encrypted, _ := io.ReadAll(r)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dr, _ := c.Decrypt(bytes.NewReader(encrypted))
		_, _ = io.ReadAll(dr)
	}
}

// Sealed by OpenSSL EVP_aes_256_gcm with the key derived from "hunter2" and
// the IV bytes of the signed list [-128 -1 0 1 127 -42 17 -99 64 -64 5 -5].
const opensslSealed = "44ac797fe1fb41e72ac55bf1d5ff9fc1087368a4463a3196fb7a338f250be2da6d1bc97b1c5972d4c296fa17fc7e200aacdb8875cb8da8"

func TestAESGCM_DecryptOpenSSLOutput(t *testing.T) {
	t.Parallel()

	sealed, err := hex.DecodeString(opensslSealed)
	require.NoError(t, err)
	nonce := []byte{0x80, 0xff, 0x00, 0x01, 0x7f, 0xd6, 0x11, 0x9d, 0x40, 0xc0, 0x05, 0xfb}

	c, err := NewAESGCM(DeriveKey([]byte("hunter2")), nonce)
	require.NoError(t, err)

	rc, err := c.Decrypt(bytes.NewReader(sealed))
	require.NoError(t, err)
	defer rc.Close()
	plaintext, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "Neo Backup fixture sealed with OpenSSL\n", string(plaintext))

	c, err = NewAESGCM(DeriveKey([]byte("hunter3")), nonce)
	require.NoError(t, err)
	_, err = c.Decrypt(bytes.NewReader(sealed))
	assert.True(t, errors.Is(err, apperrors.ErrIntegrity))
}
