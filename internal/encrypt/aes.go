package encrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	apperrors "github.com/jorgepascosoto/neo-backup-decrypt/internal/errors"
)

const (
	KeySize   = 32 // AES-256
	TagSize   = 16 // GCM tag, trailing bytes of every .enc file
	Extension = ".enc"

	CipherAESGCM = "AES/GCM/NoPadding"
)

// AESGCM decrypts the files of one backup folder. The nonce comes from the
// folder metadata and is shared by all files of that folder.
type AESGCM struct {
	key   []byte
	nonce []byte
}

func NewAESGCM(key, nonce []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be exactly %d bytes, got %d", KeySize, len(key))
	}
	if len(nonce) == 0 {
		return nil, fmt.Errorf("%w: nonce is empty", apperrors.ErrIntegrity)
	}
	return &AESGCM{key: key, nonce: nonce}, nil
}

func (c *AESGCM) Name() string {
	return CipherAESGCM
}

func (c *AESGCM) Extension() string {
	return Extension
}

func (c *AESGCM) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	// The metadata decides the nonce length; 12 is only the common case.
	var gcm cipher.AEAD
	if len(c.nonce) == 12 {
		gcm, err = cipher.NewGCM(block)
	} else {
		gcm, err = cipher.NewGCMWithNonceSize(block, len(c.nonce))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GCM: %v", apperrors.ErrIntegrity, err)
	}
	return gcm, nil
}

// Decrypt reads ciphertext||tag from r and returns the plaintext. Nothing is
// returned unless the tag verifies.
func (c *AESGCM) Decrypt(r io.Reader) (io.ReadCloser, error) {
	gcm, err := c.aead()
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read ciphertext: %w", err)
	}

	if len(data) < TagSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the %d byte tag", apperrors.ErrIntegrity, len(data), TagSize)
	}

	// Open takes ciphertext with the tag appended, which is the file layout.
	plaintext, err := gcm.Open(nil, c.nonce, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrIntegrity, err)
	}

	return io.NopCloser(bytes.NewReader(plaintext)), nil
}

// Encrypt produces the same layout Decrypt consumes.
func (c *AESGCM) Encrypt(r io.Reader) (io.ReadCloser, error) {
	gcm, err := c.aead()
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()

	go func() {
		// AES-GCM needs complete data for the tag
		plaintext, err := io.ReadAll(r)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("failed to read plaintext: %w", err))
			return
		}

		if _, err := pw.Write(gcm.Seal(nil, c.nonce, plaintext, nil)); err != nil {
			pw.CloseWithError(err)
			return
		}

		pw.Close()
	}()

	return pr, nil
}
