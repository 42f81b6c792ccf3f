package backup

import (
	"fmt"
	"io"

	"github.com/jorgepascosoto/neo-backup-decrypt/internal/encrypt"
	apperrors "github.com/jorgepascosoto/neo-backup-decrypt/internal/errors"
)

// Cipher decrypts the encrypted files of one backup folder.
type Cipher interface {
	Decrypt(r io.Reader) (io.ReadCloser, error)
	Name() string
	Extension() string
}

// NewCipher returns the Cipher for a metadata cipherType. Unknown types wrap
// ErrUnsupportedCipher and name the offending value.
func NewCipher(cipherType string, key, iv []byte) (Cipher, error) {
	switch cipherType {
	case encrypt.CipherAESGCM:
		if iv == nil {
			return nil, fmt.Errorf("%w: metadata has no iv", apperrors.ErrInvalidMetadata)
		}
		c, err := encrypt.NewAESGCM(key, iv)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedCipher, cipherType)
	}
}
