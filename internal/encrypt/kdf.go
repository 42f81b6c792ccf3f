package encrypt

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// Fixed by the backup format. Every backup shares the same salt, so the
// derived key only depends on the password.
const (
	Iterations = 2020
	Salt       = "oandbackupx"
)

// DeriveKey turns a UTF-8 password into the AES-256 key used for every
// backup folder.
func DeriveKey(password []byte) []byte {
	return pbkdf2.Key(password, []byte(Salt), Iterations, KeySize, sha256.New)
}
