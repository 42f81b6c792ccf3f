package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jorgepascosoto/neo-backup-decrypt/internal/compress"
	"github.com/jorgepascosoto/neo-backup-decrypt/internal/encrypt"
	apperrors "github.com/jorgepascosoto/neo-backup-decrypt/internal/errors"
	"github.com/jorgepascosoto/neo-backup-decrypt/internal/properties"
)

// Decryptor turns backup folders into -DECRYPTED siblings. The key is
// derived once and shared by every folder of a run.
type Decryptor struct {
	key            []byte
	verifyArchives bool
	logger         *log.Logger
}

type Option func(*Decryptor)

// WithArchiveVerification makes every decrypted .gz/.zst/.tar file be read
// back through its decompressor before the folder counts as decrypted.
func WithArchiveVerification(enabled bool) Option {
	return func(d *Decryptor) {
		d.verifyArchives = enabled
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Decryptor) {
		d.logger = l
	}
}

func NewDecryptor(password []byte, opts ...Option) *Decryptor {
	d := &Decryptor{
		key:    encrypt.DeriveKey(password),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DecryptFolder processes one folder. A missing metadata file yields a quiet
// skip; an unsupported cipher a logged skip; anything else that goes wrong
// stops the folder and yields StatusFailed. Files already written stay.
func (d *Decryptor) DecryptFolder(ctx context.Context, folder Folder) Outcome {
	start := time.Now()

	props, err := properties.Load(folder.Path)
	if err != nil {
		if errors.Is(err, apperrors.ErrMetadataMissing) {
			return skipped(folder.Path, ReasonNoMetadata, err)
		}
		d.logger.Printf("ERROR: %v", err)
		return failed(folder.Path, apperrors.NewFolderError(folder.Path, "", err))
	}

	cipher, err := NewCipher(props.CipherType, d.key, props.IV)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnsupportedCipher) {
			d.logger.Printf("unknown cipherType: %s", props.CipherType)
			return skipped(folder.Path, ReasonUnsupportedCipher, err)
		}
		d.logger.Printf("ERROR: %v", err)
		return failed(folder.Path, apperrors.NewFolderError(folder.Path, "", err))
	}

	out := Outcome{
		Folder: folder.Path,
		Output: folder.OutputPath(),
		Status: StatusDecrypted,
	}

	for _, name := range folder.Files {
		if err := ctx.Err(); err != nil {
			return d.fail(out, name, err, start)
		}

		// in-folder metadata is rewritten below, never copied with its cipherType
		if props.InDir && name == properties.InDirName {
			continue
		}

		src := filepath.Join(folder.Path, name)
		if strings.HasSuffix(name, cipher.Extension()) {
			d.logger.Printf("decrypt %s", src)
			n, err := d.decryptFile(cipher, src, out.Output, strings.TrimSuffix(name, cipher.Extension()))
			if err != nil {
				return d.fail(out, name, err, start)
			}
			out.DecryptedFiles++
			out.Bytes += n
		} else {
			d.logger.Printf("copy    %s", src)
			if err := copyFile(src, filepath.Join(out.Output, name)); err != nil {
				return d.fail(out, name, err, start)
			}
			out.CopiedFiles++
		}
	}

	if err := os.MkdirAll(out.Output, 0755); err != nil {
		return d.fail(out, "", fmt.Errorf("failed to create output folder: %w", err), start)
	}
	if err := props.WriteFile(properties.SidecarPath(out.Output)); err != nil {
		return d.fail(out, "", err, start)
	}

	out.Duration = time.Since(start)
	return out
}

func (d *Decryptor) fail(out Outcome, file string, err error, start time.Time) Outcome {
	folderErr := apperrors.NewFolderError(out.Folder, file, err)
	d.logger.Printf("ERROR: %v", folderErr)

	res := failed(out.Folder, folderErr)
	res.DecryptedFiles = out.DecryptedFiles
	res.CopiedFiles = out.CopiedFiles
	res.Bytes = out.Bytes
	res.Duration = time.Since(start)
	return res
}

// decryptFile authenticates the whole file before anything is written, so a
// wrong password never leaves unauthenticated plaintext behind.
func (d *Decryptor) decryptFile(c Cipher, src, outDir, name string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open encrypted file: %w", err)
	}
	plaintext, err := c.Decrypt(in)
	in.Close()
	if err != nil {
		return 0, err
	}
	defer plaintext.Close()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output folder: %w", err)
	}

	dest := filepath.Join(outDir, name)
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create decrypted file: %w", err)
	}
	n, err := io.Copy(f, plaintext)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("failed to write decrypted file: %w", err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("failed to write decrypted file: %w", err)
	}

	if d.verifyArchives && compress.IsArchive(name) {
		if err := compress.VerifyFile(dest); err != nil {
			return n, err
		}
	}

	return n, nil
}

// copyFile copies contents and permission bits, like cp without -p.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}

	return os.Chmod(dest, info.Mode().Perm())
}
