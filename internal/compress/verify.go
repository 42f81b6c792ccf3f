package compress

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	apperrors "github.com/jorgepascosoto/neo-backup-decrypt/internal/errors"
)

type Format string

const (
	FormatNone Format = ""
	FormatGzip Format = ".gz"
	FormatZstd Format = ".zst"

	tarExtension = ".tar"
)

// DetectFormat looks only at the file name, matching how the app names its
// archives (<what>.tar[.gz|.zst]).
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return FormatGzip
	case ".zst":
		return FormatZstd
	default:
		return FormatNone
	}
}

// IsArchive reports whether Verify has anything to check for name.
func IsArchive(name string) bool {
	if DetectFormat(name) != FormatNone {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), tarExtension)
}

// Verify reads the whole stream, decompressing it and walking tar entries,
// so truncated or corrupt archives surface as ErrArchiveCorrupt.
func Verify(name string, r io.Reader) error {
	inner := name

	switch DetectFormat(name) {
	case FormatGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return corrupt(name, err)
		}
		defer gr.Close()
		r = gr
		inner = strings.TrimSuffix(name, filepath.Ext(name))
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return corrupt(name, err)
		}
		defer zr.Close()
		r = zr
		inner = strings.TrimSuffix(name, filepath.Ext(name))
	}

	if strings.EqualFold(filepath.Ext(inner), tarExtension) {
		return verifyTar(name, r)
	}

	if _, err := io.Copy(io.Discard, r); err != nil {
		return corrupt(name, err)
	}
	return nil
}

func verifyTar(name string, r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			// drain padding so the decompressor reaches its own checksum
			if _, err := io.Copy(io.Discard, r); err != nil {
				return corrupt(name, err)
			}
			return nil
		}
		if err != nil {
			return corrupt(name, err)
		}
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return corrupt(name, fmt.Errorf("entry %s: %w", hdr.Name, err))
		}
	}
}

// VerifyFile runs Verify over the file at path.
func VerifyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	return Verify(filepath.Base(path), f)
}

func corrupt(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperrors.ErrArchiveCorrupt, name, err)
}
