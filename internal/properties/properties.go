// Package properties reads and rewrites the JSON metadata that sits next to
// every backup folder.
package properties

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	apperrors "github.com/jorgepascosoto/neo-backup-decrypt/internal/errors"
)

const (
	Extension = ".properties"
	// InDirName is the metadata file name used by newer app versions, which
	// keep it inside the backup folder instead of next to it.
	InDirName = "backup" + Extension

	KeyIV         = "iv"
	KeyCipherType = "cipherType"

	// NoCipher is reported when the metadata has no cipherType field.
	NoCipher = "none"

	indent = "    "
)

type field struct {
	key   string
	value json.RawMessage
}

// Properties is a parsed metadata file. Field order of the source is kept
// so the rewritten file stays diffable against the original.
type Properties struct {
	// Path is the file the metadata was read from.
	Path string
	// InDir is true when Path is InDirName inside the folder.
	InDir bool

	CipherType string
	// IV holds the nonce bytes, nil when the metadata has no iv field.
	IV []byte

	fields []field
}

// SidecarPath returns <folder>.properties.
func SidecarPath(folder string) string {
	return filepath.Clean(folder) + Extension
}

// Load reads the metadata for folder. The sibling sidecar wins; the in-folder
// file is only consulted when the sidecar cannot be read. If neither can be
// read the error wraps ErrMetadataMissing.
func Load(folder string) (*Properties, error) {
	path := SidecarPath(folder)
	inDir := false

	data, err := os.ReadFile(path)
	if err != nil {
		path = filepath.Join(folder, InDirName)
		inDir = true
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrMetadataMissing, SidecarPath(folder))
		}
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = path
	p.InDir = inDir
	return p, nil
}

// Parse decodes a metadata document. The cipherType field is extracted and
// dropped from the retained fields.
func Parse(data []byte) (*Properties, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidMetadata, err)
	}

	p := &Properties{CipherType: NoCipher}
	for _, f := range fields {
		switch f.key {
		case KeyCipherType:
			var ct string
			if err := json.Unmarshal(f.value, &ct); err != nil {
				return nil, fmt.Errorf("%w: cipherType is not a string", apperrors.ErrInvalidMetadata)
			}
			p.CipherType = ct
			continue
		case KeyIV:
			iv, err := ParseIV(f.value)
			if err != nil {
				return nil, err
			}
			p.IV = iv
		}
		p.fields = append(p.fields, f)
	}

	return p, nil
}

// ParseIV converts the iv array into raw bytes. Each element is a signed
// 8-bit value and maps to its two's complement byte, so -1 becomes 0xff.
func ParseIV(raw json.RawMessage) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var elems []json.Number
	if err := dec.Decode(&elems); err != nil {
		return nil, fmt.Errorf("%w: iv must be an array of integers: %v", apperrors.ErrInvalidMetadata, err)
	}

	iv := make([]byte, len(elems))
	for i, n := range elems {
		v, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil || v < math.MinInt8 || v > math.MaxInt8 {
			return nil, fmt.Errorf("%w: iv[%d] = %s is not a signed byte", apperrors.ErrInvalidMetadata, i, n)
		}
		iv[i] = byte(int8(v))
	}
	return iv, nil
}

// EncodeIV is the inverse of ParseIV.
func EncodeIV(iv []byte) []int8 {
	out := make([]int8, len(iv))
	for i, b := range iv {
		out[i] = int8(b)
	}
	return out
}

// Marshal renders the retained fields as a JSON object indented with four
// spaces. cipherType is never part of the output.
func (p *Properties) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	if len(p.fields) == 0 {
		return []byte("{}"), nil
	}

	buf.WriteString("{\n")
	for i, f := range p.fields {
		key, err := marshalString(f.key)
		if err != nil {
			return nil, err
		}
		buf.WriteString(indent)
		buf.Write(key)
		buf.WriteString(": ")
		if err := json.Indent(&buf, f.value, indent, indent); err != nil {
			return nil, fmt.Errorf("failed to indent field %q: %w", f.key, err)
		}
		if i < len(p.fields)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// WriteFile writes the transformed metadata to path.
func (p *Properties) WriteFile(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write properties: %w", err)
	}
	return nil
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeObject reads a top-level JSON object keeping key order. A repeated
// key keeps its first position and its last value.
func decodeObject(data []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var fields []field
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key")
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}

		if i, seen := index[key]; seen {
			fields[i].value = value
			continue
		}
		index[key] = len(fields)
		fields = append(fields, field{key: key, value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after the JSON object")
	}

	return fields, nil
}
