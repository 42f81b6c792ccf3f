// Usage: go run scripts/make-fixture.go <password> <plain-folder> <backup-folder>
// Writes <backup-folder> with every file of <plain-folder> encrypted to
// <name>.enc, plus the <backup-folder>.properties sidecar.
package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jorgepascosoto/neo-backup-decrypt/internal/encrypt"
	"github.com/jorgepascosoto/neo-backup-decrypt/internal/properties"
)

type sidecar struct {
	IV         []int8 `json:"iv"`
	CipherType string `json:"cipherType"`
}

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "Usage: %s <password> <plain-folder> <backup-folder>\n", os.Args[0])
		os.Exit(1)
	}
	password, src, dest := os.Args[1], os.Args[2], os.Args[3]

	iv := make([]byte, 12)
	if _, err := rand.Read(iv); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate iv: %v\n", err)
		os.Exit(1)
	}

	cipher, err := encrypt.NewAESGCM(encrypt.DeriveKey([]byte(password)), iv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create cipher: %v\n", err)
		os.Exit(1)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", src, err)
		os.Exit(1)
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dest, err)
		os.Exit(1)
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := encryptFile(cipher, filepath.Join(src, e.Name()), filepath.Join(dest, e.Name()+cipher.Extension())); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encrypt %s: %v\n", e.Name(), err)
			os.Exit(1)
		}
		fmt.Printf("encrypted %s\n", e.Name())
	}

	meta, err := json.MarshalIndent(sidecar{IV: properties.EncodeIV(iv), CipherType: cipher.Name()}, "", "    ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal metadata: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(properties.SidecarPath(dest), meta, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write metadata: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Backup written to %s\n", dest)
}

func encryptFile(cipher *encrypt.AESGCM, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	encrypted, err := cipher.Encrypt(in)
	if err != nil {
		return err
	}
	defer encrypted.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(encrypted); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
