package backup

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jorgepascosoto/neo-backup-decrypt/internal/encrypt"
)

// DecryptedSuffix is appended to a backup folder name to form its output.
const DecryptedSuffix = "-DECRYPTED"

// Folder is a directory holding at least one encrypted file.
type Folder struct {
	Path string
	// Files lists the non-directory entries, sorted by name.
	Files   []string
	ModTime time.Time
}

// OutputPath is the sibling directory receiving the plaintext.
func (f Folder) OutputPath() string {
	return filepath.Clean(f.Path) + DecryptedSuffix
}

// FindFolders walks root top-down and returns every directory that directly
// contains a file ending in the encrypted extension. Parents come before
// their children. Unreadable directories, root included, are logged and
// skipped, so a missing root yields no folders. Symbolic links to
// directories are neither listed as files nor followed.
func FindFolders(root string) []Folder {
	var folders []Folder

	// The callback never returns a non-skip error, so neither does WalkDir.
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("Warning: cannot read %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			log.Printf("Warning: cannot read %s: %v", path, err)
			return filepath.SkipDir
		}

		var files []string
		encrypted := false
		for _, e := range entries {
			if e.IsDir() || isDirLink(path, e) {
				continue
			}
			files = append(files, e.Name())
			if strings.HasSuffix(e.Name(), encrypt.Extension) {
				encrypted = true
			}
		}
		if !encrypted {
			return nil
		}

		sort.Strings(files)
		folder := Folder{Path: path, Files: files}
		if info, err := d.Info(); err == nil {
			folder.ModTime = info.ModTime()
		}
		folders = append(folders, folder)
		return nil
	})

	return folders
}

// isDirLink reports whether e is a symbolic link resolving to a directory.
// Dangling links count as files.
func isDirLink(dir string, e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.IsDir()
}
