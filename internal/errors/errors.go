package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMetadataMissing   = errors.New("metadata file missing")
	ErrInvalidMetadata   = errors.New("invalid metadata")
	ErrUnsupportedCipher = errors.New("unsupported cipher type")
	ErrIntegrity         = errors.New("integrity check failed")
	ErrArchiveCorrupt    = errors.New("archive corrupt")
	ErrDownloadFailed    = errors.New("download failed")
)

// FolderError reports a failure while processing one backup folder. File is
// empty when the failure is not tied to a single file.
type FolderError struct {
	Folder string
	File   string
	Err    error
}

func (e *FolderError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("folder '%s': %v", e.Folder, e.Err)
	}
	return fmt.Sprintf("folder '%s', file '%s': %v", e.Folder, e.File, e.Err)
}

func (e *FolderError) Unwrap() error {
	return e.Err
}

func NewFolderError(folder, file string, err error) *FolderError {
	return &FolderError{
		Folder: folder,
		File:   file,
		Err:    err,
	}
}

type StorageError struct {
	Operation string
	Bucket    string
	Key       string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for bucket '%s', key '%s': %v", e.Operation, e.Bucket, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op, bucket, key string, err error) *StorageError {
	return &StorageError{
		Operation: op,
		Bucket:    bucket,
		Key:       key,
		Err:       err,
	}
}

type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for '%s': %s", e.Field, e.Message)
}

func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}
