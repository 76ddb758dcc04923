package storage

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSchemaMismatch   = errors.New("storage: unexpected schema")
	ErrRaggedCentroids  = errors.New("storage: centroids differ in length")
	ErrRankOutOfOrder   = errors.New("storage: cluster ranks are not contiguous")
	ErrLabelsLength     = errors.New("storage: label count is not a multiple of width")
	ErrUnsupportedWidth = errors.New("storage: width must be positive")
)

// FileError provides context for a failed output file.
type FileError struct {
	Op        string // Operation: "create", "write", "sync", "close"
	Kind      string // Output kind: "clusters_parquet", "clusters_ipc", "labels_parquet"
	Path      string
	Cause     error
	Timestamp time.Time
}

func (e *FileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Kind, e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s %s failed for %s", e.Kind, e.Op, e.Path)
}

func (e *FileError) Unwrap() error {
	return e.Cause
}

// NewFileError creates a file error with timestamp.
func NewFileError(op, kind, path string, cause error) error {
	return &FileError{
		Op:        op,
		Kind:      kind,
		Path:      path,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}
