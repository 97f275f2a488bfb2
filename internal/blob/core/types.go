// Package core defines the report artifact storage contract shared by the
// blob backends.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver identifies a concrete artifact storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory (default)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible bucket
	DriverMemory     Driver = "memory" // process memory (tests)
)

// Content types of the artifacts the simulator produces.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON = "application/json"
	ContentTypeZip  = "application/zip"
)

var (
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("blob: artifact already exists")
	// ErrNotFound is returned when a key holds no artifact.
	ErrNotFound = errors.New("blob: artifact not found")
	// ErrUnsupported is returned when a backend cannot serve an optional
	// capability.
	ErrUnsupported = errors.New("blob: unsupported operation")
	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = errors.New("blob: invalid key")
)

// PutOptions describes an artifact being written.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string // run_id, plot_id, scenario
}

// Info describes a stored artifact.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	Checksum     string            `json:"checksum,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store keeps report artifacts under slash separated keys. Put never
// overwrites; List returns keys in ascending order.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	// URL returns a link clients can download the artifact from for at
	// least expiry.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}

// CleanKey validates key and returns it in canonical slash form.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return path.Clean(strings.ReplaceAll(key, "\\", "/")), nil
}

// ArtifactKey places an artifact of a run under runs/<runID>/<name>.
func ArtifactKey(runID, name string) string {
	return path.Join("runs", runID, name)
}
