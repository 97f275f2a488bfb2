// Package blob is the entry point to report artifact storage. It re-exports
// the core contract and selects a backend; other packages must not import the
// infra implementations directly.
package blob

import "standsim/internal/blob/core"

type (
	// Driver identifies a storage backend.
	Driver = core.Driver
	// PutOptions describes an artifact being written.
	PutOptions = core.PutOptions
	// Info describes a stored artifact.
	Info = core.Info
	// Store is implemented by every backend.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory

	ContentTypeXLSX = core.ContentTypeXLSX
	ContentTypeJSON = core.ContentTypeJSON
	ContentTypeZip  = core.ContentTypeZip
)

var (
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
	ErrUnsupported = core.ErrUnsupported
	ErrInvalidKey  = core.ErrInvalidKey
)

// ArtifactKey places an artifact of a run under runs/<runID>/<name>.
func ArtifactKey(runID, name string) string { return core.ArtifactKey(runID, name) }
