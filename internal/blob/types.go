// Package blob is the entry point for blob storage. It re-exports the core
// contract and opens the configured driver.
package blob

import (
	"jobsdashboard/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrUnsupported indicates an operation isn't supported by a driver.
	ErrUnsupported = core.ErrUnsupported
	// ErrNotFound indicates a missing key.
	ErrNotFound = core.ErrNotFound
	// ErrExists indicates Put targeted an existing key.
	ErrExists = core.ErrExists
)
