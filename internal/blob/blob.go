// Package blob re-exports the blob storage abstractions and selects a
// backend from the environment.
package blob

import (
	"context"
	"fmt"
	"os"

	"github.com/Kira-pln/inventario-tubetes/internal/blob/core"
	fsblob "github.com/Kira-pln/inventario-tubetes/internal/infra/blob/fs"
	memblob "github.com/Kira-pln/inventario-tubetes/internal/infra/blob/memory"
	s3blob "github.com/Kira-pln/inventario-tubetes/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
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
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// NewFilesystem returns a filesystem-backed store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fsblob.New(root)
}

// NewMemory returns an in-memory store for tests.
func NewMemory() Store {
	return memblob.New()
}

// Open selects a Store implementation using environment variables.
//
//	TUBETES_BLOB_DRIVER: fs|s3|memory (default fs)
//	TUBETES_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("TUBETES_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("TUBETES_BLOB_FS_ROOT"))
	case DriverS3:
		return s3blob.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
