package blob

import (
	"context"
	"fmt"
	"os"
)

// OpenFromEnv selects a blob backend using environment variables.
//
//	FLEXDETECT_BLOB_DRIVER: memory|fs|s3 (default fs)
//	FLEXDETECT_BLOB_FS_ROOT: root directory for the fs driver (default ./blobdata)
func OpenFromEnv(ctx context.Context) (Store, error) {
	driver := Driver(os.Getenv("FLEXDETECT_BLOB_DRIVER"))
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFilesystem:
		return NewFilesystemStore(os.Getenv("FLEXDETECT_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
