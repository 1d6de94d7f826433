package domain

import "path/filepath"

const (
	// CacheDirName is the name of the default on-disk cache directory.
	CacheDirName = ".enginecache"

	// IndexFileName is the name of the persisted store index file.
	IndexFileName = "index.cbor"

	// ConfigFileName is the name of the pipeline configuration file.
	ConfigFileName = "enginecache.yaml"

	// BlobExtension is the file extension for artifact blobs.
	BlobExtension = ".bin"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// DefaultCapacityBytes is the default eviction threshold (5 GiB), matching
	// the size accelerator engine caches typically reserve.
	DefaultCapacityBytes int64 = 5 << 30
)

// DefaultCachePath returns the default cache root relative to the working tree.
func DefaultCachePath() string {
	return CacheDirName
}

// IndexPath returns the path of the persisted index inside a cache root.
func IndexPath(root string) string {
	return filepath.Join(root, IndexFileName)
}
