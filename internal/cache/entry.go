package cache

import "time"

// Entry records the parameters a cached artifact was built with.
type Entry struct {
	// Version is the FreeTDS release, and the sole cache key
	Version string `json:"version"`

	// ArchiveName is the source tarball basename the build used
	ArchiveName string `json:"archive_name"`

	// TDSVersion is the protocol version passed to configure
	TDSVersion string `json:"tds_version"`

	// CreatedAt is when the artifact was cached
	CreatedAt time.Time `json:"created_at"`

	// SizeBytes is the compressed archive size
	SizeBytes int64 `json:"size_bytes"`
}
