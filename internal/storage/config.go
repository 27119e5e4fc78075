package storage

// Config holds evidence storage configuration
type Config struct {
	Dir          string // Root directory for stored evidence
	MaxSizeBytes int64  // Largest accepted upload
}
