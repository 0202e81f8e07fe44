package config

import "time"

const (
	// MaxURLLength is the maximum length of a FILE url.
	// Fits the VARCHAR(255) column of the SQL backends.
	MaxURLLength = 255

	// MaxBatchSize caps the number of descriptors in one import.
	MaxBatchSize = 10000

	// MaxRequestBodyBytes limits JSON request bodies.
	MaxRequestBodyBytes = 10 << 20

	// RecentFilesWindow is the look-back of the updates listing (inclusive).
	RecentFilesWindow = 24 * time.Hour
)
