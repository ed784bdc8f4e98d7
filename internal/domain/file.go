package domain

import "time"

// File is metadata for an uploaded object. Blob storage itself lives
// outside this service; only the record is managed here.
type File struct {
	ID          int64
	OwnerID     int64
	Name        string
	ContentType string
	SizeBytes   int64
	Checksum    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
