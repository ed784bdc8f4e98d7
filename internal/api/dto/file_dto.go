package dto

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// CreateFileRequest payload for registering file metadata.
type CreateFileRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Checksum    string `json:"checksum"`
}

// FileResponse is the external view of a file record.
type FileResponse struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewFileResponse maps a domain file.
func NewFileResponse(file *domain.File) FileResponse {
	return FileResponse{
		ID:          file.ID,
		OwnerID:     file.OwnerID,
		Name:        file.Name,
		ContentType: file.ContentType,
		SizeBytes:   file.SizeBytes,
		Checksum:    file.Checksum,
		CreatedAt:   file.CreatedAt,
	}
}
