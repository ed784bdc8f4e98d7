package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/domain"
)

// FileRepository manages file-metadata persistence.
type FileRepository interface {
	Create(ctx context.Context, file *domain.File) error
	GetByID(ctx context.Context, id int64) (*domain.File, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]*domain.File, error)
	Delete(ctx context.Context, id int64) error
}

type fileRepository struct {
	pool *pgxpool.Pool
}

// NewFileRepository returns a Postgres-backed implementation.
func NewFileRepository(pool *pgxpool.Pool) FileRepository {
	return &fileRepository{pool: pool}
}

func (r *fileRepository) Create(ctx context.Context, file *domain.File) error {
	const query = `
        INSERT INTO files (owner_id, name, content_type, size_bytes, checksum)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		file.OwnerID,
		file.Name,
		file.ContentType,
		file.SizeBytes,
		file.Checksum,
	).Scan(&file.ID, &file.CreatedAt, &file.UpdatedAt)
}

func (r *fileRepository) GetByID(ctx context.Context, id int64) (*domain.File, error) {
	const query = `
        SELECT id, owner_id, name, content_type, size_bytes, checksum, created_at, updated_at
        FROM files WHERE id=$1`

	var file domain.File
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.OwnerID,
		&file.Name,
		&file.ContentType,
		&file.SizeBytes,
		&file.Checksum,
		&file.CreatedAt,
		&file.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]*domain.File, error) {
	const query = `
        SELECT id, owner_id, name, content_type, size_bytes, checksum, created_at, updated_at
        FROM files WHERE owner_id=$1 ORDER BY id LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*domain.File
	for rows.Next() {
		var file domain.File
		if err := rows.Scan(
			&file.ID,
			&file.OwnerID,
			&file.Name,
			&file.ContentType,
			&file.SizeBytes,
			&file.Checksum,
			&file.CreatedAt,
			&file.UpdatedAt,
		); err != nil {
			return nil, err
		}
		files = append(files, &file)
	}
	return files, rows.Err()
}

func (r *fileRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM files WHERE id=$1`

	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
