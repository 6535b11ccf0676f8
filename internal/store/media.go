// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/poer2023/tdp/internal/models"
)

// MediaStore handles all gallery media database operations.
type MediaStore struct {
	db *sql.DB
}

// NewMediaStore creates a new MediaStore with the given database connection.
func NewMediaStore(db *sql.DB) *MediaStore {
	return &MediaStore{db: db}
}

// mediaColumns lists the columns selected in media queries.
const mediaColumns = `id, filename, original_name, content_type, size_bytes,
	width, height, s3_key, thumb_s3_key, alt_text, uploader_id, created_at`

// scanMedia scans a media row from the result set.
func scanMedia(scanner interface{ Scan(...any) error }) (*models.Media, error) {
	var m models.Media
	err := scanner.Scan(
		&m.ID, &m.Filename, &m.OriginalName, &m.ContentType, &m.SizeBytes,
		&m.Width, &m.Height, &m.S3Key, &m.ThumbS3Key, &m.AltText, &m.UploaderID, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new media record and returns it with the generated ID.
func (s *MediaStore) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	created, err := scanMedia(s.db.QueryRowContext(ctx, `
		INSERT INTO media (filename, original_name, content_type, size_bytes,
			width, height, s3_key, thumb_s3_key, alt_text, uploader_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+mediaColumns,
		m.Filename, m.OriginalName, m.ContentType, m.SizeBytes,
		m.Width, m.Height, m.S3Key, m.ThumbS3Key, m.AltText, m.UploaderID,
	))
	if err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}
	return created, nil
}

// FindByID retrieves a single media record by its UUID.
func (s *MediaStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	m, err := scanMedia(s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find media by id: %w", err)
	}
	return m, nil
}

// List returns media items ordered by creation date, with pagination.
func (s *MediaStore) List(ctx context.Context, limit, offset int) ([]models.Media, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mediaColumns+`
		FROM media
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var items []models.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

// Delete removes a media record and returns it so the caller can clean
// up the corresponding S3 objects.
func (s *MediaStore) Delete(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	m, err := scanMedia(s.db.QueryRowContext(ctx, `
		DELETE FROM media WHERE id = $1
		RETURNING `+mediaColumns, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete media: %w", err)
	}
	return m, nil
}

// Count returns the total number of media items.
func (s *MediaStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return count, nil
}
