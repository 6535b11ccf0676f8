// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poer2023/tdp/internal/models"
)

// PostStore handles all post and post-alias database operations. It
// backs the admin CRUD surface, the public read path, and the import
// and export pipeline.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

const postColumns = `id, group_id, locale, title, slug, content, excerpt, tags,
       status, published_at, created_at, updated_at`

// scanPost reads one post row from any row scanner. Tags live in a
// single comma-joined text column.
func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	p := &models.Post{}
	var tags string
	err := row.Scan(
		&p.ID, &p.GroupID, &p.Locale, &p.Title, &p.Slug, &p.Content,
		&p.Excerpt, &tags, &p.Status, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Tags = splitTags(tags)
	return p, nil
}

// ListAll returns every post regardless of status, ordered by creation
// date. The export pipeline walks this list.
func (s *PostStore) ListAll(ctx context.Context) ([]*models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListPublished returns published posts for one locale, newest first.
func (s *PostStore) ListPublished(ctx context.Context, locale models.Locale) ([]*models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE locale = $1 AND status = 'published'
		ORDER BY published_at DESC NULLS LAST
	`, locale)
	if err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

func collectPosts(rows *sql.Rows) ([]*models.Post, error) {
	var items []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// FindByID retrieves a post by its UUID. Returns nil if not found.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post by id: %w", err)
	}
	return p, nil
}

// FindByGroupAndLocale retrieves the edition of a translation group in
// one locale. Returns nil if the group has no post in that locale.
func (s *PostStore) FindByGroupAndLocale(ctx context.Context, groupID string, locale models.Locale) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE group_id = $1 AND locale = $2
	`, groupID, locale))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post by group and locale: %w", err)
	}
	return p, nil
}

// FindBySlugAndLocale retrieves a post by its canonical slug within a
// locale, regardless of status. Returns nil if not found.
func (s *PostStore) FindBySlugAndLocale(ctx context.Context, locale models.Locale, slug string) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE locale = $1 AND slug = $2
	`, locale, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post by slug: %w", err)
	}
	return p, nil
}

// FindPublishedBySlug retrieves a published post by slug. Used by the
// public read path, where drafts must stay invisible.
func (s *PostStore) FindPublishedBySlug(ctx context.Context, locale models.Locale, slug string) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts WHERE locale = $1 AND slug = $2 AND status = 'published'
	`, locale, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find published post by slug: %w", err)
	}
	return p, nil
}

// Create inserts a new post and returns it with the generated ID and
// timestamps.
func (s *PostStore) Create(ctx context.Context, p *models.Post) (*models.Post, error) {
	// If publishing without an explicit timestamp, set one now.
	if p.Status == models.PostStatusPublished && p.PublishedAt == nil {
		now := time.Now()
		p.PublishedAt = &now
	}

	created, err := scanPost(s.db.QueryRowContext(ctx, `
		INSERT INTO posts (group_id, locale, title, slug, content, excerpt, tags, status, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+postColumns+`
	`, p.GroupID, p.Locale, p.Title, p.Slug, p.Content, p.Excerpt,
		joinTags(p.Tags), p.Status, p.PublishedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return created, nil
}

// Update modifies an existing post and returns the stored row. The
// group and locale of a post never change after creation.
func (s *PostStore) Update(ctx context.Context, id uuid.UUID, p *models.Post) (*models.Post, error) {
	if p.Status == models.PostStatusPublished && p.PublishedAt == nil {
		now := time.Now()
		p.PublishedAt = &now
	}

	updated, err := scanPost(s.db.QueryRowContext(ctx, `
		UPDATE posts SET
			title = $1, slug = $2, content = $3, excerpt = $4, tags = $5,
			status = $6, published_at = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING `+postColumns+`
	`, p.Title, p.Slug, p.Content, p.Excerpt, joinTags(p.Tags),
		p.Status, p.PublishedAt, id,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("update post: %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return updated, nil
}

// Delete removes a post by ID. Aliases cascade.
func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// CreateAlias records an alternate slug for a post. Re-importing the
// same archive must not fail on aliases that already exist, so the
// insert is a no-op on conflict.
func (s *PostStore) CreateAlias(ctx context.Context, locale models.Locale, slug string, postID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_aliases (locale, slug, post_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (locale, slug) DO NOTHING
	`, locale, slug, postID)
	if err != nil {
		return fmt.Errorf("create post alias: %w", err)
	}
	return nil
}

// FindAlias retrieves an alias by (locale, slug). Returns nil if none
// exists.
func (s *PostStore) FindAlias(ctx context.Context, locale models.Locale, slug string) (*models.PostAlias, error) {
	a := &models.PostAlias{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, locale, slug, post_id, created_at
		FROM post_aliases WHERE locale = $1 AND slug = $2
	`, locale, slug).Scan(&a.ID, &a.Locale, &a.Slug, &a.PostID, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post alias: %w", err)
	}
	return a, nil
}

// joinTags flattens a tag list into the comma-joined column format.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// splitTags expands the comma-joined column format. An empty column is
// a nil slice, not a single empty tag.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
