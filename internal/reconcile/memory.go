// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poer2023/tdp/internal/models"
)

// MemoryRepository is a Repository and AliasWriter backed by process
// memory. It exists so the engine and everything layered on top of it
// can be exercised without a database. Not safe for concurrent use.
type MemoryRepository struct {
	posts   []*models.Post
	aliases []*models.PostAlias
	now     func() time.Time
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

// Seed inserts a post directly, assigning an ID and timestamps when
// missing, and returns the stored copy.
func (m *MemoryRepository) Seed(p *models.Post) *models.Post {
	stored := clonePost(p)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	m.posts = append(m.posts, stored)
	return clonePost(stored)
}

func (m *MemoryRepository) FindByGroupAndLocale(_ context.Context, groupID string, locale models.Locale) (*models.Post, error) {
	for _, p := range m.posts {
		if p.GroupID == groupID && p.Locale == locale {
			return clonePost(p), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) FindBySlugAndLocale(_ context.Context, locale models.Locale, slug string) (*models.Post, error) {
	for _, p := range m.posts {
		if p.Locale == locale && p.Slug == slug {
			return clonePost(p), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) Create(_ context.Context, p *models.Post) (*models.Post, error) {
	stored := clonePost(p)
	stored.ID = uuid.New()
	stored.CreatedAt = m.now()
	stored.UpdatedAt = stored.CreatedAt
	m.posts = append(m.posts, stored)
	return clonePost(stored), nil
}

func (m *MemoryRepository) Update(_ context.Context, id uuid.UUID, p *models.Post) (*models.Post, error) {
	for _, stored := range m.posts {
		if stored.ID != id {
			continue
		}
		stored.Title = p.Title
		stored.Slug = p.Slug
		stored.Content = p.Content
		stored.Excerpt = p.Excerpt
		stored.Tags = append([]string(nil), p.Tags...)
		stored.Status = p.Status
		stored.PublishedAt = cloneTime(p.PublishedAt)
		stored.UpdatedAt = m.now()
		return clonePost(stored), nil
	}
	return nil, fmt.Errorf("post %s not found", id)
}

// CreateAlias records an alias unless the (locale, slug) pair already
// exists, matching the store's on-conflict-do-nothing behavior.
func (m *MemoryRepository) CreateAlias(_ context.Context, locale models.Locale, slug string, postID uuid.UUID) error {
	for _, a := range m.aliases {
		if a.Locale == locale && a.Slug == slug {
			return nil
		}
	}
	m.aliases = append(m.aliases, &models.PostAlias{
		ID:        uuid.New(),
		Locale:    locale,
		Slug:      slug,
		PostID:    postID,
		CreatedAt: m.now(),
	})
	return nil
}

// FindAlias returns the alias for a (locale, slug) pair, or nil.
func (m *MemoryRepository) FindAlias(_ context.Context, locale models.Locale, slug string) (*models.PostAlias, error) {
	for _, a := range m.aliases {
		if a.Locale == locale && a.Slug == slug {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

// ListAll returns every stored post.
func (m *MemoryRepository) ListAll(_ context.Context) ([]*models.Post, error) {
	out := make([]*models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, clonePost(p))
	}
	return out, nil
}

// Aliases returns every stored alias.
func (m *MemoryRepository) Aliases() []*models.PostAlias {
	out := make([]*models.PostAlias, 0, len(m.aliases))
	for _, a := range m.aliases {
		copied := *a
		out = append(out, &copied)
	}
	return out
}

func clonePost(p *models.Post) *models.Post {
	copied := *p
	copied.Tags = append([]string(nil), p.Tags...)
	copied.PublishedAt = cloneTime(p.PublishedAt)
	return &copied
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
