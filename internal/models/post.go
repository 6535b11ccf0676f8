// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Locale identifies the language of a post. Every post is written in
// exactly one locale; translations are separate rows tied together by
// a shared GroupID.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleZH Locale = "zh"
)

// Valid reports whether the locale is one of the supported values.
func (l Locale) Valid() bool {
	return l == LocaleEN || l == LocaleZH
}

// IsCJK reports whether the locale needs transliteration for slug
// generation (Chinese titles don't produce ASCII slugs on their own).
func (l Locale) IsCJK() bool {
	return l == LocaleZH
}

// PostStatus represents the publishing state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether the status is one of the supported values.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post is the canonical content entity of the blog. A logical article
// exists as up to two Post rows — one per locale — sharing a GroupID.
// A GroupID with only one locale present is a valid, untranslated post.
//
// Invariants enforced by the schema: (locale, slug) is unique, and
// (group_id, locale) is unique.
type Post struct {
	ID          uuid.UUID  `json:"id"`
	GroupID     string     `json:"group_id"`
	Locale      Locale     `json:"locale"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Status      PostStatus `json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsPublished returns true if the post is in published status.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// ExportedAt returns the timestamp written to the publishedAt
// frontmatter field on export. Drafts that were never published fall
// back to their creation time so exported documents always carry one.
func (p *Post) ExportedAt() time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

// PostAlias maps an alternate slug to a canonical post for
// redirect-on-mismatch lookups. Aliases are created when a Chinese
// post's slug differs from its pinyin transliteration, or when an
// import had to suffix a slug to resolve a collision.
type PostAlias struct {
	ID        uuid.UUID `json:"id"`
	Locale    Locale    `json:"locale"`
	Slug      string    `json:"slug"`
	PostID    uuid.UUID `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
