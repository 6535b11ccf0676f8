package handlers

import (
	"strings"
	"unicode/utf8"

	"github.com/poer2023/tdp/internal/models"
)

// Validation limits for post fields.
const (
	maxTitleLen   = 300
	maxSlugLen    = 300
	maxBodyLen    = 500_000
	maxExcerptLen = 1_000
	maxTagLen     = 100
	maxTagCount   = 20
)

// validSlug enforces the canonical slug alphabet: lowercase ASCII
// letters, digits, and single hyphens, never at the edges.
func validSlug(s string) bool {
	if s == "" || strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") || strings.Contains(s, "--") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// validatePost checks post inputs and returns the first error found,
// or "" if everything is acceptable. An empty slug is allowed; it gets
// derived from the title.
func validatePost(title, slug, body string, locale models.Locale, status models.PostStatus, tags []string) string {
	if !locale.Valid() {
		return "Locale must be en or zh."
	}
	if !status.Valid() {
		return "Status must be draft or published."
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "Title is required."
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "Title is too long (max 300 characters)."
	}
	if slug != "" {
		if utf8.RuneCountInString(slug) > maxSlugLen {
			return "Slug is too long (max 300 characters)."
		}
		if !validSlug(slug) {
			return "Slug may only contain lowercase letters, digits, and hyphens."
		}
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		return "Content is too long (max 500,000 characters)."
	}
	if len(tags) > maxTagCount {
		return "Too many tags (max 20)."
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > maxTagLen {
			return "Tag is too long (max 100 characters)."
		}
		if strings.Contains(t, ",") {
			return "Tags may not contain commas."
		}
	}
	return ""
}

// validateExcerpt checks the optional excerpt field.
func validateExcerpt(excerpt string) string {
	if utf8.RuneCountInString(excerpt) > maxExcerptLen {
		return "Excerpt is too long (max 1,000 characters)."
	}
	return ""
}
