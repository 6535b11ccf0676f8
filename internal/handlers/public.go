// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/poer2023/tdp/internal/cache"
	"github.com/poer2023/tdp/internal/markdown"
	"github.com/poer2023/tdp/internal/models"
	"github.com/poer2023/tdp/internal/store"
)

// Public groups handlers for the public read API. Published posts are
// served through the Valkey response cache; the cache stores the final
// JSON bytes so a hit never touches PostgreSQL.
type Public struct {
	postStore       *store.PostStore
	subscriberStore *store.SubscriberStore
	postCache       *cache.PostCache
}

// NewPublic creates a new Public handler group. postCache may be nil,
// which disables response caching.
func NewPublic(postStore *store.PostStore, subscriberStore *store.SubscriberStore, postCache *cache.PostCache) *Public {
	return &Public{
		postStore:       postStore,
		subscriberStore: subscriberStore,
		postCache:       postCache,
	}
}

// PostPath returns the public API path for a post in the given locale.
func PostPath(locale models.Locale, slug string) string {
	if locale == models.LocaleZH {
		return "/api/zh/posts/" + slug
	}
	return "/api/posts/" + slug
}

// postView is the public JSON shape of a post. Content is rendered to
// HTML; the Markdown source stays admin-only.
type postView struct {
	GroupID     string   `json:"group_id"`
	Locale      string   `json:"locale"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	HTML        string   `json:"html,omitempty"`
	Excerpt     string   `json:"excerpt,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
}

func newPostView(p *models.Post, withBody bool) (*postView, error) {
	v := &postView{
		GroupID: p.GroupID,
		Locale:  string(p.Locale),
		Title:   p.Title,
		Slug:    p.Slug,
		Excerpt: p.Excerpt,
		Tags:    p.Tags,
	}
	if p.PublishedAt != nil {
		v.PublishedAt = p.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if withBody {
		html, err := markdown.ToHTML(p.Content)
		if err != nil {
			return nil, err
		}
		v.HTML = html
	}
	return v, nil
}

// List returns the published posts for one locale, newest first.
func (p *Public) List(locale models.Locale) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if p.postCache != nil {
			if cached, ok := p.postCache.Get(ctx, cache.ListKey(locale)); ok {
				writeCached(w, cached)
				return
			}
		}

		posts, err := p.postStore.ListPublished(ctx, locale)
		if err != nil {
			slog.Error("list published posts failed", "error", err, "locale", locale)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		views := make([]*postView, 0, len(posts))
		for _, post := range posts {
			v, err := newPostView(post, false)
			if err != nil {
				slog.Error("post view failed", "error", err, "slug", post.Slug)
				continue
			}
			views = append(views, v)
		}

		p.respondCached(w, r, cache.ListKey(locale), map[string]any{"posts": views})
	}
}

// Get returns one published post by slug. A slug that only matches an
// alias gets a permanent redirect to the canonical path, so links keep
// working after an import renames a slug.
func (p *Public) Get(locale models.Locale) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		slugParam := chi.URLParam(r, "slug")

		if p.postCache != nil {
			if cached, ok := p.postCache.Get(ctx, cache.DetailKey(locale, slugParam)); ok {
				writeCached(w, cached)
				return
			}
		}

		post, err := p.postStore.FindPublishedBySlug(ctx, locale, slugParam)
		if err != nil {
			slog.Error("find post by slug failed", "error", err, "slug", slugParam)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if post == nil {
			// Canonical miss: try the alias table before giving up.
			alias, err := p.postStore.FindAlias(ctx, locale, slugParam)
			if err != nil {
				slog.Error("alias lookup failed", "error", err, "slug", slugParam)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if alias != nil {
				target, err := p.postStore.FindByID(ctx, alias.PostID)
				if err == nil && target != nil && target.IsPublished() {
					http.Redirect(w, r, PostPath(locale, target.Slug), http.StatusMovedPermanently)
					return
				}
			}
			writeError(w, http.StatusNotFound, "post not found")
			return
		}

		view, err := newPostView(post, true)
		if err != nil {
			slog.Error("markdown render failed", "error", err, "slug", slugParam)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		p.respondCached(w, r, cache.DetailKey(locale, slugParam), view)
	}
}

// Subscribe registers a newsletter signup. Re-subscribing with a new
// locale updates the existing row instead of erroring.
func (p *Public) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string `json:"email"`
		Locale string `json:"locale"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	locale := models.Locale(req.Locale)
	if req.Locale == "" {
		locale = models.LocaleEN
	}
	if !locale.Valid() {
		writeError(w, http.StatusBadRequest, "locale must be en or zh")
		return
	}

	sub, err := p.subscriberStore.Create(r.Context(), email, locale)
	if err != nil {
		slog.Error("subscriber create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     sub.ID,
		"status": sub.Status,
	})
}

// SubscribeConfirm marks a pending subscription as confirmed. The id
// doubles as the confirmation token in the signup email link.
func (p *Public) SubscribeConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid confirmation id")
		return
	}

	if err := p.subscriberStore.Confirm(r.Context(), id); err != nil {
		slog.Error("subscriber confirm failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"confirmed": true})
}

// respondCached writes v as JSON and stores the same bytes in the
// response cache when one is configured.
func (p *Public) respondCached(w http.ResponseWriter, r *http.Request, key string, v any) {
	body, err := encodeForCache(v)
	if err != nil {
		slog.Error("response encode failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if p.postCache != nil {
		p.postCache.Set(r.Context(), key, body)
	}
	writeCached(w, body)
}

func writeCached(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(body)
}
