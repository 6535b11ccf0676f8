// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/poer2023/tdp/internal/cache"
	"github.com/poer2023/tdp/internal/markdown"
	"github.com/poer2023/tdp/internal/models"
	"github.com/poer2023/tdp/internal/slug"
	"github.com/poer2023/tdp/internal/store"
)

// Admin groups the authenticated content-management handlers.
type Admin struct {
	postStore       *store.PostStore
	subscriberStore *store.SubscriberStore
	postCache       *cache.PostCache
}

// NewAdmin creates a new Admin handler group. postCache may be nil.
func NewAdmin(postStore *store.PostStore, subscriberStore *store.SubscriberStore, postCache *cache.PostCache) *Admin {
	return &Admin{
		postStore:       postStore,
		subscriberStore: subscriberStore,
		postCache:       postCache,
	}
}

// postInput is the JSON body for create and update requests.
type postInput struct {
	GroupID     string   `json:"group_id"`
	Locale      string   `json:"locale"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	PublishedAt string   `json:"published_at"`
}

// toPost validates the input and converts it to a post. Returns a
// client-facing error message, or "" on success.
func (in *postInput) toPost() (*models.Post, string) {
	locale := models.Locale(strings.ToLower(strings.TrimSpace(in.Locale)))
	status := models.PostStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if status == "" {
		status = models.PostStatusDraft
	}

	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	if msg := validatePost(in.Title, in.Slug, in.Content, locale, status, tags); msg != "" {
		return nil, msg
	}
	if msg := validateExcerpt(in.Excerpt); msg != "" {
		return nil, msg
	}

	p := &models.Post{
		GroupID: strings.TrimSpace(in.GroupID),
		Locale:  locale,
		Title:   strings.TrimSpace(in.Title),
		Slug:    in.Slug,
		Content: in.Content,
		Excerpt: in.Excerpt,
		Tags:    tags,
		Status:  status,
	}

	if in.PublishedAt != "" {
		ts, err := time.Parse(time.RFC3339, in.PublishedAt)
		if err != nil {
			return nil, "published_at must be RFC 3339."
		}
		p.PublishedAt = &ts
	}

	return p, ""
}

// ListPosts returns every post, drafts included, newest first.
func (a *Admin) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := a.postStore.ListAll(r.Context())
	if err != nil {
		slog.Error("admin list posts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// GetPost returns one post by id with its Markdown source.
func (a *Admin) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	post, err := a.postStore.FindByID(r.Context(), id)
	if err != nil {
		slog.Error("admin get post failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// CreatePost creates a post. An empty slug is derived from the title;
// Chinese titles go through pinyin transliteration. A Chinese post
// created with a custom slug also gets its pinyin form recorded as an
// alias so the transliterated URL keeps resolving.
func (a *Admin) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in postInput
	if err := decodeJSON(w, r, &in); err != nil {
		return
	}

	post, msg := in.toPost()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ctx := r.Context()
	derived := slug.FromTitle(post.Title)
	if post.Slug == "" {
		if derived == "" {
			writeError(w, http.StatusBadRequest, "Slug is required: it cannot be derived from this title.")
			return
		}
		post.Slug = derived
	}
	if post.GroupID == "" {
		post.GroupID = uuid.NewString()
	}

	// Reject duplicates up front for a clean 409 instead of a DB error.
	existing, err := a.postStore.FindBySlugAndLocale(ctx, post.Locale, post.Slug)
	if err != nil {
		slog.Error("slug lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "a post with this slug already exists in this locale")
		return
	}

	created, err := a.postStore.Create(ctx, post)
	if err != nil {
		slog.Error("post create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.recordPinyinAlias(r, created, derived)
	a.invalidateCache(r)
	writeJSON(w, http.StatusCreated, created)
}

// UpdatePost updates a post's editable fields. Locale and group are
// fixed at creation; the store ignores changes to them.
func (a *Admin) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	var in postInput
	if err := decodeJSON(w, r, &in); err != nil {
		return
	}

	post, msg := in.toPost()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ctx := r.Context()
	current, err := a.postStore.FindByID(ctx, id)
	if err != nil {
		slog.Error("admin get post failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}

	derived := slug.FromTitle(post.Title)
	if post.Slug == "" {
		post.Slug = current.Slug
	}

	// Slug changes must not collide with another post in the locale.
	if post.Slug != current.Slug {
		other, err := a.postStore.FindBySlugAndLocale(ctx, current.Locale, post.Slug)
		if err != nil {
			slog.Error("slug lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if other != nil && other.ID != id {
			writeError(w, http.StatusConflict, "a post with this slug already exists in this locale")
			return
		}
	}

	updated, err := a.postStore.Update(ctx, id, post)
	if err != nil {
		slog.Error("post update failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}

	// The old slug keeps resolving through the alias table.
	if updated.Slug != current.Slug {
		if err := a.postStore.CreateAlias(ctx, updated.Locale, current.Slug, updated.ID); err != nil {
			slog.Warn("alias create failed", "error", err, "slug", current.Slug)
		}
	}
	a.recordPinyinAlias(r, updated, derived)
	a.invalidateCache(r)
	writeJSON(w, http.StatusOK, updated)
}

// DeletePost removes a post and, via the schema, its aliases.
func (a *Admin) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	if err := a.postStore.Delete(r.Context(), id); err != nil {
		slog.Error("post delete failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.invalidateCache(r)
	w.WriteHeader(http.StatusNoContent)
}

// Preview renders Markdown to HTML for the editor's preview pane.
func (a *Admin) Preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	html, err := markdown.ToHTML(req.Markdown)
	if err != nil {
		slog.Error("markdown preview failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": html})
}

// ListSubscribers returns all newsletter subscribers.
func (a *Admin) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := a.subscriberStore.List(r.Context())
	if err != nil {
		slog.Error("list subscribers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscribers": subs})
}

// DeleteSubscriber removes a subscriber.
func (a *Admin) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscriber id")
		return
	}

	if err := a.subscriberStore.Delete(r.Context(), id); err != nil {
		slog.Error("subscriber delete failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordPinyinAlias stores the transliterated slug as an alias when a
// Chinese post uses a custom slug. Best effort.
func (a *Admin) recordPinyinAlias(r *http.Request, p *models.Post, derived string) {
	if !p.Locale.IsCJK() || derived == "" || derived == p.Slug {
		return
	}
	if err := a.postStore.CreateAlias(r.Context(), p.Locale, derived, p.ID); err != nil {
		slog.Warn("pinyin alias create failed", "error", err, "slug", derived)
	}
}

// invalidateCache drops all cached public responses after a mutation.
func (a *Admin) invalidateCache(r *http.Request) {
	if a.postCache != nil {
		a.postCache.InvalidateAll(r.Context())
	}
}
