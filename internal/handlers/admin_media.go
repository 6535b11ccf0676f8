// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/poer2023/tdp/internal/imaging"
	"github.com/poer2023/tdp/internal/middleware"
	"github.com/poer2023/tdp/internal/models"
	"github.com/poer2023/tdp/internal/storage"
	"github.com/poer2023/tdp/internal/store"
)

// maxUploadSize is the maximum allowed file upload size (50 MB).
const maxUploadSize = 50 << 20

// allowedMediaTypes defines MIME types accepted for upload.
var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Media groups the gallery photo management handlers. Files live in
// S3-compatible storage; metadata lives in PostgreSQL.
type Media struct {
	mediaStore    *store.MediaStore
	storageClient *storage.Client
}

// NewMedia creates a new Media handler group.
func NewMedia(mediaStore *store.MediaStore, storageClient *storage.Client) *Media {
	return &Media{
		mediaStore:    mediaStore,
		storageClient: storageClient,
	}
}

// mediaView adds resolved URLs to the stored metadata.
type mediaView struct {
	models.Media
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url,omitempty"`
}

func (m *Media) view(item models.Media) mediaView {
	v := mediaView{Media: item, URL: m.storageClient.FileURL(item.S3Key)}
	if item.ThumbS3Key != nil {
		v.ThumbURL = m.storageClient.FileURL(*item.ThumbS3Key)
	}
	return v
}

// Upload accepts a multipart photo upload, stores the original and a
// generated thumbnail in S3, and records metadata in the database.
func (m *Media) Upload(w http.ResponseWriter, r *http.Request) {
	if m.storageClient == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}

	sess := middleware.SessionFromCtx(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	// Sniff the real content type; never trust the client header.
	contentType := http.DetectContentType(fileBytes)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if !allowedMediaTypes[contentType] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file type %q is not allowed", contentType))
		return
	}

	width, height, err := imaging.Dimensions(fileBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is not a valid image")
		return
	}

	// Generate a unique storage key.
	now := time.Now()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = extensionFromType(contentType)
	}
	fileID := uuid.New().String()
	s3Key := fmt.Sprintf("media/%d/%02d/%s%s", now.Year(), now.Month(), fileID, ext)

	ctx := r.Context()
	if err := m.storageClient.Upload(ctx, s3Key, contentType, bytes.NewReader(fileBytes), int64(len(fileBytes))); err != nil {
		slog.Error("s3 upload failed", "error", err, "key", s3Key)
		writeError(w, http.StatusInternalServerError, "failed to upload file")
		return
	}

	// Thumbnail for raster types. Best effort: a failed thumbnail
	// never fails the upload.
	var thumbKey *string
	if imaging.Thumbable(contentType) {
		thumbData, err := imaging.Thumbnail(bytes.NewReader(fileBytes), imaging.DefaultThumbWidth)
		if err != nil {
			slog.Warn("thumbnail generation failed", "error", err, "key", s3Key)
		} else if thumbData != nil {
			tk := fmt.Sprintf("media/%d/%02d/%s_thumb.jpg", now.Year(), now.Month(), fileID)
			if err := m.storageClient.Upload(ctx, tk, "image/jpeg", bytes.NewReader(thumbData), int64(len(thumbData))); err != nil {
				slog.Warn("thumbnail upload failed", "error", err, "key", tk)
			} else {
				thumbKey = &tk
			}
		}
	}

	media := &models.Media{
		Filename:     fileID + ext,
		OriginalName: header.Filename,
		ContentType:  contentType,
		SizeBytes:    int64(len(fileBytes)),
		Width:        width,
		Height:       height,
		S3Key:        s3Key,
		ThumbS3Key:   thumbKey,
		UploaderID:   sess.UserID,
	}
	if altText := r.FormValue("alt_text"); altText != "" {
		media.AltText = &altText
	}

	created, err := m.mediaStore.Create(ctx, media)
	if err != nil {
		slog.Error("media db insert failed", "error", err, "key", s3Key)
		writeError(w, http.StatusInternalServerError, "failed to save file metadata")
		return
	}

	writeJSON(w, http.StatusCreated, m.view(*created))
}

// List returns a page of media items, newest first.
func (m *Media) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx := r.Context()
	items, err := m.mediaStore.List(ctx, limit, offset)
	if err != nil {
		slog.Error("media list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := m.mediaStore.Count(ctx)
	if err != nil {
		slog.Error("media count failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]mediaView, len(items))
	for i, item := range items {
		views[i] = m.view(item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"media": views,
		"total": total,
	})
}

// Delete removes a media item from both the database and S3. The DB
// row goes first; orphaned S3 objects are harmless, orphaned rows are
// broken links.
func (m *Media) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	ctx := r.Context()
	deleted, err := m.mediaStore.Delete(ctx, id)
	if err != nil {
		slog.Error("media delete failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if deleted == nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}

	if m.storageClient != nil {
		if err := m.storageClient.Delete(ctx, deleted.S3Key); err != nil {
			slog.Warn("s3 delete failed", "error", err, "key", deleted.S3Key)
		}
		if deleted.ThumbS3Key != nil {
			if err := m.storageClient.Delete(ctx, *deleted.ThumbS3Key); err != nil {
				slog.Warn("s3 thumb delete failed", "error", err, "key", *deleted.ThumbS3Key)
			}
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// extensionFromType returns a file extension for known MIME types.
func extensionFromType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
