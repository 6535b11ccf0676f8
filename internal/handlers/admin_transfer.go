// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/poer2023/tdp/internal/cache"
	"github.com/poer2023/tdp/internal/transfer"
)

// maxImportSize caps an uploaded archive (64 MB). Individual entries
// inside the archive have their own, much smaller limit.
const maxImportSize = 64 << 20

// Transfer groups the export and import endpoints. Import is a
// two-step flow: a dry-run upload parks the archive in Valkey and
// returns a preview plus a one-time token; apply redeems the token and
// re-derives the plan against the live store before writing.
type Transfer struct {
	exporter  *transfer.Exporter
	importer  *transfer.Importer
	sessions  *cache.ImportSessions
	postCache *cache.PostCache
}

// NewTransfer creates a new Transfer handler group. postCache may be nil.
func NewTransfer(exporter *transfer.Exporter, importer *transfer.Importer, sessions *cache.ImportSessions, postCache *cache.PostCache) *Transfer {
	return &Transfer{
		exporter:  exporter,
		importer:  importer,
		sessions:  sessions,
		postCache: postCache,
	}
}

// Export streams the full content archive as a zip download.
func (t *Transfer) Export(w http.ResponseWriter, r *http.Request) {
	data, err := t.exporter.Export(r.Context())
	if err != nil {
		slog.Error("export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := fmt.Sprintf("content-export-%s.zip", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		slog.Warn("export write aborted", "error", err)
	}
}

// ImportDryRun accepts an archive upload, previews what an apply would
// do, and parks the archive under a single-use token. Nothing is
// written to the database.
func (t *Transfer) ImportDryRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize+1024)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "archive exceeds the upload limit")
		return
	}

	file, _, err := r.FormFile("archive")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing archive file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}

	result, err := t.importer.DryRun(r.Context(), data)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid archive: %v", err))
		return
	}

	token, err := t.sessions.Begin(r.Context(), data)
	if err != nil {
		slog.Error("import session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"report":   result.Report,
		"warnings": result.Warnings,
	})
}

// ImportApply redeems a dry-run token and applies the archive. The
// plan is recomputed from the current store state, so the preview the
// administrator confirmed may differ if content changed in between;
// the returned report is authoritative.
func (t *Transfer) ImportApply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	data, err := t.sessions.Take(r.Context(), req.Token)
	if err != nil {
		slog.Error("import session lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if data == nil {
		writeError(w, http.StatusGone, "import session expired or already applied")
		return
	}

	result, err := t.importer.Apply(r.Context(), data)
	if err != nil {
		slog.Error("import apply failed", "error", err)
		if result == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid archive: %v", err))
			return
		}
		// Partial apply: report what happened before the failure.
	}

	if t.postCache != nil {
		t.postCache.InvalidateAll(r.Context())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report":   result.Report,
		"warnings": result.Warnings,
	})
}
