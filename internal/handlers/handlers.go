// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

// Package handlers implements the HTTP API: public read endpoints for
// the blog frontend, and the authenticated admin endpoints for content
// management, media, and the import/export pipeline. All responses are
// JSON; rendering is the frontend's job.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// maxJSONBody caps JSON request bodies. Post content is the largest
// legitimate payload and stays well under this.
const maxJSONBody = 4 << 20

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

// writeError emits a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// encodeForCache marshals v to the exact bytes a cached response will
// replay later.
func encodeForCache(v any) ([]byte, error) {
	return json.Marshal(v)
}

// decodeJSON reads a size-limited JSON request body into dst. Unknown
// fields are rejected so client typos surface as 400s instead of
// silently dropped fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
		}
		return err
	}
	return nil
}
