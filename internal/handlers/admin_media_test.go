package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMediaUpload_StorageNotConfigured(t *testing.T) {
	media := NewMedia(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/api/media", nil)
	rec := httptest.NewRecorder()
	media.Upload(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
}

func TestExtensionFromType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", ".jpg"},
		{"image/png", ".png"},
		{"image/gif", ".gif"},
		{"image/webp", ".webp"},
		{"application/octet-stream", ""},
	}
	for _, tt := range tests {
		if got := extensionFromType(tt.contentType); got != tt.want {
			t.Errorf("extensionFromType(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/api/media?limit=25&offset=abc", nil)

	if got := queryInt(req, "limit", 50); got != 25 {
		t.Errorf("limit: got %d, want 25", got)
	}
	if got := queryInt(req, "offset", 0); got != 0 {
		t.Errorf("offset fallback: got %d, want 0", got)
	}
	if got := queryInt(req, "missing", 7); got != 7 {
		t.Errorf("missing fallback: got %d, want 7", got)
	}
}
