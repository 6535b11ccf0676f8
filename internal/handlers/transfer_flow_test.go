package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/poer2023/tdp/internal/models"
	"github.com/poer2023/tdp/internal/reconcile"
)

// multipartArchive builds a multipart body with the archive under the
// field name the import endpoint expects.
func multipartArchive(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("archive", "export.zip")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

type importResponse struct {
	Token    string           `json:"token"`
	Report   reconcile.Report `json:"report"`
	Warnings []string         `json:"warnings"`
}

func TestExportImportRoundTripHTTP(t *testing.T) {
	env := newTestEnv(t)
	cleanPostGroups(t, env.DB, "transfer-http")
	t.Cleanup(func() { cleanPostGroups(t, env.DB, "transfer-http") })

	seedPublishedPost(t, env, "transfer-http", models.LocaleEN, "Transfer Round Trip", "transfer-round-trip")
	seedPublishedPost(t, env, "transfer-http", models.LocaleZH, "传输测试", "chuan-shu-ce-shi")

	// Export.
	rec := httptest.NewRecorder()
	env.Transfer.Export(rec, httptest.NewRequest(http.MethodGet, "/admin/api/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status: got %d (body %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("export content type: got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("export disposition: got %q", cd)
	}
	archive := rec.Body.Bytes()

	// Dry-run upload.
	body, contentType := multipartArchive(t, archive)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/import", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	env.Transfer.ImportDryRun(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("dry-run status: got %d (body %s)", rec.Code, rec.Body.String())
	}

	var dry importResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dry); err != nil {
		t.Fatalf("decode dry-run: %v", err)
	}
	if dry.Token == "" {
		t.Fatal("dry-run should return an import token")
	}
	if dry.Report.Stats.Errors != 0 {
		t.Fatalf("dry-run errors: %+v", dry.Report)
	}

	// Apply. Re-importing an unmodified export is all skips.
	rec = httptest.NewRecorder()
	env.Transfer.ImportApply(rec, httptest.NewRequest(http.MethodPost, "/admin/api/import/apply",
		strings.NewReader(`{"token":"`+dry.Token+`"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status: got %d (body %s)", rec.Code, rec.Body.String())
	}

	var applied importResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &applied); err != nil {
		t.Fatalf("decode apply: %v", err)
	}
	if applied.Report.Stats.Created != 0 || applied.Report.Stats.Updated != 0 {
		t.Errorf("re-import of own export should be pure skips: %+v", applied.Report.Stats)
	}

	// The token is single-use.
	rec = httptest.NewRecorder()
	env.Transfer.ImportApply(rec, httptest.NewRequest(http.MethodPost, "/admin/api/import/apply",
		strings.NewReader(`{"token":"`+dry.Token+`"}`)))
	if rec.Code != http.StatusGone {
		t.Errorf("token reuse: got %d, want 410", rec.Code)
	}
}

func TestImportDryRun_RejectsNonZip(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartArchive(t, []byte("this is not a zip archive"))
	req := httptest.NewRequest(http.MethodPost, "/admin/api/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.Transfer.ImportDryRun(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestImportDryRun_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no archive here")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/admin/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.Transfer.ImportDryRun(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestImportApply_UnknownToken(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.Transfer.ImportApply(rec, httptest.NewRequest(http.MethodPost, "/admin/api/import/apply",
		strings.NewReader(`{"token":"deadbeefdeadbeefdeadbeefdeadbeef"}`)))

	if rec.Code != http.StatusGone {
		t.Errorf("status: got %d, want 410", rec.Code)
	}
}

func TestImportDryRun_DoesNotWrite(t *testing.T) {
	env := newTestEnv(t)
	cleanPostGroups(t, env.DB, "transfer-dry")
	t.Cleanup(func() { cleanPostGroups(t, env.DB, "transfer-dry") })

	doc := "---\ntitle: Dry Run Only\nslug: transfer-dry-only\nlocale: en\nstatus: draft\npublishedAt: 2026-02-10T09:00:00Z\ngroupId: transfer-dry\n---\n\nbody\n"
	archive := buildTestArchive(t, map[string]string{"transfer-dry-only.md": doc})

	body, contentType := multipartArchive(t, archive)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.Transfer.ImportDryRun(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("dry-run status: got %d (body %s)", rec.Code, rec.Body.String())
	}

	var dry importResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dry); err != nil {
		t.Fatalf("decode dry-run: %v", err)
	}
	if dry.Report.Stats.Created != 1 {
		t.Errorf("expected one planned create: %+v", dry.Report.Stats)
	}

	post, err := env.PostStore.FindBySlugAndLocale(context.Background(), models.LocaleEN, "transfer-dry-only")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if post != nil {
		t.Error("dry-run must not create posts")
	}
}
