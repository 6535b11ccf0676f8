package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func testManifest() *Manifest {
	return &Manifest{
		ExportedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Version:    "1",
		Posts: []ManifestPost{
			{ID: "a", Slug: "hello", Locale: "en", Status: "published"},
			{ID: "b", Slug: "ni-hao", Locale: "zh", Status: "published"},
		},
	}
}

// buildZip constructs a zip in memory for unpack tests. Using the raw
// zip writer directly lets tests produce archives Pack would refuse.
func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestPackAndUnpackRoundTrip(t *testing.T) {
	docs := []Document{
		{Path: "hello.md", Content: "---\ntitle: Hello\n---\n\nbody"},
		{Path: "zh/ni-hao.md", Content: "---\ntitle: 你好\n---\n\n正文"},
	}

	data, err := Pack(testManifest(), docs)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	result, err := Unpack(data, 0)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	if len(result.Entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(result.Entries))
	}
	byPath := map[string]string{}
	for _, e := range result.Entries {
		if e.Err != nil {
			t.Fatalf("entry %s: %v", e.Path, e.Err)
		}
		byPath[e.Path] = string(e.Data)
	}
	if byPath["hello.md"] != docs[0].Content {
		t.Errorf("hello.md content mismatch: %q", byPath["hello.md"])
	}
	if byPath["zh/ni-hao.md"] != docs[1].Content {
		t.Errorf("zh/ni-hao.md content mismatch: %q", byPath["zh/ni-hao.md"])
	}

	if result.Manifest == nil {
		t.Fatal("manifest missing from unpack result")
	}
	if len(result.Manifest.Posts) != 2 {
		t.Errorf("manifest posts: got %d, want 2", len(result.Manifest.Posts))
	}
	if result.Manifest.Version != "1" {
		t.Errorf("manifest version: got %q", result.Manifest.Version)
	}
}

func TestPackDuplicateEntry(t *testing.T) {
	docs := []Document{
		{Path: "dup.md", Content: "one"},
		{Path: "dup.md", Content: "two"},
	}

	_, err := Pack(testManifest(), docs)
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("Pack = %v, want ErrDuplicateEntry", err)
	}
}

func TestUnpackEmptyArchive(t *testing.T) {
	data := buildZip(t, nil)

	result, err := Unpack(data, 0)
	if err != nil {
		t.Fatalf("Unpack of empty archive must not fail: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("entries: got %d, want 0", len(result.Entries))
	}
	if result.Manifest != nil {
		t.Error("manifest: got non-nil for archive without one")
	}
}

func TestUnpackIgnoresNonMarkdown(t *testing.T) {
	data := buildZip(t, map[string]string{
		"post.md":    "content",
		"image.png":  "\x89PNG",
		"notes.txt":  "notes",
		"zh/post.md": "content",
	})

	result, err := Unpack(data, 0)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("entries: got %d, want only the 2 markdown files", len(result.Entries))
	}
}

func TestUnpackUnsafePaths(t *testing.T) {
	data := buildZip(t, map[string]string{
		"../escape.md":        "evil",
		"ok/../../escape2.md": "evil",
		"/absolute.md":        "evil",
		"safe.md":             "fine",
	})

	result, err := Unpack(data, 0)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	if len(result.Entries) != 1 || result.Entries[0].Path != "safe.md" {
		t.Errorf("entries: got %+v, want only safe.md", result.Entries)
	}
	if len(result.Warnings) != 3 {
		t.Errorf("warnings: got %v, want 3 unsafe-path warnings", result.Warnings)
	}
}

func TestUnpackOversizedEntry(t *testing.T) {
	big := strings.Repeat("x", 2048)
	data := buildZip(t, map[string]string{
		"big.md":   big,
		"small.md": "ok",
	})

	result, err := Unpack(data, 1024)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(result.Entries))
	}

	for _, e := range result.Entries {
		switch e.Path {
		case "big.md":
			if !errors.Is(e.Err, ErrContentTooLarge) {
				t.Errorf("big.md err = %v, want ErrContentTooLarge", e.Err)
			}
		case "small.md":
			if e.Err != nil || string(e.Data) != "ok" {
				t.Errorf("small.md unexpectedly affected: %+v", e)
			}
		}
	}
}

func TestUnpackPreservesNonASCIINames(t *testing.T) {
	data := buildZip(t, map[string]string{
		"zh/中文文件名.md": "正文",
	})

	result, err := Unpack(data, 0)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Path != "zh/中文文件名.md" {
		t.Errorf("non-ASCII entry name not preserved: %+v", result.Entries)
	}
}

func TestUnpackNotAZip(t *testing.T) {
	_, err := Unpack([]byte("this is not a zip archive"), 0)
	if err == nil {
		t.Error("Unpack of garbage must fail with a top-level error")
	}
}

func TestUnpackManifestAloneIsNotACandidate(t *testing.T) {
	data := buildZip(t, map[string]string{
		ManifestName: `{"exportedAt":"2026-01-02T03:04:05Z","version":"1","posts":[]}`,
	})

	result, err := Unpack(data, 0)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("manifest must not appear as a candidate entry: %+v", result.Entries)
	}
	if result.Manifest == nil {
		t.Error("manifest should still be decoded and returned")
	}
}
