// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package transfer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/poer2023/tdp/internal/archive"
	"github.com/poer2023/tdp/internal/models"
	"github.com/poer2023/tdp/internal/reconcile"
)

var testPublished = time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)

func seedBilingualPair(repo *reconcile.MemoryRepository) {
	repo.Seed(&models.Post{
		GroupID:     "group-rt",
		Locale:      models.LocaleEN,
		Title:       "Round Trip",
		Slug:        "round-trip",
		Content:     "English body.\n",
		Excerpt:     "A short excerpt.",
		Tags:        []string{"go", "testing"},
		Status:      models.PostStatusPublished,
		PublishedAt: &testPublished,
	})
	repo.Seed(&models.Post{
		GroupID:     "group-rt",
		Locale:      models.LocaleZH,
		Title:       "测试文章",
		Slug:        "ce-shi",
		Content:     "中文正文。\n",
		Status:      models.PostStatusPublished,
		PublishedAt: &testPublished,
	})
}

func TestDocumentPath(t *testing.T) {
	en := &models.Post{Locale: models.LocaleEN, Slug: "hello"}
	zh := &models.Post{Locale: models.LocaleZH, Slug: "ni-hao"}
	if got := DocumentPath(en); got != "hello.md" {
		t.Errorf("en path = %q", got)
	}
	if got := DocumentPath(zh); got != "zh/ni-hao.md" {
		t.Errorf("zh path = %q", got)
	}
}

func TestExportLayoutAndManifest(t *testing.T) {
	repo := reconcile.NewMemoryRepository()
	seedBilingualPair(repo)

	data, err := NewExporter(repo).Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	unpacked, err := archive.Unpack(data, 0)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	paths := make(map[string]bool)
	for _, e := range unpacked.Entries {
		paths[e.Path] = true
	}
	if !paths["round-trip.md"] || !paths["zh/ce-shi.md"] {
		t.Errorf("archive entries = %v", paths)
	}
	if unpacked.Manifest == nil {
		t.Fatal("archive has no manifest")
	}
	if unpacked.Manifest.Version != ManifestVersion {
		t.Errorf("manifest version = %q", unpacked.Manifest.Version)
	}
	if len(unpacked.Manifest.Posts) != 2 {
		t.Errorf("manifest lists %d posts", len(unpacked.Manifest.Posts))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	source := reconcile.NewMemoryRepository()
	seedBilingualPair(source)

	data, err := NewExporter(source).Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	target := reconcile.NewMemoryRepository()
	importer := NewImporter(reconcile.New(target, target), 0)

	result, err := importer.Apply(context.Background(), data)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Report.Stats.Created != 2 || result.Report.Stats.Errors != 0 {
		t.Fatalf("first import stats = %+v", result.Report.Stats)
	}

	en, err := target.FindByGroupAndLocale(context.Background(), "group-rt", models.LocaleEN)
	if err != nil || en == nil {
		t.Fatalf("imported English post missing: %v", err)
	}
	if en.Content != "English body.\n" || en.Excerpt != "A short excerpt." {
		t.Errorf("English post body/excerpt mangled: %q / %q", en.Content, en.Excerpt)
	}
	if len(en.Tags) != 2 || en.Tags[0] != "go" {
		t.Errorf("English post tags = %v", en.Tags)
	}
	if en.PublishedAt == nil || !en.PublishedAt.Equal(testPublished) {
		t.Errorf("English post publishedAt = %v", en.PublishedAt)
	}

	// The same archive applied again must be a pure no-op.
	again, err := importer.Apply(context.Background(), data)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if again.Report.Stats.Skipped != 2 || again.Report.Stats.Created != 0 {
		t.Errorf("second import stats = %+v, want pure skip", again.Report.Stats)
	}
}

// TestReimportOfUntouchedExportSkips feeds an export straight back into
// the repository it came from and expects a pure skip. The stored
// timestamp carries microseconds, as every post written through the
// admin path does, so any precision loss in the codec shows up here as
// a spurious update.
func TestReimportOfUntouchedExportSkips(t *testing.T) {
	precise := time.Date(2026, 2, 1, 8, 30, 15, 678901000, time.UTC)
	repo := reconcile.NewMemoryRepository()
	repo.Seed(&models.Post{
		GroupID:     "group-precise",
		Locale:      models.LocaleEN,
		Title:       "Precise Timestamps",
		Slug:        "precise-timestamps",
		Content:     "Body.\n",
		Status:      models.PostStatusPublished,
		PublishedAt: &precise,
	})

	data, err := NewExporter(repo).Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	result, err := NewImporter(reconcile.New(repo, repo), 0).DryRun(context.Background(), data)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if result.Report.Stats.Skipped != 1 || result.Report.Stats.Updated != 0 {
		t.Errorf("stats = %+v, want the untouched post skipped", result.Report.Stats)
	}
	for _, a := range result.Report.Actions {
		if a.Kind != reconcile.ActionSkip {
			t.Errorf("%s: kind = %s (%s), want skip", a.SourcePath, a.Kind, a.Reason)
		}
	}
}

func TestImportCreatesPinyinAlias(t *testing.T) {
	source := reconcile.NewMemoryRepository()
	seedBilingualPair(source)

	data, err := NewExporter(source).Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	target := reconcile.NewMemoryRepository()
	if _, err := NewImporter(reconcile.New(target, target), 0).Apply(context.Background(), data); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// The Chinese post keeps its authored slug "ce-shi"; the full
	// pinyin of the title is recorded as an alias.
	alias, err := target.FindAlias(context.Background(), models.LocaleZH, "ce-shi-wen-zhang")
	if err != nil || alias == nil {
		t.Fatalf("pinyin alias missing: %v", err)
	}
}

func TestImportMalformedDocumentBecomesErrorAction(t *testing.T) {
	data, err := archive.Pack(&archive.Manifest{Version: ManifestVersion}, []archive.Document{
		{Path: "broken.md", Content: "no frontmatter here\n"},
		{Path: "good.md", Content: "---\ntitle: Good\nslug: good\nlocale: en\nstatus: published\npublishedAt: \"2026-02-01T08:30:00Z\"\ngroupId: g-good\n---\n\nBody.\n"},
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	target := reconcile.NewMemoryRepository()
	result, err := NewImporter(reconcile.New(target, target), 0).DryRun(context.Background(), data)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if result.Report.Stats.Errors != 1 || result.Report.Stats.Created != 1 {
		t.Fatalf("stats = %+v, want 1 error and 1 create", result.Report.Stats)
	}
	var found bool
	for _, a := range result.Report.Actions {
		if a.SourcePath == "broken.md" {
			found = true
			if a.Kind != reconcile.ActionError || !strings.Contains(a.Reason, "document") {
				t.Errorf("broken.md action = %+v", a)
			}
		}
	}
	if !found {
		t.Error("broken.md missing from the report")
	}
}

func TestImportOversizedEntryBecomesErrorAction(t *testing.T) {
	big := strings.Repeat("x", 4096)
	data, err := archive.Pack(&archive.Manifest{Version: ManifestVersion}, []archive.Document{
		{Path: "big.md", Content: "---\ntitle: Big\nslug: big\nlocale: en\nstatus: draft\npublishedAt: \"2026-02-01T08:30:00Z\"\n---\n\n" + big},
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	target := reconcile.NewMemoryRepository()
	result, err := NewImporter(reconcile.New(target, target), 1024).DryRun(context.Background(), data)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if result.Report.Stats.Errors != 1 {
		t.Fatalf("stats = %+v", result.Report.Stats)
	}
}

func TestImportWarnsOnUnsafePaths(t *testing.T) {
	data, err := archive.Pack(&archive.Manifest{Version: ManifestVersion}, []archive.Document{
		{Path: "../escape.md", Content: "irrelevant"},
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	target := reconcile.NewMemoryRepository()
	result, err := NewImporter(reconcile.New(target, target), 0).DryRun(context.Background(), data)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("warnings = %v", result.Warnings)
	}
	if len(result.Report.Actions) != 0 {
		t.Errorf("unsafe entry still produced actions: %+v", result.Report.Actions)
	}
}

func TestImportRejectsNonZipPayload(t *testing.T) {
	target := reconcile.NewMemoryRepository()
	importer := NewImporter(reconcile.New(target, target), 0)
	if _, err := importer.DryRun(context.Background(), []byte("definitely not a zip")); err == nil {
		t.Fatal("expected an error for a non-zip payload")
	}
}
