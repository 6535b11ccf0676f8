// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

// Package transfer glues the pipeline ends together: export walks the
// post store into an archive, import walks an archive through the
// codec and the reconcile engine.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/poer2023/tdp/internal/archive"
	"github.com/poer2023/tdp/internal/frontmatter"
	"github.com/poer2023/tdp/internal/models"
	"github.com/poer2023/tdp/internal/reconcile"
)

// ManifestVersion is written into every exported archive.
const ManifestVersion = "1"

// PostLister reads every post for export.
type PostLister interface {
	ListAll(ctx context.Context) ([]*models.Post, error)
}

// DocumentPath returns the archive path for a post: Chinese posts go
// under zh/, English posts sit at the root.
func DocumentPath(p *models.Post) string {
	if p.Locale == models.LocaleZH {
		return "zh/" + p.Slug + ".md"
	}
	return p.Slug + ".md"
}

// Exporter serializes the whole post store into a zip archive.
type Exporter struct {
	posts PostLister
	now   func() time.Time
}

func NewExporter(posts PostLister) *Exporter {
	return &Exporter{posts: posts, now: time.Now}
}

// Export renders every post to a frontmatter document and packs the
// lot, plus a manifest, into a zip.
func (e *Exporter) Export(ctx context.Context) ([]byte, error) {
	posts, err := e.posts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts for export: %w", err)
	}

	docs := make([]archive.Document, 0, len(posts))
	manifest := archive.Manifest{
		ExportedAt: e.now().UTC(),
		Version:    ManifestVersion,
		Posts:      make([]archive.ManifestPost, 0, len(posts)),
	}
	for _, p := range posts {
		content, err := frontmatter.Serialize(p)
		if err != nil {
			return nil, fmt.Errorf("serialize post %s: %w", p.ID, err)
		}
		docs = append(docs, archive.Document{Path: DocumentPath(p), Content: content})
		manifest.Posts = append(manifest.Posts, archive.ManifestPost{
			ID:     p.ID.String(),
			Slug:   p.Slug,
			Locale: string(p.Locale),
			Status: string(p.Status),
		})
	}

	data, err := archive.Pack(&manifest, docs)
	if err != nil {
		return nil, fmt.Errorf("pack export archive: %w", err)
	}
	return data, nil
}

// Result is a reconciliation report plus any archive-level warnings
// (unsafe paths the unpacker refused to read).
type Result struct {
	Report   *reconcile.Report `json:"report"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Importer drives an uploaded archive through unpack, parse, and the
// reconcile engine.
type Importer struct {
	engine       *reconcile.Engine
	maxEntrySize int64
}

// NewImporter wraps the engine. maxEntrySize caps the decompressed
// size of a single document; pass 0 for the default.
func NewImporter(engine *reconcile.Engine, maxEntrySize int64) *Importer {
	if maxEntrySize <= 0 {
		maxEntrySize = archive.DefaultMaxEntrySize
	}
	return &Importer{engine: engine, maxEntrySize: maxEntrySize}
}

// DryRun previews the archive without writing anything. The error is
// non-nil only when the payload is not a readable zip or the context
// is cancelled; per-document problems come back as error actions.
func (i *Importer) DryRun(ctx context.Context, data []byte) (*Result, error) {
	candidates, warnings, err := i.decode(data)
	if err != nil {
		return nil, err
	}
	report, err := i.engine.DryRun(ctx, candidates)
	if err != nil {
		return nil, err
	}
	return &Result{Report: report, Warnings: warnings}, nil
}

// Apply imports the archive for real, re-deriving every decision
// against current store state.
func (i *Importer) Apply(ctx context.Context, data []byte) (*Result, error) {
	candidates, warnings, err := i.decode(data)
	if err != nil {
		return nil, err
	}
	report, err := i.engine.Apply(ctx, candidates)
	if report == nil {
		return nil, err
	}
	return &Result{Report: report, Warnings: warnings}, err
}

// decode unpacks the archive and parses every markdown entry into a
// candidate. Entries the unpacker flagged (oversized) and documents
// the codec rejects (missing delimiters, bad YAML) become candidates
// carrying that error, so every archive entry shows up in the report
// under its own path.
func (i *Importer) decode(data []byte) ([]*frontmatter.Candidate, []string, error) {
	unpacked, err := archive.Unpack(data, i.maxEntrySize)
	if err != nil {
		return nil, nil, fmt.Errorf("read import archive: %w", err)
	}

	candidates := make([]*frontmatter.Candidate, 0, len(unpacked.Entries))
	for _, entry := range unpacked.Entries {
		if entry.Err != nil {
			c := &frontmatter.Candidate{SourcePath: entry.Path}
			c.AddError("file", "%v", entry.Err)
			candidates = append(candidates, c)
			continue
		}
		c, err := frontmatter.Parse(entry.Path, string(entry.Data))
		if err != nil {
			c = &frontmatter.Candidate{SourcePath: entry.Path}
			c.AddError("document", "%v", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, unpacked.Warnings, nil
}
