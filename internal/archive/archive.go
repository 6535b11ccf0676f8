// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

// Package archive bundles Markdown documents and an export manifest
// into a zip file and reverses the process for imports. Entry names
// are preserved byte-for-byte (Chinese filenames included); the only
// path rule enforced is that entries may not escape the archive root.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	// ManifestName is the fixed name of the manifest entry.
	ManifestName = "manifest.json"

	// markdownExt marks the entries that become import candidates.
	markdownExt = ".md"

	// DefaultMaxEntrySize caps a single Markdown entry (2 MB). An
	// oversized entry becomes a per-entry error, not a batch failure.
	DefaultMaxEntrySize = 2 << 20
)

var (
	// ErrDuplicateEntry reports two documents resolving to the same
	// path during packing. The exporter controls all paths, so this is
	// a logic bug upstream and aborts the export.
	ErrDuplicateEntry = errors.New("duplicate archive entry")

	// ErrUnsafePath reports an entry that tries to escape the archive
	// root via parent-directory segments or an absolute path.
	ErrUnsafePath = errors.New("unsafe archive path")

	// ErrContentTooLarge reports an entry exceeding the size ceiling.
	ErrContentTooLarge = errors.New("entry content too large")
)

// Manifest is written alongside exported documents and enables
// round-trip verification of an archive's contents.
type Manifest struct {
	ExportedAt time.Time      `json:"exportedAt"`
	Version    string         `json:"version"`
	Posts      []ManifestPost `json:"posts"`
}

// ManifestPost is one per-post summary line in the manifest.
type ManifestPost struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Locale string `json:"locale"`
	Status string `json:"status"`
}

// Document is one Markdown file to pack, at a caller-supplied path.
type Document struct {
	Path    string
	Content string
}

// Entry is one Markdown entry found while unpacking. Data is nil when
// Err is set (for example an oversized entry): the caller turns such
// entries into per-candidate errors and keeps going.
type Entry struct {
	Path string
	Data []byte
	Err  error
}

// UnpackResult is everything extracted from an uploaded archive.
type UnpackResult struct {
	Entries  []Entry
	Manifest *Manifest // nil when the archive carries none
	Warnings []string  // skipped unsafe paths and unreadable extras
}

// Pack bundles the manifest and documents into a zip archive. Entry
// paths must be unique; a collision fails the whole export with
// ErrDuplicateEntry.
func Pack(m *Manifest, docs []Document) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]struct{}, len(docs)+1)
	for _, doc := range docs {
		if _, dup := seen[doc.Path]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, doc.Path)
		}
		seen[doc.Path] = struct{}{}

		w, err := zw.Create(doc.Path)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", doc.Path, err)
		}
		if _, err := io.WriteString(w, doc.Content); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", doc.Path, err)
		}
	}

	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	w, err := zw.Create(ManifestName)
	if err != nil {
		return nil, fmt.Errorf("create manifest entry: %w", err)
	}
	if _, err := w.Write(manifest); err != nil {
		return nil, fmt.Errorf("write manifest entry: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack enumerates the Markdown entries of an uploaded zip archive.
// Non-Markdown entries are ignored; the manifest, when present, is
// decoded and returned for informational display. An archive with zero
// Markdown entries is valid and yields an empty entry list.
//
// maxEntrySize caps the uncompressed size of a single entry; pass 0
// for DefaultMaxEntrySize. Oversized entries come back with Err set
// rather than aborting the batch. Only a structurally unreadable
// archive fails the call itself.
func Unpack(data []byte, maxEntrySize int64) (*UnpackResult, error) {
	if maxEntrySize <= 0 {
		maxEntrySize = DefaultMaxEntrySize
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	result := &UnpackResult{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		if !safePath(f.Name) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped %s: %v", f.Name, ErrUnsafePath))
			continue
		}

		if f.Name == ManifestName {
			m, err := readManifest(f)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("manifest unreadable: %v", err))
				continue
			}
			result.Manifest = m
			continue
		}

		if !strings.HasSuffix(f.Name, markdownExt) {
			continue
		}

		if int64(f.UncompressedSize64) > maxEntrySize {
			result.Entries = append(result.Entries, Entry{
				Path: f.Name,
				Err:  fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrContentTooLarge, f.Name, f.UncompressedSize64, maxEntrySize),
			})
			continue
		}

		content, err := readEntry(f, maxEntrySize)
		if err != nil {
			result.Entries = append(result.Entries, Entry{Path: f.Name, Err: err})
			continue
		}
		result.Entries = append(result.Entries, Entry{Path: f.Name, Data: content})
	}

	return result, nil
}

// safePath rejects absolute paths and parent-directory traversal.
// Anything else — including non-ASCII names — passes through untouched.
func safePath(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	cleaned := path.Clean(name)
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

// readEntry reads one entry fully into memory, enforcing the size cap
// even when the zip header understates the uncompressed size.
func readEntry(f *zip.File, maxEntrySize int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	if int64(len(content)) > maxEntrySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrContentTooLarge, f.Name, maxEntrySize)
	}
	return content, nil
}

// readManifest decodes the manifest entry.
func readManifest(f *zip.File) (*Manifest, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
