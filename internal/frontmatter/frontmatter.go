// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

// Package frontmatter serializes posts to Markdown documents with a
// YAML frontmatter header and parses them back. Parsing is lenient:
// a structurally valid document with bad field values still yields a
// candidate, carrying its validation errors, so a batch import can
// report every problem instead of aborting at the first.
package frontmatter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poer2023/tdp/internal/models"
)

// Delimiter is the marker line opening and closing the header block.
const Delimiter = "---"

// ErrMalformedDocument reports a document whose frontmatter block is
// missing a delimiter or whose header is not valid YAML. Unlike field
// validation errors, this means no candidate could be extracted.
var ErrMalformedDocument = errors.New("malformed frontmatter document")

// FieldError is a single validation problem on a recognized field.
// Field errors are data, not failures: they accumulate on the
// candidate and surface in the import report.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Candidate is the ephemeral parse result for one archive entry. It is
// never persisted: the reconciliation engine consumes it and the import
// session discards it.
type Candidate struct {
	SourcePath string

	Title       string
	Slug        string
	Locale      models.Locale
	Status      models.PostStatus
	PublishedAt time.Time
	GroupID     string
	Tags        []string
	Excerpt     string
	Body        string

	Errors []FieldError
}

// Valid reports whether the candidate parsed without validation errors.
func (c *Candidate) Valid() bool {
	return len(c.Errors) == 0
}

// AddError appends a validation error for the given field.
func (c *Candidate) AddError(field, format string, args ...any) {
	c.Errors = append(c.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ErrorMessages returns the accumulated validation errors as display
// strings, in the order they were recorded.
func (c *Candidate) ErrorMessages() []string {
	msgs := make([]string, len(c.Errors))
	for i, e := range c.Errors {
		msgs[i] = e.Error()
	}
	return msgs
}

// header is the typed YAML shape of the frontmatter block. Parsed
// values only leave this struct after validation, so downstream code
// never touches unvalidated data.
type header struct {
	Title       string `yaml:"title"`
	Slug        string `yaml:"slug"`
	Locale      string `yaml:"locale"`
	Status      string `yaml:"status"`
	PublishedAt string `yaml:"publishedAt"`
	GroupID     string `yaml:"groupId"`
	Tags        string `yaml:"tags,omitempty"`
	Excerpt     string `yaml:"excerpt,omitempty"`
}

// Serialize renders a post as a frontmatter-delimited Markdown document.
// The header keys appear in canonical order; the body follows the
// closing delimiter after exactly one blank line. The output always
// parses back to an equivalent candidate via Parse.
func Serialize(p *models.Post) (string, error) {
	h := header{
		Title:       p.Title,
		Slug:        p.Slug,
		Locale:      string(p.Locale),
		Status:      string(p.Status),
		// RFC3339Nano keeps sub-second precision: the database stores
		// microseconds, and truncating here would make every re-import
		// of an untouched post look like an edit.
		PublishedAt: p.ExportedAt().UTC().Format(time.RFC3339Nano),
		GroupID:     p.GroupID,
		Tags:        strings.Join(p.Tags, ","),
		Excerpt:     p.Excerpt,
	}

	encoded, err := yaml.Marshal(&h)
	if err != nil {
		return "", fmt.Errorf("serialize frontmatter for %q: %w", p.Slug, err)
	}

	var b strings.Builder
	b.WriteString(Delimiter)
	b.WriteByte('\n')
	b.Write(encoded)
	b.WriteString(Delimiter)
	b.WriteString("\n\n")
	b.WriteString(p.Content)
	return b.String(), nil
}

// Parse extracts a candidate from a frontmatter-delimited document.
// It returns ErrMalformedDocument when the delimiters are absent or
// the header is not valid YAML; recognized-but-invalid field values
// are recorded on the candidate instead of failing the parse.
//
// A missing slug is only an error for the non-CJK locale — Chinese
// posts get a pinyin-derived slug later in the pipeline.
func Parse(sourcePath, doc string) (*Candidate, error) {
	headerText, body, err := splitDocument(doc)
	if err != nil {
		return nil, err
	}

	var h header
	if err := yaml.Unmarshal([]byte(headerText), &h); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML header in %s: %v", ErrMalformedDocument, sourcePath, err)
	}

	c := &Candidate{
		SourcePath: sourcePath,
		Title:      strings.TrimSpace(h.Title),
		Slug:       strings.TrimSpace(h.Slug),
		GroupID:    strings.TrimSpace(h.GroupID),
		Excerpt:    h.Excerpt,
		Body:       body,
		Tags:       splitTags(h.Tags),
	}

	// locale and status form the required set: missing or unrecognized
	// values accumulate as errors rather than aborting the parse.
	locale := models.Locale(strings.ToLower(strings.TrimSpace(h.Locale)))
	switch {
	case locale == "":
		c.AddError("locale", "required field is missing")
	case !locale.Valid():
		c.AddError("locale", "unsupported value %q (want %q or %q)", h.Locale, models.LocaleEN, models.LocaleZH)
	default:
		c.Locale = locale
	}

	status := models.PostStatus(strings.ToLower(strings.TrimSpace(h.Status)))
	switch {
	case status == "":
		c.AddError("status", "required field is missing")
	case !status.Valid():
		c.AddError("status", "unsupported value %q (want %q or %q)", h.Status, models.PostStatusDraft, models.PostStatusPublished)
	default:
		c.Status = status
	}

	switch published := strings.TrimSpace(h.PublishedAt); published {
	case "":
		c.AddError("publishedAt", "required field is missing")
	default:
		ts, err := time.Parse(time.RFC3339, published)
		if err != nil {
			c.AddError("publishedAt", "invalid timestamp %q (want RFC 3339)", h.PublishedAt)
		} else {
			c.PublishedAt = ts
		}
	}

	if c.Slug == "" && locale.Valid() && !locale.IsCJK() {
		c.AddError("slug", "required field is missing for locale %q", locale)
	}

	return c, nil
}

// splitDocument separates the header block from the body. The document
// must open with a delimiter line and contain a closing one; the body
// is everything after the closing delimiter and the first blank line.
func splitDocument(doc string) (headerText, body string, err error) {
	normalized := strings.ReplaceAll(doc, "\r\n", "\n")

	rest, ok := strings.CutPrefix(normalized, Delimiter+"\n")
	if !ok {
		return "", "", fmt.Errorf("%w: missing opening delimiter", ErrMalformedDocument)
	}

	headerText, rest, ok = cutClosingDelimiter(rest)
	if !ok {
		return "", "", fmt.Errorf("%w: missing closing delimiter", ErrMalformedDocument)
	}

	// One blank line separates the delimiter from the body; a document
	// with nothing after the header is a valid empty body.
	body = strings.TrimPrefix(rest, "\n")
	return headerText, body, nil
}

// cutClosingDelimiter finds the first line consisting solely of the
// delimiter and splits around it.
func cutClosingDelimiter(s string) (before, after string, found bool) {
	if rest, ok := strings.CutPrefix(s, Delimiter+"\n"); ok {
		return "", rest, true
	}
	if idx := strings.Index(s, "\n"+Delimiter+"\n"); idx >= 0 {
		return s[:idx+1], s[idx+1+len(Delimiter)+1:], true
	}
	// Closing delimiter on the final line without a trailing newline.
	if rest, ok := strings.CutSuffix(s, "\n"+Delimiter); ok {
		return rest + "\n", "", true
	}
	return "", "", false
}

// splitTags parses the comma-joined tags field, dropping empty entries.
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
