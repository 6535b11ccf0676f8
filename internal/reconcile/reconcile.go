// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

// Package reconcile computes and applies import actions. Given a batch
// of parsed candidates and read access to the post store, a dry-run
// decides per candidate whether it would create, update, or skip —
// without touching the store. Apply re-derives the same plan against
// current store state and executes it, one candidate at a time, so a
// stale preview can never be replayed and a failed candidate never
// takes the rest of the batch down with it.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poer2023/tdp/internal/frontmatter"
	"github.com/poer2023/tdp/internal/models"
	"github.com/poer2023/tdp/internal/slug"
)

// Repository is the narrow store surface the engine depends on.
// Matching is deliberately keyed on (groupID, locale), never slug: a
// post's slug may change between export and re-import while remaining
// the same translation unit.
type Repository interface {
	FindByGroupAndLocale(ctx context.Context, groupID string, locale models.Locale) (*models.Post, error)
	FindBySlugAndLocale(ctx context.Context, locale models.Locale, slug string) (*models.Post, error)
	Create(ctx context.Context, p *models.Post) (*models.Post, error)
	Update(ctx context.Context, id uuid.UUID, p *models.Post) (*models.Post, error)
}

// AliasWriter records alternate slugs for redirect lookups. Alias
// creation is best-effort during apply; a nil writer disables it.
type AliasWriter interface {
	CreateAlias(ctx context.Context, locale models.Locale, slug string, postID uuid.UUID) error
}

// ActionKind is the decision for one candidate.
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionSkip   ActionKind = "skip"
	ActionError  ActionKind = "error"
)

// Action is the computed decision for one candidate. It is a transient
// plan: produced by dry-run, consumed by apply, never persisted.
type Action struct {
	SourcePath string     `json:"source_path"`
	Kind       ActionKind `json:"kind"`
	Reason     string     `json:"reason,omitempty"`
	TargetID   *uuid.UUID `json:"target_id,omitempty"`
	Slug       string     `json:"slug,omitempty"`       // final resolved slug
	AliasSlug  string     `json:"alias_slug,omitempty"` // alias recorded on apply, if any
	Applied    bool       `json:"applied"`

	// fields holds the post values an apply would write. Unexported:
	// clients see the decision, not the staging data.
	fields   *models.Post
	existing *models.Post
}

// Stats are the aggregate counts shown before the administrator
// confirms an import.
type Stats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Report is the full per-candidate result of a dry-run or apply, in
// archive order.
type Report struct {
	Actions []Action `json:"actions"`
	Stats   Stats    `json:"stats"`
}

// count tallies the action kinds into stats.
func (r *Report) count() {
	r.Stats = Stats{}
	for _, a := range r.Actions {
		switch a.Kind {
		case ActionCreate:
			r.Stats.Created++
		case ActionUpdate:
			r.Stats.Updated++
		case ActionSkip:
			r.Stats.Skipped++
		case ActionError:
			r.Stats.Errors++
		}
	}
}

// Engine reconciles import candidates against the post store. It holds
// no cross-call state; every dry-run and apply starts from the store
// as it is right now.
type Engine struct {
	repo    Repository
	aliases AliasWriter
}

// New creates an engine over the given repository. aliases may be nil.
func New(repo Repository, aliases AliasWriter) *Engine {
	return &Engine{repo: repo, aliases: aliases}
}

// DryRun computes the action for every candidate, in input order,
// without mutating the store. It never fails because of candidate
// content — bad candidates come back as error actions. The returned
// error is non-nil only when the context is cancelled mid-batch.
func (e *Engine) DryRun(ctx context.Context, candidates []*frontmatter.Candidate) (*Report, error) {
	report, err := e.plan(ctx, candidates)
	if report != nil {
		report.count()
	}
	return report, err
}

// Apply re-derives the plan against current store state and executes
// it. Re-derivation is what makes apply idempotent and immune to stale
// previews: a candidate created by a previous apply plans as skip (or
// update) the second time around.
//
// One failed candidate does not abort the batch: store failures are
// demoted to error actions and processing continues. A context
// cancellation stops the batch; already-applied candidates stay
// committed.
func (e *Engine) Apply(ctx context.Context, candidates []*frontmatter.Candidate) (*Report, error) {
	report, err := e.plan(ctx, candidates)
	if err != nil {
		if report != nil {
			report.count()
		}
		return report, err
	}

	for i := range report.Actions {
		if err := ctx.Err(); err != nil {
			report.count()
			return report, err
		}
		e.applyOne(ctx, &report.Actions[i])
	}

	report.count()
	return report, nil
}

// applyOne executes a single planned action, rewriting it in place on
// store failure.
func (e *Engine) applyOne(ctx context.Context, a *Action) {
	switch a.Kind {
	case ActionCreate:
		created, err := e.repo.Create(ctx, a.fields)
		if err != nil {
			a.Kind = ActionError
			a.Reason = fmt.Sprintf("store create failed: %v", err)
			return
		}
		a.TargetID = &created.ID
		a.Applied = true
		e.writeAlias(ctx, a, created.ID)

	case ActionUpdate:
		updated, err := e.repo.Update(ctx, *a.TargetID, a.fields)
		if err != nil {
			a.Kind = ActionError
			a.Reason = fmt.Sprintf("store update failed: %v", err)
			return
		}
		a.Applied = true
		e.writeAlias(ctx, a, updated.ID)
	}
}

// writeAlias records the action's alias slug, if any. Alias writes are
// best-effort: a failure is logged, not promoted to an error action.
func (e *Engine) writeAlias(ctx context.Context, a *Action, postID uuid.UUID) {
	if e.aliases == nil || a.AliasSlug == "" {
		return
	}
	if err := e.aliases.CreateAlias(ctx, a.fields.Locale, a.AliasSlug, postID); err != nil {
		slog.Warn("import alias write failed",
			"locale", a.fields.Locale,
			"alias", a.AliasSlug,
			"post_id", postID,
			"error", err,
		)
	}
}

// plan runs the dry-run algorithm over the batch. Slugs resolved
// earlier in the batch are tracked so two candidates cannot collide
// with each other, not just with pre-existing records.
func (e *Engine) plan(ctx context.Context, candidates []*frontmatter.Candidate) (*Report, error) {
	report := &Report{Actions: make([]Action, 0, len(candidates))}
	reserved := make(map[string]struct{})

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Actions = append(report.Actions, e.planOne(ctx, c, reserved))
	}
	return report, nil
}

// planOne computes the action for a single candidate.
func (e *Engine) planOne(ctx context.Context, c *frontmatter.Candidate, reserved map[string]struct{}) Action {
	a := Action{SourcePath: c.SourcePath}

	// Codec validation errors end the road here: no slug derivation,
	// no store lookups.
	if !c.Valid() {
		a.Kind = ActionError
		a.Reason = strings.Join(c.ErrorMessages(), "; ")
		return a
	}

	resolved := c.Slug
	aliasSlug := ""
	if c.Locale.IsCJK() {
		derived := slug.FromTitle(c.Title)
		if resolved == "" {
			if derived == "" {
				a.Kind = ActionError
				a.Reason = fmt.Sprintf("cannot derive slug from title %q", c.Title)
				return a
			}
			resolved = derived
		} else if derived != "" && derived != resolved {
			// The author chose a slug that differs from the pinyin
			// form; keep the transliteration reachable as an alias.
			aliasSlug = derived
		}
	}

	// Match strictly on (groupId, locale). An empty groupId can never
	// match: the post gets a fresh group on create.
	var existing *models.Post
	if c.GroupID != "" {
		var err error
		existing, err = e.repo.FindByGroupAndLocale(ctx, c.GroupID, c.Locale)
		if err != nil {
			a.Kind = ActionError
			a.Reason = fmt.Sprintf("store lookup failed: %v", err)
			return a
		}
	}

	final, err := e.resolveCollision(ctx, c.Locale, resolved, existing, reserved)
	if err != nil {
		a.Kind = ActionError
		a.Reason = fmt.Sprintf("store lookup failed: %v", err)
		return a
	}
	if final != resolved && aliasSlug == "" {
		// Suffix adjustment: keep the slug the document asked for as
		// an alias of the post that actually got created.
		aliasSlug = resolved
	}
	reserved[slugKey(c.Locale, final)] = struct{}{}

	groupID := c.GroupID
	if groupID == "" {
		groupID = uuid.NewString()
	}
	published := c.PublishedAt
	fields := &models.Post{
		GroupID:     groupID,
		Locale:      c.Locale,
		Title:       c.Title,
		Slug:        final,
		Content:     c.Body,
		Excerpt:     c.Excerpt,
		Tags:        c.Tags,
		Status:      c.Status,
		PublishedAt: &published,
	}

	a.Slug = final
	a.AliasSlug = aliasSlug
	a.fields = fields

	if existing == nil {
		a.Kind = ActionCreate
		a.Reason = "no post with this groupId and locale"
		return a
	}

	a.TargetID = &existing.ID
	a.existing = existing
	a.fields.GroupID = existing.GroupID

	if unchanged(existing, fields) {
		// A no-op update would only bump updated_at.
		a.Kind = ActionSkip
		a.Reason = "identical to existing post"
		return a
	}

	a.Kind = ActionUpdate
	a.Reason = fmt.Sprintf("updates existing post %s", existing.ID)
	return a
}

// resolveCollision appends -2, -3, … until the (locale, slug) pair is
// free, checking both the store and slugs already claimed earlier in
// this batch. The record being updated does not count as a collision
// with itself.
func (e *Engine) resolveCollision(ctx context.Context, locale models.Locale, base string, updating *models.Post, reserved map[string]struct{}) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		taken, err := e.slugTaken(ctx, locale, candidate, updating, reserved)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// slugTaken reports whether the (locale, slug) pair is claimed by an
// in-batch predecessor or a different stored post.
func (e *Engine) slugTaken(ctx context.Context, locale models.Locale, s string, updating *models.Post, reserved map[string]struct{}) (bool, error) {
	if _, inBatch := reserved[slugKey(locale, s)]; inBatch {
		return true, nil
	}
	other, err := e.repo.FindBySlugAndLocale(ctx, locale, s)
	if err != nil {
		return false, err
	}
	if other == nil {
		return false, nil
	}
	if updating != nil && other.ID == updating.ID {
		return false, nil
	}
	return true, nil
}

func slugKey(locale models.Locale, s string) string {
	return string(locale) + "/" + s
}

// unchanged compares the user-editable fields that participate in the
// no-op check: title, slug, content, excerpt, tags, status, and
// publishedAt.
func unchanged(existing, incoming *models.Post) bool {
	if existing.Title != incoming.Title ||
		existing.Slug != incoming.Slug ||
		existing.Content != incoming.Content ||
		existing.Excerpt != incoming.Excerpt ||
		existing.Status != incoming.Status {
		return false
	}
	if !slices.Equal(existing.Tags, incoming.Tags) {
		return false
	}
	return timePtrEqual(existing.PublishedAt, incoming.PublishedAt)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
