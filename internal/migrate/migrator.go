package migrate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mini_orm/internal/diff"
	"mini_orm/internal/schema"
)

// Migration is a pair of scripts moving the database forward (Up) and back
// (Down). Down statements are already in undo order.
type Migration struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Up          string    `json:"-"`
	Down        string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Empty reports whether the migration has nothing to run.
func (m Migration) Empty() bool {
	return strings.TrimSpace(m.Up) == ""
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// NewID builds a sortable migration id, e.g. 20260209143644_add_patient_email.
func NewID(description string, now time.Time) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(description), "_"), "_")
	if slug == "" {
		slug = "migration"
	}
	return now.UTC().Format("20060102150405") + "_" + slug
}

// Generator builds migrations by diffing descriptors against the live
// database.
type Generator struct {
	intro *Introspector
	now   func() time.Time
}

func NewGenerator(intro *Introspector) *Generator {
	return &Generator{intro: intro, now: time.Now}
}

// Diff introspects and diffs every descriptor, in order.
func (g *Generator) Diff(ctx context.Context, descs []*schema.Descriptor) ([]diff.Changes, error) {
	out := make([]diff.Changes, 0, len(descs))
	for _, d := range descs {
		live, err := g.intro.Table(ctx, d.Table)
		if err != nil {
			return nil, err
		}
		out = append(out, diff.Table(live, d))
	}
	return out, nil
}

// Generate assembles one migration covering every descriptor. Up runs the
// tables in order; Down undoes them in reverse. A database that already
// matches yields a migration with empty scripts.
func (g *Generator) Generate(ctx context.Context, descs []*schema.Descriptor, description string) (Migration, error) {
	changes, err := g.Diff(ctx, descs)
	if err != nil {
		return Migration{}, fmt.Errorf("generate migration: %w", err)
	}
	var up, down []string
	for _, ch := range changes {
		up = append(up, ch.Up...)
	}
	for i := len(changes) - 1; i >= 0; i-- {
		down = append(down, changes[i].Down...)
	}
	now := g.now().UTC()
	return Migration{
		ID:          NewID(description, now),
		Description: description,
		Up:          diff.Join(up),
		Down:        diff.Join(down),
		CreatedAt:   now,
	}, nil
}
