// Package importer loads family members and recurring chore definitions
// from a YAML file.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

// File is the document layout. Chores refer to members by name.
type File struct {
	Members []Member `yaml:"members"`
	Chores  []Chore  `yaml:"chores"`
}

type Member struct {
	Name  string `yaml:"name"`
	Role  string `yaml:"role,omitempty"`
	Color string `yaml:"color,omitempty"`
	Emoji string `yaml:"emoji,omitempty"`
}

type Chore struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description,omitempty"`
	Points      int      `yaml:"points"`
	Category    string   `yaml:"category,omitempty"`
	Rule        string   `yaml:"rule"`
	Start       string   `yaml:"start"`
	Mode        string   `yaml:"mode"`
	Fixed       []string `yaml:"fixed,omitempty"`
	Rotation    []string `yaml:"rotation,omitempty"`
	Inactive    bool     `yaml:"inactive,omitempty"`
}

// MemberStore is the subset of the family member store the importer uses.
type MemberStore interface {
	GetByName(ctx context.Context, name string) (*model.FamilyMember, error)
	Create(ctx context.Context, name string, role model.Role, color, avatarEmoji string) (*model.FamilyMember, error)
}

// ChoreStore is the subset of the chore store the importer uses.
type ChoreStore interface {
	List(ctx context.Context) ([]model.RecurringChore, error)
	Create(ctx context.Context, c model.RecurringChore) (*model.RecurringChore, error)
	GetCategoryByName(ctx context.Context, name string) (*model.ChoreCategory, error)
}

// Result counts what an import changed.
type Result struct {
	MembersCreated int
	ChoresCreated  int
	ChoresSkipped  int
}

// Parse decodes a document, rejecting unknown keys.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &f, nil
}

// LoadFile reads and parses path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

type Importer struct {
	members MemberStore
	chores  ChoreStore
	logger  *slog.Logger
}

func New(members MemberStore, chores ChoreStore, logger *slog.Logger) *Importer {
	return &Importer{members: members, chores: chores, logger: logger}
}

// Import creates missing members, then every chore whose title is not
// already defined. Each chore is validated before anything is written for
// it; the first invalid chore stops the import.
func (im *Importer) Import(ctx context.Context, f *File) (Result, error) {
	var res Result

	ids := make(map[string]int64)
	for _, m := range f.Members {
		id, created, err := im.ensureMember(ctx, m)
		if err != nil {
			return res, err
		}
		ids[m.Name] = id
		if created {
			res.MembersCreated++
		}
	}

	existing, err := im.chores.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list recurring chores: %w", err)
	}
	titles := make(map[string]bool, len(existing))
	for _, c := range existing {
		titles[c.Title] = true
	}

	for i, c := range f.Chores {
		if titles[c.Title] {
			im.logger.Info("chore already defined", "title", c.Title)
			res.ChoresSkipped++
			continue
		}
		def, err := im.definition(ctx, c, ids)
		if err != nil {
			return res, fmt.Errorf("chore %d (%q): %w", i+1, c.Title, err)
		}
		created, err := im.chores.Create(ctx, def)
		if err != nil {
			return res, fmt.Errorf("create chore %q: %w", c.Title, err)
		}
		titles[c.Title] = true
		res.ChoresCreated++
		im.logger.Info("imported chore", "id", created.ID, "title", created.Title, "rule", created.Rule.String())
	}

	return res, nil
}

func (im *Importer) ensureMember(ctx context.Context, m Member) (int64, bool, error) {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return 0, false, fmt.Errorf("%w: member name is required", chore.ErrValidation)
	}
	found, err := im.members.GetByName(ctx, name)
	if err != nil {
		return 0, false, err
	}
	if found != nil {
		return found.ID, false, nil
	}

	role := model.Role(m.Role)
	switch role {
	case "":
		role = model.RoleChild
	case model.RoleParent, model.RoleChild:
	default:
		return 0, false, fmt.Errorf("%w: member %q has unknown role %q", chore.ErrValidation, name, m.Role)
	}
	color := m.Color
	if color == "" {
		color = "#3B82F6"
	}

	created, err := im.members.Create(ctx, name, role, color, m.Emoji)
	if err != nil {
		return 0, false, fmt.Errorf("create member %q: %w", name, err)
	}
	im.logger.Info("imported member", "id", created.ID, "name", name)
	return created.ID, true, nil
}

func (im *Importer) resolve(ctx context.Context, names []string, ids map[string]int64) ([]int64, error) {
	out := make([]int64, 0, len(names))
	for _, n := range names {
		if id, ok := ids[n]; ok {
			out = append(out, id)
			continue
		}
		m, err := im.members.GetByName(ctx, n)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("%w: unknown member %q", chore.ErrValidation, n)
		}
		ids[n] = m.ID
		out = append(out, m.ID)
	}
	return out, nil
}

func (im *Importer) definition(ctx context.Context, c Chore, ids map[string]int64) (model.RecurringChore, error) {
	rule, err := recurrence.Parse(c.Rule)
	if err != nil {
		return model.RecurringChore{}, fmt.Errorf("%w: %w", chore.ErrValidation, err)
	}
	start, err := time.Parse(time.DateOnly, c.Start)
	if err != nil {
		return model.RecurringChore{}, fmt.Errorf("%w: start must be a YYYY-MM-DD date", chore.ErrValidation)
	}
	fixed, err := im.resolve(ctx, c.Fixed, ids)
	if err != nil {
		return model.RecurringChore{}, err
	}
	pool, err := im.resolve(ctx, c.Rotation, ids)
	if err != nil {
		return model.RecurringChore{}, err
	}

	var categoryID *int64
	if c.Category != "" {
		cat, err := im.chores.GetCategoryByName(ctx, c.Category)
		if err != nil {
			return model.RecurringChore{}, err
		}
		if cat == nil {
			return model.RecurringChore{}, fmt.Errorf("%w: unknown category %q", chore.ErrValidation, c.Category)
		}
		categoryID = &cat.ID
	}

	def := model.RecurringChore{
		Title:          strings.TrimSpace(c.Title),
		Description:    c.Description,
		Points:         c.Points,
		CategoryID:     categoryID,
		Rule:           rule,
		StartDate:      start,
		AssignmentMode: model.AssignmentMode(c.Mode),
		FixedAssignees: fixed,
		RotationPool:   pool,
		Active:         !c.Inactive,
	}
	if err := chore.ValidateDefinition(def); err != nil {
		return model.RecurringChore{}, err
	}
	return def, nil
}
