package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

// --- Category methods ---

func scanCategory(scanner interface{ Scan(...any) error }) (*model.ChoreCategory, error) {
	var c model.ChoreCategory
	err := scanner.Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const categoryCols = `id, name, sort_order, created_at, updated_at`

func (s *ChoreStore) ListCategories(ctx context.Context) ([]model.ChoreCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryCols+` FROM chore_categories ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []model.ChoreCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, *c)
	}
	return cats, rows.Err()
}

func (s *ChoreStore) GetCategoryByName(ctx context.Context, name string) (*model.ChoreCategory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM chore_categories WHERE name = ?`, name)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// --- Recurring chore methods ---

func scanChore(scanner interface{ Scan(...any) error }) (*model.RecurringChore, error) {
	var c model.RecurringChore
	var categoryID sql.NullInt64
	var rule, start, fixed, pool string

	err := scanner.Scan(
		&c.ID, &c.Title, &c.Description, &c.Points, &categoryID,
		&rule, &start, &c.AssignmentMode, &fixed, &pool, &c.Active,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		c.CategoryID = &categoryID.Int64
	}
	if c.Rule, err = recurrence.Parse(rule); err != nil {
		return nil, fmt.Errorf("chore %d: %w", c.ID, err)
	}
	if c.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if c.FixedAssignees, err = decodeIDs(fixed); err != nil {
		return nil, err
	}
	if c.RotationPool, err = decodeIDs(pool); err != nil {
		return nil, err
	}
	return &c, nil
}

const choreCols = `id, title, description, points, category_id, recurrence_rule, start_date, assignment_mode, fixed_assignees, rotation_pool, is_active, created_at, updated_at`

// choreArgs returns the column values shared by insert and update, in
// choreCols order from title through is_active.
func choreArgs(c model.RecurringChore) ([]any, error) {
	var catID sql.NullInt64
	if c.CategoryID != nil {
		catID = sql.NullInt64{Int64: *c.CategoryID, Valid: true}
	}
	fixed, err := encodeIDs(c.FixedAssignees)
	if err != nil {
		return nil, err
	}
	pool, err := encodeIDs(c.RotationPool)
	if err != nil {
		return nil, err
	}
	return []any{
		c.Title, c.Description, c.Points, catID, c.Rule.String(),
		formatDate(recurrence.Day(c.StartDate)), string(c.AssignmentMode), fixed, pool, c.Active,
	}, nil
}

func (s *ChoreStore) Create(ctx context.Context, c model.RecurringChore) (*model.RecurringChore, error) {
	args, err := choreArgs(c)
	if err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_chores (title, description, points, category_id, recurrence_rule, start_date, assignment_mode, fixed_assignees, rotation_pool, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recurring chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id int64) (*model.RecurringChore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM recurring_chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) List(ctx context.Context) ([]model.RecurringChore, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+choreCols+` FROM recurring_chores ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list recurring chores: %w", err)
	}
	defer rows.Close()

	var chores []model.RecurringChore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// Update replaces the mutable fields of a definition. Occurrences that
// already exist keep their sequence numbers and assignees.
func (s *ChoreStore) Update(ctx context.Context, c model.RecurringChore) (*model.RecurringChore, error) {
	args, err := choreArgs(c)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE recurring_chores SET title = ?, description = ?, points = ?, category_id = ?, recurrence_rule = ?, start_date = ?,
		 assignment_mode = ?, fixed_assignees = ?, rotation_pool = ?, is_active = ? WHERE id = ?`,
		append(args, c.ID)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update recurring chore: %w", err)
	}
	return s.GetByID(ctx, c.ID)
}

func (s *ChoreStore) Deactivate(ctx context.Context, id int64) (*model.RecurringChore, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE recurring_chores SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("deactivate recurring chore: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a definition. With cascadeFuture, pending occurrences due
// on or after today are removed first. If any occurrences still reference
// the definition it is deactivated instead, and hardDeleted is false.
func (s *ChoreStore) Delete(ctx context.Context, id int64, cascadeFuture bool, today time.Time) (hardDeleted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if cascadeFuture {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chore_occurrences WHERE recurring_chore_id = ? AND status = 'pending' AND due_date >= ?`,
			id, formatDate(recurrence.Day(today)),
		); err != nil {
			return false, fmt.Errorf("delete future occurrences: %w", err)
		}
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chore_occurrences WHERE recurring_chore_id = ?`, id).Scan(&remaining); err != nil {
		return false, fmt.Errorf("count occurrences: %w", err)
	}

	if remaining > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE recurring_chores SET is_active = 0 WHERE id = ?`, id); err != nil {
			return false, fmt.Errorf("deactivate recurring chore: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recurring_chores WHERE id = ?`, id); err != nil {
			return false, fmt.Errorf("delete recurring chore: %w", err)
		}
		hardDeleted = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return hardDeleted, nil
}
