package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/chorewheel/internal/model"
)

// ErrMemberInUse is returned when deleting a member who is still assigned
// to an active chore or a pending occurrence.
var ErrMemberInUse = errors.New("family member is still assigned")

type FamilyMemberStore struct {
	db *sql.DB
}

func NewFamilyMemberStore(db *sql.DB) *FamilyMemberStore {
	return &FamilyMemberStore{db: db}
}

const memberCols = `id, name, role, color, avatar_emoji, pin IS NOT NULL, sort_order, created_at, updated_at`

func scanMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	err := scanner.Scan(&m.ID, &m.Name, &m.Role, &m.Color, &m.AvatarEmoji, &m.HasPIN, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *FamilyMemberStore) Create(ctx context.Context, name string, role model.Role, color, avatarEmoji string) (*model.FamilyMember, error) {
	var maxOrder int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(sort_order), -1) FROM family_members").Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO family_members (name, role, color, avatar_emoji, sort_order) VALUES (?, ?, ?, ?, ?)",
		name, string(role), color, avatarEmoji, maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *FamilyMemberStore) List(ctx context.Context) ([]model.FamilyMember, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+memberCols+" FROM family_members ORDER BY sort_order")
	if err != nil {
		return nil, fmt.Errorf("query family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *FamilyMemberStore) GetByID(ctx context.Context, id int64) (*model.FamilyMember, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, "SELECT "+memberCols+" FROM family_members WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query family member: %w", err)
	}
	return m, nil
}

func (s *FamilyMemberStore) GetByName(ctx context.Context, name string) (*model.FamilyMember, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, "SELECT "+memberCols+" FROM family_members WHERE name = ?", name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query family member: %w", err)
	}
	return m, nil
}

func (s *FamilyMemberStore) Update(ctx context.Context, id int64, name string, role model.Role, color, avatarEmoji string) (*model.FamilyMember, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE family_members SET name = ?, role = ?, color = ?, avatar_emoji = ? WHERE id = ?",
		name, string(role), color, avatarEmoji, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family member: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a member. It fails with ErrMemberInUse while an active
// definition lists them as a fixed assignee or in its rotation pool, or a
// pending occurrence is assigned to them.
func (s *FamilyMemberStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var inUse bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM recurring_chores
			 WHERE is_active = 1
			   AND (EXISTS (SELECT 1 FROM json_each(fixed_assignees) WHERE json_each.value = ?1)
			     OR EXISTS (SELECT 1 FROM json_each(rotation_pool) WHERE json_each.value = ?1))
		) OR EXISTS (
			SELECT 1 FROM chore_occurrences
			 WHERE status = 'pending'
			   AND EXISTS (SELECT 1 FROM json_each(assigned_to) WHERE json_each.value = ?1)
		)`, id,
	).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("check member assignments: %w", err)
	}
	if inUse {
		return ErrMemberInUse
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM family_members WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *FamilyMemberStore) SetPIN(ctx context.Context, id int64, hashedPIN string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE family_members SET pin = ? WHERE id = ?", hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *FamilyMemberStore) ClearPIN(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE family_members SET pin = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

// GetPINHash returns the stored bcrypt hash, or "" when no PIN is set.
func (s *FamilyMemberStore) GetPINHash(ctx context.Context, id int64) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT pin FROM family_members WHERE id = ?", id).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("family member not found")
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	if !pin.Valid {
		return "", nil
	}
	return pin.String, nil
}

func (s *FamilyMemberStore) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM family_members WHERE name = ? AND id != ?",
		name, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check name exists: %w", err)
	}
	return count > 0, nil
}
