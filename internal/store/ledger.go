package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorewheel/internal/model"
)

// LedgerStore records points earned from completed occurrences. At most one
// award exists per occurrence.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// AwardPoints credits amount to memberID for occurrenceID. A second award
// for the same occurrence is ignored.
func (s *LedgerStore) AwardPoints(ctx context.Context, memberID int64, amount int, occurrenceID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO point_awards (member_id, occurrence_id, points) VALUES (?, ?, ?)
		 ON CONFLICT (occurrence_id) DO NOTHING`,
		memberID, occurrenceID, amount,
	)
	if err != nil {
		return fmt.Errorf("insert point award: %w", err)
	}
	return nil
}

func (s *LedgerStore) GetByOccurrence(ctx context.Context, occurrenceID int64) (*model.PointAward, error) {
	var a model.PointAward
	err := s.db.QueryRowContext(ctx,
		`SELECT id, member_id, occurrence_id, points, awarded_at FROM point_awards WHERE occurrence_id = ?`,
		occurrenceID,
	).Scan(&a.ID, &a.MemberID, &a.OccurrenceID, &a.Points, &a.AwardedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get point award: %w", err)
	}
	return &a, nil
}

func (s *LedgerStore) GetPointBalance(ctx context.Context, memberID int64) (*model.PointBalance, error) {
	var pb model.PointBalance
	err := s.db.QueryRowContext(ctx,
		`SELECT fm.id, fm.name, COALESCE(SUM(pa.points), 0)
		 FROM family_members fm
		 LEFT JOIN point_awards pa ON pa.member_id = fm.id
		 WHERE fm.id = ?
		 GROUP BY fm.id`,
		memberID,
	).Scan(&pb.MemberID, &pb.MemberName, &pb.TotalEarned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get point balance: %w", err)
	}
	return &pb, nil
}

func (s *LedgerStore) GetAllPointBalances(ctx context.Context) ([]model.PointBalance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fm.id, fm.name, COALESCE(SUM(pa.points), 0)
		 FROM family_members fm
		 LEFT JOIN point_awards pa ON pa.member_id = fm.id
		 GROUP BY fm.id
		 ORDER BY fm.sort_order ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list point balances: %w", err)
	}
	defer rows.Close()

	var balances []model.PointBalance
	for rows.Next() {
		var pb model.PointBalance
		if err := rows.Scan(&pb.MemberID, &pb.MemberName, &pb.TotalEarned); err != nil {
			return nil, fmt.Errorf("scan point balance: %w", err)
		}
		balances = append(balances, pb)
	}
	return balances, rows.Err()
}
