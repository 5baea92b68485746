package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
	ErrLedgerClubInvalid   = errors.New("ledger club invalid")
)

type LedgerRepository interface {
	Create(ctx context.Context, entry *models.LedgerEntry) error
	GetByID(ctx context.Context, id int) (*models.LedgerEntry, error)
	ListByClub(ctx context.Context, clubID int) ([]*models.LedgerEntry, error)
	Summary(ctx context.Context, clubID int) (*models.LedgerSummary, error)
	Delete(ctx context.Context, id int) error
}

type postgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) LedgerRepository {
	return &postgresLedgerRepository{db: db}
}

func (r *postgresLedgerRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO ledgers (club_id, recorder_id, type, amount, note, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		entry.ClubID,
		entry.RecorderID,
		entry.Type,
		entry.Amount,
		entry.Note,
		entry.OccurredAt,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrLedgerClubInvalid
		}
		return err
	}
	return nil
}

func (r *postgresLedgerRepository) GetByID(ctx context.Context, id int) (*models.LedgerEntry, error) {
	query := `
		SELECT id, club_id, recorder_id, type, amount, note, occurred_at, created_at
		FROM ledgers
		WHERE id = $1`

	e := &models.LedgerEntry{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.ClubID, &e.RecorderID, &e.Type, &e.Amount, &e.Note, &e.OccurredAt, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLedgerEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresLedgerRepository) ListByClub(ctx context.Context, clubID int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, club_id, recorder_id, type, amount, note, occurred_at, created_at
		FROM ledgers
		WHERE club_id = $1
		ORDER BY occurred_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*models.LedgerEntry, 0)
	for rows.Next() {
		var e models.LedgerEntry
		if scanErr := rows.Scan(
			&e.ID, &e.ClubID, &e.RecorderID, &e.Type, &e.Amount, &e.Note, &e.OccurredAt, &e.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *postgresLedgerRepository) Summary(ctx context.Context, clubID int) (*models.LedgerSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)
		FROM ledgers
		WHERE club_id = $1`

	s := &models.LedgerSummary{}
	if err := r.db.QueryRowContext(ctx, query, clubID).Scan(&s.Income, &s.Expense); err != nil {
		return nil, err
	}
	s.Balance = s.Income - s.Expense
	return s, nil
}

func (r *postgresLedgerRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ledgers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrLedgerEntryNotFound)
}
