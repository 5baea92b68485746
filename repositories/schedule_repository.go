package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrScheduleNotFound    = errors.New("schedule not found")
	ErrScheduleClubInvalid = errors.New("schedule club invalid")
)

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *models.Schedule) error
	GetByID(ctx context.Context, id int) (*models.Schedule, error)
	ListByClub(ctx context.Context, clubID int, from, to time.Time) ([]*models.Schedule, error)
	CountByClub(ctx context.Context, clubID int) (int, error)
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id int) error
}

type postgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) ScheduleRepository {
	return &postgresScheduleRepository{db: db}
}

func (r *postgresScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	query := `
		INSERT INTO schedules (club_id, title, place, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		schedule.ClubID,
		schedule.Title,
		schedule.Place,
		schedule.StartsAt,
		schedule.EndsAt,
	).Scan(&schedule.ID, &schedule.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrScheduleClubInvalid
		}
		return err
	}
	return nil
}

func (r *postgresScheduleRepository) GetByID(ctx context.Context, id int) (*models.Schedule, error) {
	query := `
		SELECT id, club_id, title, place, starts_at, ends_at, created_at
		FROM schedules
		WHERE id = $1`

	s := &models.Schedule{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.ClubID, &s.Title, &s.Place, &s.StartsAt, &s.EndsAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresScheduleRepository) ListByClub(ctx context.Context, clubID int, from, to time.Time) ([]*models.Schedule, error) {
	query := `
		SELECT id, club_id, title, place, starts_at, ends_at, created_at
		FROM schedules
		WHERE club_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at ASC`

	rows, err := r.db.QueryContext(ctx, query, clubID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]*models.Schedule, 0)
	for rows.Next() {
		var s models.Schedule
		if scanErr := rows.Scan(
			&s.ID, &s.ClubID, &s.Title, &s.Place, &s.StartsAt, &s.EndsAt, &s.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		schedules = append(schedules, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *postgresScheduleRepository) CountByClub(ctx context.Context, clubID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedules WHERE club_id = $1`, clubID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	query := `
		UPDATE schedules SET
			title = $1,
			place = $2,
			starts_at = $3,
			ends_at = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		schedule.Title,
		schedule.Place,
		schedule.StartsAt,
		schedule.EndsAt,
		schedule.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScheduleNotFound)
}

func (r *postgresScheduleRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScheduleNotFound)
}
