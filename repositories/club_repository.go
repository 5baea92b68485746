package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrClubNotFound     = errors.New("club not found")
	ErrClubNameConflict = errors.New("club name conflict")
)

type ClubRepository interface {
	Create(ctx context.Context, exec SQLExecutor, club *models.Club) error
	GetByID(ctx context.Context, id int) (*models.Club, error)
	List(ctx context.Context, officialOnly bool) ([]*models.Club, error)
	Update(ctx context.Context, club *models.Club) error
	Delete(ctx context.Context, id int) error
}

type postgresClubRepository struct {
	db *sql.DB
}

func NewPostgresClubRepository(db *sql.DB) ClubRepository {
	return &postgresClubRepository{db: db}
}

// Create принимает SQLExecutor: создание клуба и бутстрап manager-участника
// выполняются в одной транзакции сервисного слоя.
func (r *postgresClubRepository) Create(ctx context.Context, exec SQLExecutor, club *models.Club) error {
	query := `
		INSERT INTO clubs (name, intro, official, cover_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		club.Name,
		club.Intro,
		club.Official,
		club.CoverKey,
	).Scan(&club.ID, &club.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "clubs_name_key" {
				return ErrClubNameConflict
			}
		}
		return err
	}
	return nil
}

func (r *postgresClubRepository) GetByID(ctx context.Context, id int) (*models.Club, error) {
	query := `
		SELECT id, name, intro, official, cover_key, created_at
		FROM clubs
		WHERE id = $1`

	club := &models.Club{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&club.ID,
		&club.Name,
		&club.Intro,
		&club.Official,
		&club.CoverKey,
		&club.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClubNotFound
		}
		return nil, err
	}
	return club, nil
}

func (r *postgresClubRepository) List(ctx context.Context, officialOnly bool) ([]*models.Club, error) {
	query := `
		SELECT id, name, intro, official, cover_key, created_at
		FROM clubs`
	if officialOnly {
		query += ` WHERE official = TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clubs := make([]*models.Club, 0)
	for rows.Next() {
		var club models.Club
		if scanErr := rows.Scan(
			&club.ID,
			&club.Name,
			&club.Intro,
			&club.Official,
			&club.CoverKey,
			&club.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		clubs = append(clubs, &club)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return clubs, nil
}

func (r *postgresClubRepository) Update(ctx context.Context, club *models.Club) error {
	query := `
		UPDATE clubs SET
			name = $1,
			intro = $2,
			official = $3,
			cover_key = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		club.Name,
		club.Intro,
		club.Official,
		club.CoverKey,
		club.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "clubs_name_key" {
				return ErrClubNameConflict
			}
		}
		return err
	}
	return checkAffectedRows(result, ErrClubNotFound)
}

func (r *postgresClubRepository) Delete(ctx context.Context, id int) error {
	// Связанные строки (members, groups, posts, ...) удаляются каскадом
	// по FK ON DELETE CASCADE.
	result, err := r.db.ExecContext(ctx, `DELETE FROM clubs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrClubNotFound)
}
