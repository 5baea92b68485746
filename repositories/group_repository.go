package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrGroupNameConflict = errors.New("group name conflict within club")
	ErrGroupClubInvalid  = errors.New("group club invalid")
)

type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id int) (*models.Group, error)
	ListByClub(ctx context.Context, clubID int) ([]*models.Group, error)
	CountByClub(ctx context.Context, clubID int) (int, error)
	Rename(ctx context.Context, id int, name string) error
	Delete(ctx context.Context, id int) error
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) Create(ctx context.Context, group *models.Group) error {
	query := `
		INSERT INTO groups (club_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, group.ClubID, group.Name).
		Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "groups_club_id_name_key" {
					return ErrGroupNameConflict
				}
			case "23503":
				if pqErr.Constraint == "groups_club_id_fkey" {
					return ErrGroupClubInvalid
				}
			}
		}
		return err
	}
	return nil
}

func (r *postgresGroupRepository) GetByID(ctx context.Context, id int) (*models.Group, error) {
	query := `
		SELECT id, club_id, name, created_at
		FROM groups
		WHERE id = $1`

	group := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&group.ClubID,
		&group.Name,
		&group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return group, nil
}

func (r *postgresGroupRepository) ListByClub(ctx context.Context, clubID int) ([]*models.Group, error) {
	query := `
		SELECT id, club_id, name, created_at
		FROM groups
		WHERE club_id = $1
		ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		var group models.Group
		if scanErr := rows.Scan(
			&group.ID,
			&group.ClubID,
			&group.Name,
			&group.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		groups = append(groups, &group)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *postgresGroupRepository) CountByClub(ctx context.Context, clubID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM groups WHERE club_id = $1`, clubID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresGroupRepository) Rename(ctx context.Context, id int, name string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE groups SET name = $1 WHERE id = $2`, name, id,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "groups_club_id_name_key" {
				return ErrGroupNameConflict
			}
		}
		return err
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}

func (r *postgresGroupRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}
