package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrGroupMembershipNotFound = errors.New("group membership not found")
	ErrGroupMembershipConflict = errors.New("group membership already exists")
)

type GroupMembershipRepository interface {
	Create(ctx context.Context, membership *models.GroupMembership) error
	GetByGroupAndUser(ctx context.Context, groupID, userID int) (*models.GroupMembership, error)
	ListByGroup(ctx context.Context, groupID int) ([]*models.GroupMembership, error)
	// ListByClubAndUser возвращает все group-строки пользователя внутри клуба.
	ListByClubAndUser(ctx context.Context, clubID, userID int) ([]*models.GroupMembership, error)
	UpdateRole(ctx context.Context, id int, role models.GroupRole) error
	Delete(ctx context.Context, id int) error
	// DeleteByClubAndUser удаляет все group-строки пользователя в клубе.
	// Вызывается из транзакции kick/reject (каскад на уровне сервиса).
	DeleteByClubAndUser(ctx context.Context, exec SQLExecutor, clubID, userID int) (int64, error)
}

type postgresGroupMembershipRepository struct {
	db *sql.DB
}

func NewPostgresGroupMembershipRepository(db *sql.DB) GroupMembershipRepository {
	return &postgresGroupMembershipRepository{db: db}
}

func (r *postgresGroupMembershipRepository) Create(ctx context.Context, membership *models.GroupMembership) error {
	query := `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		membership.GroupID,
		membership.UserID,
		membership.Role,
	).Scan(&membership.ID, &membership.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "group_members_group_id_user_id_key" {
				return ErrGroupMembershipConflict
			}
		}
		return err
	}
	return nil
}

func (r *postgresGroupMembershipRepository) GetByGroupAndUser(ctx context.Context, groupID, userID int) (*models.GroupMembership, error) {
	query := `
		SELECT id, group_id, user_id, role, created_at
		FROM group_members
		WHERE group_id = $1 AND user_id = $2`

	gm := &models.GroupMembership{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&gm.ID, &gm.GroupID, &gm.UserID, &gm.Role, &gm.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupMembershipNotFound
		}
		return nil, err
	}
	return gm, nil
}

func (r *postgresGroupMembershipRepository) ListByGroup(ctx context.Context, groupID int) ([]*models.GroupMembership, error) {
	query := `
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.created_at,
			u.id, u.nickname, u.email, u.avatar_key, u.created_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := make([]*models.GroupMembership, 0)
	for rows.Next() {
		var gm models.GroupMembership
		var u models.User
		if scanErr := rows.Scan(
			&gm.ID, &gm.GroupID, &gm.UserID, &gm.Role, &gm.CreatedAt,
			&u.ID, &u.Nickname, &u.Email, &u.AvatarKey, &u.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		gm.User = &u
		memberships = append(memberships, &gm)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *postgresGroupMembershipRepository) ListByClubAndUser(ctx context.Context, clubID, userID int) ([]*models.GroupMembership, error) {
	query := `
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.created_at
		FROM group_members gm
		JOIN groups g ON g.id = gm.group_id
		WHERE g.club_id = $1 AND gm.user_id = $2`

	rows, err := r.db.QueryContext(ctx, query, clubID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := make([]*models.GroupMembership, 0)
	for rows.Next() {
		var gm models.GroupMembership
		if scanErr := rows.Scan(
			&gm.ID, &gm.GroupID, &gm.UserID, &gm.Role, &gm.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		memberships = append(memberships, &gm)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *postgresGroupMembershipRepository) UpdateRole(ctx context.Context, id int, role models.GroupRole) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET role = $1 WHERE id = $2`, role, id,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGroupMembershipNotFound)
}

func (r *postgresGroupMembershipRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGroupMembershipNotFound)
}

func (r *postgresGroupMembershipRepository) DeleteByClubAndUser(ctx context.Context, exec SQLExecutor, clubID, userID int) (int64, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		DELETE FROM group_members gm
		USING groups g
		WHERE g.id = gm.group_id AND g.club_id = $1 AND gm.user_id = $2`

	result, err := exec.ExecContext(ctx, query, clubID, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
