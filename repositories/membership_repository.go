package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrMembershipNotFound    = errors.New("membership not found")
	ErrMembershipConflict    = errors.New("membership already exists for this club and user")
	ErrMembershipClubInvalid = errors.New("membership club invalid")
	ErrMembershipUserInvalid = errors.New("membership user invalid")
)

// MembershipRepository определяет доступ к строкам club_members.
// Методы, принимающие SQLExecutor, участвуют в транзакциях сервисного слоя
// (бутстрап клуба, передача manager-роли, каскад при kick).
type MembershipRepository interface {
	Create(ctx context.Context, exec SQLExecutor, membership *models.Membership) error
	GetByID(ctx context.Context, id int) (*models.Membership, error)
	GetByClubAndUser(ctx context.Context, clubID, userID int) (*models.Membership, error)
	GetManager(ctx context.Context, exec SQLExecutor, clubID int) (*models.Membership, error)
	ListByClub(ctx context.Context, clubID int, status *models.MembershipStatus) ([]*models.Membership, error)
	CountByClub(ctx context.Context, clubID int, status models.MembershipStatus) (int, error)
	UpdateStatus(ctx context.Context, id int, status models.MembershipStatus) error
	UpdateRole(ctx context.Context, exec SQLExecutor, id int, role models.ClubRole) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresMembershipRepository struct {
	db *sql.DB
}

func NewPostgresMembershipRepository(db *sql.DB) MembershipRepository {
	return &postgresMembershipRepository{db: db}
}

func (r *postgresMembershipRepository) Create(ctx context.Context, exec SQLExecutor, membership *models.Membership) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO club_members (club_id, user_id, status, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		membership.ClubID,
		membership.UserID,
		membership.Status,
		membership.Role,
	).Scan(&membership.ID, &membership.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "club_members_club_id_user_id_key" {
					return ErrMembershipConflict
				}
			case "23503": // foreign_key_violation
				if pqErr.Constraint == "club_members_club_id_fkey" {
					return ErrMembershipClubInvalid
				}
				if pqErr.Constraint == "club_members_user_id_fkey" {
					return ErrMembershipUserInvalid
				}
			}
		}
		return err
	}
	return nil
}

func (r *postgresMembershipRepository) GetByID(ctx context.Context, id int) (*models.Membership, error) {
	query := `
		SELECT id, club_id, user_id, status, role, created_at
		FROM club_members
		WHERE id = $1`
	return scanMembership(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMembershipRepository) GetByClubAndUser(ctx context.Context, clubID, userID int) (*models.Membership, error) {
	query := `
		SELECT id, club_id, user_id, status, role, created_at
		FROM club_members
		WHERE club_id = $1 AND user_id = $2`
	return scanMembership(r.db.QueryRowContext(ctx, query, clubID, userID))
}

// GetManager возвращает единственную строку с ролью manager. Внутри
// транзакции передачи роли читает с FOR UPDATE, чтобы два параллельных
// transfer не прошли одновременно.
func (r *postgresMembershipRepository) GetManager(ctx context.Context, exec SQLExecutor, clubID int) (*models.Membership, error) {
	query := `
		SELECT id, club_id, user_id, status, role, created_at
		FROM club_members
		WHERE club_id = $1 AND role = 'manager'`
	if exec == nil {
		exec = r.db
	} else {
		query += ` FOR UPDATE`
	}
	return scanMembership(exec.QueryRowContext(ctx, query, clubID))
}

func (r *postgresMembershipRepository) ListByClub(ctx context.Context, clubID int, status *models.MembershipStatus) ([]*models.Membership, error) {
	query := `
		SELECT m.id, m.club_id, m.user_id, m.status, m.role, m.created_at,
			u.id, u.nickname, u.email, u.avatar_key, u.created_at
		FROM club_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.club_id = $1`
	args := []interface{}{clubID}
	if status != nil {
		query += ` AND m.status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY m.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := make([]*models.Membership, 0)
	for rows.Next() {
		var m models.Membership
		var u models.User
		if scanErr := rows.Scan(
			&m.ID, &m.ClubID, &m.UserID, &m.Status, &m.Role, &m.CreatedAt,
			&u.ID, &u.Nickname, &u.Email, &u.AvatarKey, &u.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		m.User = &u
		memberships = append(memberships, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *postgresMembershipRepository) CountByClub(ctx context.Context, clubID int, status models.MembershipStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM club_members WHERE club_id = $1 AND status = $2`,
		clubID, status,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresMembershipRepository) UpdateStatus(ctx context.Context, id int, status models.MembershipStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE club_members SET status = $1 WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) UpdateRole(ctx context.Context, exec SQLExecutor, id int, role models.ClubRole) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx,
		`UPDATE club_members SET role = $1 WHERE id = $2`,
		role, id,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `DELETE FROM club_members WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func scanMembership(row *sql.Row) (*models.Membership, error) {
	m := &models.Membership{}
	err := row.Scan(&m.ID, &m.ClubID, &m.UserID, &m.Status, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return m, nil
}
