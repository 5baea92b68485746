package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserEmailConflict    = errors.New("user email conflict")
	ErrUserNicknameConflict = errors.New("user nickname conflict")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	NicknameExists(ctx context.Context, nickname string) (bool, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (nickname, email, password_hash, avatar_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Nickname,
		user.Email,
		user.PasswordHash,
		user.AvatarKey,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrUserEmailConflict
			case "users_nickname_key":
				return ErrUserNicknameConflict
			}
		}
		return err
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `
		SELECT id, nickname, email, password_hash, avatar_key, created_at
		FROM users
		WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, nickname, email, password_hash, avatar_key, created_at
		FROM users
		WHERE email = $1`
	return r.scanUser(ctx, query, email)
}

func (r *postgresUserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			nickname = $1,
			email = $2,
			password_hash = $3,
			avatar_key = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		user.Nickname,
		user.Email,
		user.PasswordHash,
		user.AvatarKey,
		user.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrUserEmailConflict
			case "users_nickname_key":
				return ErrUserNicknameConflict
			}
		}
		return err
	}

	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *postgresUserRepository) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE nickname = $1)`, nickname)
}

func (r *postgresUserRepository) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// scanUser - вспомогательный метод для сканирования одного пользователя
func (r *postgresUserRepository) scanUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Nickname,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarKey,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
