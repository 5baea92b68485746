package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrMessageNotFound       = errors.New("message not found")
	ErrMessageChannelInvalid = errors.New("message club or group invalid")
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id int) (*models.Message, error)
	// ListByChannel возвращает историю канала по возрастанию created_at.
	// groupID == nil означает общий канал клуба.
	ListByChannel(ctx context.Context, clubID int, groupID *int) ([]*models.Message, error)
	Delete(ctx context.Context, id int) error
}

type postgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *sql.DB) MessageRepository {
	return &postgresMessageRepository{db: db}
}

func (r *postgresMessageRepository) Create(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO chat_messages (club_id, group_id, author_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		message.ClubID,
		message.GroupID,
		message.AuthorID,
		message.Content,
	).Scan(&message.ID, &message.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrMessageChannelInvalid
		}
		return err
	}
	return nil
}

func (r *postgresMessageRepository) GetByID(ctx context.Context, id int) (*models.Message, error) {
	query := `
		SELECT id, club_id, group_id, author_id, content, created_at
		FROM chat_messages
		WHERE id = $1`

	message := &models.Message{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&message.ID,
		&message.ClubID,
		&message.GroupID,
		&message.AuthorID,
		&message.Content,
		&message.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return message, nil
}

func (r *postgresMessageRepository) ListByChannel(ctx context.Context, clubID int, groupID *int) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.club_id, m.group_id, m.author_id, m.content, m.created_at,
			u.id, u.nickname, u.email, u.avatar_key, u.created_at
		FROM chat_messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.club_id = $1`
	args := []interface{}{clubID}
	if groupID == nil {
		query += ` AND m.group_id IS NULL`
	} else {
		query += ` AND m.group_id = $2`
		args = append(args, *groupID)
	}
	// Вторичный ключ id фиксирует порядок при равных created_at.
	query += ` ORDER BY m.created_at ASC, m.id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		var m models.Message
		var u models.User
		if scanErr := rows.Scan(
			&m.ID, &m.ClubID, &m.GroupID, &m.AuthorID, &m.Content, &m.CreatedAt,
			&u.ID, &u.Nickname, &u.Email, &u.AvatarKey, &u.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		m.Author = &u
		messages = append(messages, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *postgresMessageRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMessageNotFound)
}
