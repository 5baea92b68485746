package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrVoteConflict    = errors.New("user has already voted on this post")
	ErrOptionNotFound  = errors.New("vote option not found")
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id int) (*models.Post, error)
	ListByClub(ctx context.Context, clubID int, groupID *int) ([]*models.Post, error)
	CountByClub(ctx context.Context, clubID int) (int, error)
	Delete(ctx context.Context, id int) error

	CreateComment(ctx context.Context, comment *models.PostComment) error
	ListComments(ctx context.Context, postID int) ([]*models.PostComment, error)
	DeleteComment(ctx context.Context, id int) error

	CreateVote(ctx context.Context, vote *models.PostVote) error
	ListOptions(ctx context.Context, postID int) ([]*models.VoteOption, error)
}

type postgresPostRepository struct {
	db *sql.DB
}

func NewPostgresPostRepository(db *sql.DB) PostRepository {
	return &postgresPostRepository{db: db}
}

// Create вставляет пост и его vote-опции (для activity-постов) в одной
// транзакции.
func (r *postgresPostRepository) Create(ctx context.Context, post *models.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO posts (club_id, group_id, author_id, kind, title, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err = tx.QueryRowContext(ctx, query,
		post.ClubID,
		post.GroupID,
		post.AuthorID,
		post.Kind,
		post.Title,
		post.Body,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return err
	}

	for i := range post.Options {
		opt := &post.Options[i]
		opt.PostID = post.ID
		err = tx.QueryRowContext(ctx,
			`INSERT INTO post_vote_options (post_id, label) VALUES ($1, $2) RETURNING id`,
			opt.PostID, opt.Label,
		).Scan(&opt.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *postgresPostRepository) GetByID(ctx context.Context, id int) (*models.Post, error) {
	query := `
		SELECT p.id, p.club_id, p.group_id, p.author_id, p.kind, p.title, p.body, p.created_at,
			u.id, u.nickname, u.email, u.avatar_key, u.created_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1`

	var p models.Post
	var u models.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.ClubID, &p.GroupID, &p.AuthorID, &p.Kind, &p.Title, &p.Body, &p.CreatedAt,
		&u.ID, &u.Nickname, &u.Email, &u.AvatarKey, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	p.Author = &u
	return &p, nil
}

func (r *postgresPostRepository) ListByClub(ctx context.Context, clubID int, groupID *int) ([]*models.Post, error) {
	query := `
		SELECT p.id, p.club_id, p.group_id, p.author_id, p.kind, p.title, p.body, p.created_at,
			u.id, u.nickname, u.email, u.avatar_key, u.created_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.club_id = $1`
	args := []interface{}{clubID}
	if groupID != nil {
		query += ` AND p.group_id = $2`
		args = append(args, *groupID)
	}
	query += ` ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]*models.Post, 0)
	for rows.Next() {
		var p models.Post
		var u models.User
		if scanErr := rows.Scan(
			&p.ID, &p.ClubID, &p.GroupID, &p.AuthorID, &p.Kind, &p.Title, &p.Body, &p.CreatedAt,
			&u.ID, &u.Nickname, &u.Email, &u.AvatarKey, &u.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		p.Author = &u
		posts = append(posts, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postgresPostRepository) CountByClub(ctx context.Context, clubID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE club_id = $1`, clubID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresPostRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPostNotFound)
}

func (r *postgresPostRepository) CreateComment(ctx context.Context, comment *models.PostComment) error {
	query := `
		INSERT INTO post_comments (post_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		comment.PostID,
		comment.AuthorID,
		comment.Body,
	).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrPostNotFound
		}
		return err
	}
	return nil
}

func (r *postgresPostRepository) ListComments(ctx context.Context, postID int) ([]*models.PostComment, error) {
	query := `
		SELECT c.id, c.post_id, c.author_id, c.body, c.created_at,
			u.id, u.nickname, u.email, u.avatar_key, u.created_at
		FROM post_comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]*models.PostComment, 0)
	for rows.Next() {
		var c models.PostComment
		var u models.User
		if scanErr := rows.Scan(
			&c.ID, &c.PostID, &c.AuthorID, &c.Body, &c.CreatedAt,
			&u.ID, &u.Nickname, &u.Email, &u.AvatarKey, &u.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		c.Author = &u
		comments = append(comments, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *postgresPostRepository) DeleteComment(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM post_comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrCommentNotFound)
}

func (r *postgresPostRepository) CreateVote(ctx context.Context, vote *models.PostVote) error {
	query := `
		INSERT INTO post_votes (post_id, option_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		vote.PostID,
		vote.OptionID,
		vote.UserID,
	).Scan(&vote.ID, &vote.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "post_votes_post_id_user_id_key" {
					return ErrVoteConflict
				}
			case "23503":
				if pqErr.Constraint == "post_votes_option_id_fkey" {
					return ErrOptionNotFound
				}
				return ErrPostNotFound
			}
		}
		return err
	}
	return nil
}

func (r *postgresPostRepository) ListOptions(ctx context.Context, postID int) ([]*models.VoteOption, error) {
	query := `
		SELECT o.id, o.post_id, o.label, COUNT(v.id)
		FROM post_vote_options o
		LEFT JOIN post_votes v ON v.option_id = o.id
		WHERE o.post_id = $1
		GROUP BY o.id, o.post_id, o.label
		ORDER BY o.id ASC`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := make([]*models.VoteOption, 0)
	for rows.Next() {
		var o models.VoteOption
		if scanErr := rows.Scan(&o.ID, &o.PostID, &o.Label, &o.VoteCount); scanErr != nil {
			return nil, scanErr
		}
		options = append(options, &o)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return options, nil
}
