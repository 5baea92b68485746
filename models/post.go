package models

import "time"

type PostKind string

const (
	PostKindNotice   PostKind = "notice"
	PostKindActivity PostKind = "activity" // activity posts carry vote options
)

type Post struct {
	ID        int       `json:"id" db:"id"`
	ClubID    int       `json:"club_id" db:"club_id"`
	GroupID   *int      `json:"group_id,omitempty" db:"group_id"`
	AuthorID  int       `json:"author_id" db:"author_id"`
	Kind      PostKind  `json:"kind" db:"kind"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Author   *User         `json:"author,omitempty" db:"-"`
	Options  []VoteOption  `json:"options,omitempty" db:"-"`
	Comments []PostComment `json:"comments,omitempty" db:"-"`
}

type VoteOption struct {
	ID        int    `json:"id" db:"id"`
	PostID    int    `json:"post_id" db:"post_id"`
	Label     string `json:"label" db:"label"`
	VoteCount int    `json:"vote_count" db:"-"`
}

// PostVote — один голос на пост. Уникальность (post_id, user_id)
// обеспечивается constraint'ом в БД.
type PostVote struct {
	ID        int       `json:"id" db:"id"`
	PostID    int       `json:"post_id" db:"post_id"`
	OptionID  int       `json:"option_id" db:"option_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type PostComment struct {
	ID        int       `json:"id" db:"id"`
	PostID    int       `json:"post_id" db:"post_id"`
	AuthorID  int       `json:"author_id" db:"author_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Author *User `json:"author,omitempty" db:"-"`
}
