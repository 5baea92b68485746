package models

import "time"

// Message — одно сообщение чата. Append-only: строки никогда не изменяются,
// удалять может автор или manager клуба.
type Message struct {
	ID        int       `json:"id" db:"id"`
	ClubID    int       `json:"club_id" db:"club_id"`
	GroupID   *int      `json:"group_id,omitempty" db:"group_id"`
	AuthorID  int       `json:"author_id" db:"author_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Author *User `json:"author,omitempty" db:"-"`
}
