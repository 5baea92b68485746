package models

import "time"

type Schedule struct {
	ID       int       `json:"id" db:"id"`
	ClubID   int       `json:"club_id" db:"club_id"`
	Title    string    `json:"title" db:"title"`
	Place    *string   `json:"place,omitempty" db:"place"`
	StartsAt time.Time `json:"starts_at" db:"starts_at"`
	EndsAt   time.Time `json:"ends_at" db:"ends_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
