package models

import "time"

type Club struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Intro     *string   `json:"intro,omitempty" db:"intro"`
	Official  bool      `json:"official" db:"official"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	CoverKey *string `json:"-" db:"cover_key"`
	CoverURL *string `json:"cover_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Groups  []Group      `json:"groups,omitempty" db:"-"`
	Members []Membership `json:"members,omitempty" db:"-"`
}

// ClubOverview агрегирует счетчики для главной страницы клуба.
type ClubOverview struct {
	Club          *Club `json:"club"`
	MemberCount   int   `json:"member_count"`
	PendingCount  int   `json:"pending_count"`
	GroupCount    int   `json:"group_count"`
	PostCount     int   `json:"post_count"`
	ScheduleCount int   `json:"schedule_count"`
}
