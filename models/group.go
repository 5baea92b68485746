package models

import "time"

type Group struct {
	ID        int       `json:"id" db:"id"`
	ClubID    int       `json:"club_id" db:"club_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Members []GroupMembership `json:"members,omitempty" db:"-"`
}

type GroupRole string

const (
	GroupRoleLeader GroupRole = "leader"
	GroupRoleMember GroupRole = "member"
)

// GroupMembership связывает пользователя с группой внутри клуба.
// Пользователь может состоять в нескольких группах одного клуба.
type GroupMembership struct {
	ID        int       `json:"id" db:"id"`
	GroupID   int       `json:"group_id" db:"group_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Role      GroupRole `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	User  *User  `json:"user,omitempty" db:"-"`
	Group *Group `json:"group,omitempty" db:"-"`
}
