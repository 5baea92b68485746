package models

import "time"

// MembershipStatus представляет статусы участника, соответствующие ENUM в БД.
type MembershipStatus string

const (
	MembershipStatusPending  MembershipStatus = "pending"
	MembershipStatusApproved MembershipStatus = "approved"
)

// ClubRole is the club-level role hierarchy, descending privilege:
// manager > staff > member. Exactly one manager exists per club.
type ClubRole string

const (
	RoleManager ClubRole = "manager"
	RoleStaff   ClubRole = "staff"
	RoleMember  ClubRole = "member"
)

func (r ClubRole) Valid() bool {
	switch r {
	case RoleManager, RoleStaff, RoleMember:
		return true
	}
	return false
}

// Membership связывает пользователя с клубом. Ровно одна строка на пару
// (club_id, user_id).
type Membership struct {
	ID        int              `json:"id" db:"id"`
	ClubID    int              `json:"club_id" db:"club_id"`
	UserID    int              `json:"user_id" db:"user_id"`
	Status    MembershipStatus `json:"status" db:"status"`
	Role      ClubRole         `json:"role" db:"role"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`

	User *User `json:"user,omitempty" db:"-"`
	Club *Club `json:"club,omitempty" db:"-"`
}
