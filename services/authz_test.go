package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moimhub/club-system/models"
)

func TestIsClubAdmin(t *testing.T) {
	assert.True(t, IsClubAdmin(models.RoleManager))
	assert.True(t, IsClubAdmin(models.RoleStaff))
	assert.False(t, IsClubAdmin(models.RoleMember))
	assert.False(t, IsClubAdmin(models.ClubRole("")))
}

func TestIsGroupLeader(t *testing.T) {
	memberships := []*models.GroupMembership{
		{GroupID: 1, Role: models.GroupRoleLeader},
		{GroupID: 2, Role: models.GroupRoleMember},
	}

	assert.True(t, IsGroupLeader(memberships, 1, models.RoleMember))
	assert.False(t, IsGroupLeader(memberships, 2, models.RoleMember))
	assert.False(t, IsGroupLeader(memberships, 3, models.RoleMember))

	// Клубные админы имеют leader-права в любой группе клуба.
	assert.True(t, IsGroupLeader(nil, 3, models.RoleManager))
	assert.True(t, IsGroupLeader(nil, 3, models.RoleStaff))
}

func TestCanWriteBoard(t *testing.T) {
	assert.True(t, CanWriteBoard(models.RoleManager, nil))
	assert.True(t, CanWriteBoard(models.RoleStaff, nil))
	assert.True(t, CanWriteBoard(models.RoleMember, []int{4}))
	assert.False(t, CanWriteBoard(models.RoleMember, nil))
}

func TestLeaderGroupIDs(t *testing.T) {
	memberships := []*models.GroupMembership{
		{GroupID: 1, Role: models.GroupRoleLeader},
		{GroupID: 2, Role: models.GroupRoleMember},
		{GroupID: 3, Role: models.GroupRoleLeader},
	}

	assert.ElementsMatch(t, []int{1, 3}, LeaderGroupIDs(memberships))
	assert.Empty(t, LeaderGroupIDs(nil))
}
