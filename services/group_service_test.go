package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moimhub/club-system/models"
)

type groupFixture struct {
	svc        GroupService
	groupRepo  *fakeGroupRepo
	memberRepo *fakeGroupMembershipRepo
}

// Клуб 1, группа 5. 100 — manager, 20 — лидер группы 5,
// 10 — рядовой участник группы, 11 — approved вне группы, 12 — pending.
func newGroupFixture() *groupFixture {
	groupRepo := &fakeGroupRepo{groups: map[int]*models.Group{
		5: {ID: 5, ClubID: 1, Name: "vocal team"},
	}}
	memberRepo := newFakeGroupMembershipRepo()
	memberRepo.add(1, 5, 20, models.GroupRoleLeader)
	memberRepo.add(1, 5, 10, models.GroupRoleMember)

	membership := &stubMembership{
		memberships: map[int]*models.Membership{
			100: {ClubID: 1, UserID: 100, Status: models.MembershipStatusApproved, Role: models.RoleManager},
			20:  {ClubID: 1, UserID: 20, Status: models.MembershipStatusApproved, Role: models.RoleMember},
			10:  {ClubID: 1, UserID: 10, Status: models.MembershipStatusApproved, Role: models.RoleMember},
			11:  {ClubID: 1, UserID: 11, Status: models.MembershipStatusApproved, Role: models.RoleMember},
			12:  {ClubID: 1, UserID: 12, Status: models.MembershipStatusPending, Role: models.RoleMember},
		},
		groupRows: map[int][]*models.GroupMembership{
			20: {{GroupID: 5, UserID: 20, Role: models.GroupRoleLeader}},
			10: {{GroupID: 5, UserID: 10, Role: models.GroupRoleMember}},
		},
	}
	return &groupFixture{
		svc:        NewGroupService(groupRepo, memberRepo, membership),
		groupRepo:  groupRepo,
		memberRepo: memberRepo,
	}
}

func TestCreateGroupRequiresAdmin(t *testing.T) {
	f := newGroupFixture()
	ctx := context.Background()

	_, err := f.svc.CreateGroup(ctx, 10, 1, "dance team")
	assert.ErrorIs(t, err, ErrClubAdminRequired)

	group, err := f.svc.CreateGroup(ctx, 100, 1, "  dance team  ")
	require.NoError(t, err)
	assert.Equal(t, "dance team", group.Name)
	assert.Equal(t, 1, group.ClubID)

	_, err = f.svc.CreateGroup(ctx, 100, 1, "   ")
	assert.ErrorIs(t, err, ErrGroupNameRequired)
}

func TestAddMemberRequiresApprovedTarget(t *testing.T) {
	f := newGroupFixture()
	ctx := context.Background()

	// Pending в группу не попадает даже руками admin'а.
	_, err := f.svc.AddMember(ctx, 100, 5, 12)
	assert.ErrorIs(t, err, ErrMemberNotApproved)

	gm, err := f.svc.AddMember(ctx, 100, 5, 11)
	require.NoError(t, err)
	assert.Equal(t, models.GroupRoleMember, gm.Role)
	assert.Equal(t, 5, gm.GroupID)
}

func TestAddMemberLeaderAllowedPlainMemberNot(t *testing.T) {
	f := newGroupFixture()
	ctx := context.Background()

	_, err := f.svc.AddMember(ctx, 10, 5, 11)
	assert.ErrorIs(t, err, ErrGroupLeaderRequired)

	_, err = f.svc.AddMember(ctx, 20, 5, 11)
	require.NoError(t, err)
}

func TestRemoveMemberSelfLeaveAllowed(t *testing.T) {
	f := newGroupFixture()
	ctx := context.Background()

	// Сам из группы — без прав лидера.
	require.NoError(t, f.svc.RemoveMember(ctx, 10, 5, 10))
	_, err := f.memberRepo.GetByGroupAndUser(ctx, 5, 10)
	assert.Error(t, err)

	// Чужого — только лидер или админ.
	f2 := newGroupFixture()
	err = f2.svc.RemoveMember(ctx, 10, 5, 20)
	assert.ErrorIs(t, err, ErrGroupLeaderRequired)
	require.NoError(t, f2.svc.RemoveMember(ctx, 100, 5, 10))
}

func TestPromoteLeaderAdminOnly(t *testing.T) {
	f := newGroupFixture()
	ctx := context.Background()

	// Лидер не может назначить другого лидера.
	err := f.svc.PromoteLeader(ctx, 20, 5, 10)
	assert.ErrorIs(t, err, ErrClubAdminRequired)

	require.NoError(t, f.svc.PromoteLeader(ctx, 100, 5, 10))
	gm, err := f.memberRepo.GetByGroupAndUser(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, models.GroupRoleLeader, gm.Role)

	require.NoError(t, f.svc.DemoteLeader(ctx, 100, 5, 10))
	gm, err = f.memberRepo.GetByGroupAndUser(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, models.GroupRoleMember, gm.Role)
}

func TestPromoteLeaderUnknownMember(t *testing.T) {
	f := newGroupFixture()

	err := f.svc.PromoteLeader(context.Background(), 100, 5, 11)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameAndDeleteGroup(t *testing.T) {
	f := newGroupFixture()
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.RenameGroup(ctx, 10, 5, "band"), ErrClubAdminRequired)
	require.NoError(t, f.svc.RenameGroup(ctx, 100, 5, "band"))

	_, err := f.svc.CreateGroup(ctx, 100, 1, "band")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteGroup(ctx, 100, 5))

	err = f.svc.RenameGroup(ctx, 100, 404, "ghost")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestListGroupMembersRequiresApprovedActor(t *testing.T) {
	f := newGroupFixture()
	ctx := context.Background()

	_, err := f.svc.ListGroupMembers(ctx, 12, 5)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	members, err := f.svc.ListGroupMembers(ctx, 11, 5)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}
