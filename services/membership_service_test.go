package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
)

type fakeMembershipRepo struct {
	mu     sync.Mutex
	byID   map[int]*models.Membership
	nextID int
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{byID: make(map[int]*models.Membership), nextID: 1}
}

func (r *fakeMembershipRepo) add(clubID, userID int, status models.MembershipStatus, role models.ClubRole) *models.Membership {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &models.Membership{ID: r.nextID, ClubID: clubID, UserID: userID, Status: status, Role: role}
	r.byID[m.ID] = m
	r.nextID++
	return m
}

func (r *fakeMembershipRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.ClubID == m.ClubID && existing.UserID == m.UserID {
			return repositories.ErrMembershipConflict
		}
	}
	m.ID = r.nextID
	r.nextID++
	clone := *m
	r.byID[m.ID] = &clone
	return nil
}

func (r *fakeMembershipRepo) GetByID(ctx context.Context, id int) (*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrMembershipNotFound
	}
	clone := *m
	return &clone, nil
}

func (r *fakeMembershipRepo) GetByClubAndUser(ctx context.Context, clubID, userID int) (*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byID {
		if m.ClubID == clubID && m.UserID == userID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, repositories.ErrMembershipNotFound
}

func (r *fakeMembershipRepo) GetManager(ctx context.Context, exec repositories.SQLExecutor, clubID int) (*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byID {
		if m.ClubID == clubID && m.Role == models.RoleManager {
			clone := *m
			return &clone, nil
		}
	}
	return nil, repositories.ErrMembershipNotFound
}

func (r *fakeMembershipRepo) ListByClub(ctx context.Context, clubID int, status *models.MembershipStatus) ([]*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Membership
	for _, m := range r.byID {
		if m.ClubID != clubID {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		clone := *m
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeMembershipRepo) CountByClub(ctx context.Context, clubID int, status models.MembershipStatus) (int, error) {
	members, _ := r.ListByClub(ctx, clubID, &status)
	return len(members), nil
}

func (r *fakeMembershipRepo) UpdateStatus(ctx context.Context, id int, status models.MembershipStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return repositories.ErrMembershipNotFound
	}
	m.Status = status
	return nil
}

func (r *fakeMembershipRepo) UpdateRole(ctx context.Context, exec repositories.SQLExecutor, id int, role models.ClubRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return repositories.ErrMembershipNotFound
	}
	m.Role = role
	return nil
}

func (r *fakeMembershipRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return repositories.ErrMembershipNotFound
	}
	delete(r.byID, id)
	return nil
}

type fakeGroupMembershipRepo struct {
	mu     sync.Mutex
	byID   map[int]*models.GroupMembership
	nextID int
	// clubByGroup нужен фейку для каскадного удаления по клубу.
	clubByGroup map[int]int
}

func newFakeGroupMembershipRepo() *fakeGroupMembershipRepo {
	return &fakeGroupMembershipRepo{
		byID:        make(map[int]*models.GroupMembership),
		nextID:      1,
		clubByGroup: make(map[int]int),
	}
}

func (r *fakeGroupMembershipRepo) add(clubID, groupID, userID int, role models.GroupRole) *models.GroupMembership {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &models.GroupMembership{ID: r.nextID, GroupID: groupID, UserID: userID, Role: role}
	r.byID[m.ID] = m
	r.clubByGroup[groupID] = clubID
	r.nextID++
	return m
}

func (r *fakeGroupMembershipRepo) Create(ctx context.Context, m *models.GroupMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID
	r.nextID++
	clone := *m
	r.byID[m.ID] = &clone
	return nil
}

func (r *fakeGroupMembershipRepo) GetByGroupAndUser(ctx context.Context, groupID, userID int) (*models.GroupMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byID {
		if m.GroupID == groupID && m.UserID == userID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, repositories.ErrGroupMembershipNotFound
}

func (r *fakeGroupMembershipRepo) ListByGroup(ctx context.Context, groupID int) ([]*models.GroupMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GroupMembership
	for _, m := range r.byID {
		if m.GroupID == groupID {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeGroupMembershipRepo) ListByClubAndUser(ctx context.Context, clubID, userID int) ([]*models.GroupMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GroupMembership
	for _, m := range r.byID {
		if r.clubByGroup[m.GroupID] == clubID && m.UserID == userID {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeGroupMembershipRepo) UpdateRole(ctx context.Context, id int, role models.GroupRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return repositories.ErrGroupMembershipNotFound
	}
	m.Role = role
	return nil
}

func (r *fakeGroupMembershipRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return repositories.ErrGroupMembershipNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *fakeGroupMembershipRepo) DeleteByClubAndUser(ctx context.Context, exec repositories.SQLExecutor, clubID, userID int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, m := range r.byID {
		if r.clubByGroup[m.GroupID] == clubID && m.UserID == userID {
			delete(r.byID, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeClubRepo struct {
	mu    sync.Mutex
	clubs map[int]*models.Club
}

func newFakeClubRepo(ids ...int) *fakeClubRepo {
	r := &fakeClubRepo{clubs: make(map[int]*models.Club)}
	for _, id := range ids {
		r.clubs[id] = &models.Club{ID: id, Name: "club"}
	}
	return r
}

func (r *fakeClubRepo) Create(ctx context.Context, exec repositories.SQLExecutor, club *models.Club) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	club.ID = len(r.clubs) + 1
	clone := *club
	r.clubs[club.ID] = &clone
	return nil
}

func (r *fakeClubRepo) GetByID(ctx context.Context, id int) (*models.Club, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	club, ok := r.clubs[id]
	if !ok {
		return nil, repositories.ErrClubNotFound
	}
	clone := *club
	return &clone, nil
}

func (r *fakeClubRepo) List(ctx context.Context, officialOnly bool) ([]*models.Club, error) {
	return nil, nil
}

func (r *fakeClubRepo) Update(ctx context.Context, club *models.Club) error { return nil }

func (r *fakeClubRepo) Delete(ctx context.Context, id int) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type membershipFixture struct {
	svc       MembershipService
	repo      *fakeMembershipRepo
	groupRepo *fakeGroupMembershipRepo
	clubRepo  *fakeClubRepo
	mock      sqlmock.Sqlmock
}

func newMembershipFixture(t *testing.T, clubIDs ...int) *membershipFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := newFakeMembershipRepo()
	groupRepo := newFakeGroupMembershipRepo()
	clubRepo := newFakeClubRepo(clubIDs...)

	return &membershipFixture{
		svc:       NewMembershipService(db, repo, groupRepo, clubRepo, discardLogger()),
		repo:      repo,
		groupRepo: groupRepo,
		clubRepo:  clubRepo,
		mock:      mock,
	}
}

func TestRequestJoinCreatesPendingMember(t *testing.T) {
	f := newMembershipFixture(t, 1)

	membership, err := f.svc.RequestJoin(context.Background(), 1, 10)
	require.NoError(t, err)

	assert.Equal(t, models.MembershipStatusPending, membership.Status)
	assert.Equal(t, models.RoleMember, membership.Role)
}

func TestRequestJoinDuplicateConflicts(t *testing.T) {
	f := newMembershipFixture(t, 1)

	_, err := f.svc.RequestJoin(context.Background(), 1, 10)
	require.NoError(t, err)

	_, err = f.svc.RequestJoin(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrDuplicateJoinRequest)
}

func TestRequestJoinUnknownClub(t *testing.T) {
	f := newMembershipFixture(t, 1)

	_, err := f.svc.RequestJoin(context.Background(), 99, 10)
	assert.ErrorIs(t, err, ErrClubNotFound)
}

func TestApproveSetsApproved(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleManager)
	target := f.repo.add(1, 10, models.MembershipStatusPending, models.RoleMember)

	require.NoError(t, f.svc.Approve(context.Background(), 100, target.ID))

	got, err := f.repo.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusApproved, got.Status)
}

func TestApproveRequiresAdmin(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleMember)
	target := f.repo.add(1, 10, models.MembershipStatusPending, models.RoleMember)

	err := f.svc.Approve(context.Background(), 100, target.ID)
	assert.ErrorIs(t, err, ErrClubAdminRequired)
}

func TestApproveRequiresPendingStatus(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleStaff)
	target := f.repo.add(1, 10, models.MembershipStatusApproved, models.RoleMember)

	err := f.svc.Approve(context.Background(), 100, target.ID)
	assert.ErrorIs(t, err, ErrMembershipNotPending)
}

func TestRejectDeletesPendingRow(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleManager)
	target := f.repo.add(1, 10, models.MembershipStatusPending, models.RoleMember)

	require.NoError(t, f.svc.Reject(context.Background(), 100, target.ID))

	_, err := f.repo.GetByID(context.Background(), target.ID)
	assert.ErrorIs(t, err, repositories.ErrMembershipNotFound)

	// Отклоненный пользователь может податься снова.
	_, err = f.svc.RequestJoin(context.Background(), 1, 10)
	assert.NoError(t, err)
}

func TestKickRemovesMembershipAndGroupRows(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleManager)
	target := f.repo.add(1, 10, models.MembershipStatusApproved, models.RoleMember)
	f.groupRepo.add(1, 5, 10, models.GroupRoleLeader)
	f.groupRepo.add(1, 6, 10, models.GroupRoleMember)
	other := f.groupRepo.add(1, 5, 11, models.GroupRoleMember)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.Kick(context.Background(), 100, target.ID))

	_, err := f.repo.GetByID(context.Background(), target.ID)
	assert.ErrorIs(t, err, repositories.ErrMembershipNotFound)

	rows, err := f.groupRepo.ListByClubAndUser(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Чужие group-строки не задеты.
	_, err = f.groupRepo.GetByGroupAndUser(context.Background(), other.GroupID, other.UserID)
	assert.NoError(t, err)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestKickManagerForbidden(t *testing.T) {
	f := newMembershipFixture(t, 1)
	manager := f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleManager)
	f.repo.add(1, 10, models.MembershipStatusApproved, models.RoleStaff)

	err := f.svc.Kick(context.Background(), 10, manager.ID)
	assert.ErrorIs(t, err, ErrCannotKickManager)
}

func TestChangeRoleManagerOnly(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleStaff)
	target := f.repo.add(1, 10, models.MembershipStatusApproved, models.RoleMember)

	err := f.svc.ChangeRole(context.Background(), 100, target.ID, models.RoleStaff)
	assert.ErrorIs(t, err, ErrManagerOnly)
}

func TestChangeRoleNeverAssignsManager(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleManager)
	target := f.repo.add(1, 10, models.MembershipStatusApproved, models.RoleMember)

	err := f.svc.ChangeRole(context.Background(), 100, target.ID, models.RoleManager)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestTransferManagerSwapsRoles(t *testing.T) {
	f := newMembershipFixture(t, 1)
	manager := f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleManager)
	target := f.repo.add(1, 10, models.MembershipStatusApproved, models.RoleMember)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.TransferManager(context.Background(), 1, 100, 10))

	oldManager, err := f.repo.GetByID(context.Background(), manager.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, oldManager.Role)

	newManager, err := f.repo.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, newManager.Role)
}

func TestTransferManagerChainKeepsSingleManager(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleManager)
	f.repo.add(1, 10, models.MembershipStatusApproved, models.RoleMember)
	f.repo.add(1, 20, models.MembershipStatusApproved, models.RoleMember)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.TransferManager(context.Background(), 1, 100, 10))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.TransferManager(context.Background(), 1, 10, 20))

	var managers int
	for _, m := range f.repo.byID {
		if m.Role == models.RoleManager {
			managers++
		}
	}
	assert.Equal(t, 1, managers)

	// Прежний manager больше не может передавать роль.
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	err := f.svc.TransferManager(context.Background(), 1, 100, 10)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestTransferManagerTargetMustBeApproved(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleManager)
	f.repo.add(1, 10, models.MembershipStatusPending, models.RoleMember)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.TransferManager(context.Background(), 1, 100, 10)
	assert.ErrorIs(t, err, ErrMemberNotApproved)
}

func TestTransferManagerToSelfRejected(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleManager)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.TransferManager(context.Background(), 1, 100, 100)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestListMembersPendingRequiresAdmin(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusApproved, models.RoleMember)
	f.repo.add(1, 10, models.MembershipStatusPending, models.RoleMember)

	pending := models.MembershipStatusPending
	_, err := f.svc.ListMembers(context.Background(), 100, 1, &pending)
	assert.ErrorIs(t, err, ErrClubAdminRequired)

	approved := models.MembershipStatusApproved
	members, err := f.svc.ListMembers(context.Background(), 100, 1, &approved)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestListMembersRequiresApprovedActor(t *testing.T) {
	f := newMembershipFixture(t, 1)
	f.repo.add(1, 100, models.MembershipStatusPending, models.RoleMember)

	_, err := f.svc.ListMembers(context.Background(), 100, 1, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
