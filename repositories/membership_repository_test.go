package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moimhub/club-system/models"
)

func newMockDB(t *testing.T) (*postgresMembershipRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &postgresMembershipRepository{db: db}, mock
}

func TestMembershipCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO club_members`).
		WithArgs(1, 10, models.MembershipStatusPending, models.RoleMember).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "club_members_club_id_user_id_key"})

	err := repo.Create(context.Background(), nil, &models.Membership{
		ClubID: 1,
		UserID: 10,
		Status: models.MembershipStatusPending,
		Role:   models.RoleMember,
	})
	assert.ErrorIs(t, err, ErrMembershipConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipCreateMapsForeignKeyViolation(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO club_members`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "club_members_club_id_fkey"})

	err := repo.Create(context.Background(), nil, &models.Membership{ClubID: 99, UserID: 10})
	assert.ErrorIs(t, err, ErrMembershipClubInvalid)
}

func TestMembershipCreateReturnsGeneratedID(t *testing.T) {
	repo, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO club_members`).
		WithArgs(1, 10, models.MembershipStatusPending, models.RoleMember).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, now))

	m := &models.Membership{ClubID: 1, UserID: 10, Status: models.MembershipStatusPending, Role: models.RoleMember}
	require.NoError(t, repo.Create(context.Background(), nil, m))
	assert.Equal(t, 7, m.ID)
	assert.Equal(t, now, m.CreatedAt)
}

func TestGetManagerLocksRowInsideTransaction(t *testing.T) {
	repo, mock := newMockDB(t)
	now := time.Now()

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "club_id", "user_id", "status", "role", "created_at"}).
			AddRow(1, 1, 100, models.MembershipStatusApproved, models.RoleManager, now)
	}

	// Вне транзакции — без блокировки.
	mock.ExpectQuery(`WHERE club_id = \$1 AND role = 'manager'$`).
		WithArgs(1).
		WillReturnRows(rows())

	m, err := repo.GetManager(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, m.UserID)

	// Внутри транзакции запрос заканчивается FOR UPDATE.
	mock.ExpectBegin()
	mock.ExpectQuery(`role = 'manager' FOR UPDATE$`).
		WithArgs(1).
		WillReturnRows(rows())
	mock.ExpectCommit()

	tx, err := repo.db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	m, err = repo.GetManager(context.Background(), tx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, m.Role)
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoleMissingRow(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE club_members SET role`).
		WithArgs(models.RoleStaff, 42).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateRole(context.Background(), nil, 42, models.RoleStaff)
	assert.ErrorIs(t, err, ErrMembershipNotFound)
}

func TestGetByClubAndUserNotFound(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(`FROM club_members`).
		WithArgs(1, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "club_id", "user_id", "status", "role", "created_at"}))

	_, err := repo.GetByClubAndUser(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrMembershipNotFound)
}

func TestListByClubFiltersByStatus(t *testing.T) {
	repo, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`AND m\.status = \$2`).
		WithArgs(1, models.MembershipStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "club_id", "user_id", "status", "role", "created_at",
			"id", "nickname", "email", "avatar_key", "created_at",
		}).AddRow(5, 1, 10, models.MembershipStatusPending, models.RoleMember, now,
			10, "kim", "kim@example.com", nil, now))

	pending := models.MembershipStatusPending
	members, err := repo.ListByClub(context.Background(), 1, &pending)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "kim", members[0].User.Nickname)
	assert.Equal(t, models.MembershipStatusPending, members[0].Status)
}
