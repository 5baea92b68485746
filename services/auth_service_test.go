package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	byID   map[int]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[int]*models.User), nextID: 1}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
		if u.Nickname == user.Nickname {
			return repositories.ErrUserNicknameConflict
		}
	}
	user.ID = r.nextID
	r.nextID++
	clone := *user
	r.byID[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error { return nil }

func (r *fakeUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *fakeUserRepo) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Nickname == nickname {
			return true, nil
		}
	}
	return false, nil
}

func TestRegisterHashesPasswordAndNormalizesEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo)

	user, err := svc.Register(context.Background(), RegisterInput{
		Nickname: "kim",
		Email:    "  Kim@Example.COM ",
		Password: "secret-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "kim@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.False(t, strings.Contains(stored.PasswordHash, "secret-password"))
}

func TestRegisterShortPassword(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), RegisterInput{
		Nickname: "kim",
		Email:    "kim@example.com",
		Password: "short",
	})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Nickname: "kim", Email: "kim@example.com", Password: "secret-password",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Nickname: "other", Email: "kim@example.com", Password: "secret-password",
	})
	assert.ErrorIs(t, err, ErrUserEmailConflict)
}

func TestLoginChecksPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Nickname: "kim", Email: "kim@example.com", Password: "secret-password",
	})
	require.NoError(t, err)

	user, err := svc.Login(context.Background(), LoginInput{Email: "KIM@example.com", Password: "secret-password"})
	require.NoError(t, err)
	assert.Equal(t, "kim", user.Nickname)
	assert.Empty(t, user.PasswordHash)

	_, err = svc.Login(context.Background(), LoginInput{Email: "kim@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "secret-password"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)
}

func TestCheckAvailability(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Nickname: "kim", Email: "kim@example.com", Password: "secret-password",
	})
	require.NoError(t, err)

	availability, err := svc.CheckAvailability(context.Background(), "kim@example.com", "fresh")
	require.NoError(t, err)
	assert.True(t, availability.EmailTaken)
	assert.False(t, availability.NicknameTaken)
}
