package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moimhub/club-system/chat"
	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[int]*models.Message
	nextID   int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[int]*models.Message), nextID: 1}
}

func (r *fakeMessageRepo) Create(ctx context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID
	m.CreatedAt = time.Now()
	r.nextID++
	clone := *m
	r.messages[m.ID] = &clone
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id int) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, repositories.ErrMessageNotFound
	}
	clone := *m
	return &clone, nil
}

func (r *fakeMessageRepo) ListByChannel(ctx context.Context, clubID int, groupID *int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.messages {
		if m.ClubID != clubID {
			continue
		}
		if (groupID == nil) != (m.GroupID == nil) {
			continue
		}
		if groupID != nil && *m.GroupID != *groupID {
			continue
		}
		clone := *m
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeMessageRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return repositories.ErrMessageNotFound
	}
	delete(r.messages, id)
	return nil
}

type fakeGroupRepo struct {
	groups map[int]*models.Group
}

func (r *fakeGroupRepo) Create(ctx context.Context, g *models.Group) error { return nil }

func (r *fakeGroupRepo) GetByID(ctx context.Context, id int) (*models.Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, repositories.ErrGroupNotFound
	}
	return g, nil
}

func (r *fakeGroupRepo) ListByClub(ctx context.Context, clubID int) ([]*models.Group, error) {
	return nil, nil
}

func (r *fakeGroupRepo) CountByClub(ctx context.Context, clubID int) (int, error) { return 0, nil }

func (r *fakeGroupRepo) Rename(ctx context.Context, id int, name string) error { return nil }

func (r *fakeGroupRepo) Delete(ctx context.Context, id int) error { return nil }

// stubMembership отдает заранее заданные строки без обращения к базе.
type stubMembership struct {
	MembershipService
	memberships map[int]*models.Membership        // userID -> строка клуба
	groupRows   map[int][]*models.GroupMembership // userID -> group-строки
}

func (s *stubMembership) ResolveMembership(ctx context.Context, clubID, userID int) *models.Membership {
	return s.memberships[userID]
}

func (s *stubMembership) ResolveGroupMemberships(ctx context.Context, clubID, userID int) []*models.GroupMembership {
	return s.groupRows[userID]
}

func newChatFixture() (ChatService, *fakeMessageRepo, *chat.Hub) {
	messageRepo := newFakeMessageRepo()
	groupRepo := &fakeGroupRepo{groups: map[int]*models.Group{
		5: {ID: 5, ClubID: 1, Name: "vocal team"},
		9: {ID: 9, ClubID: 2, Name: "other club group"},
	}}
	membership := &stubMembership{
		memberships: map[int]*models.Membership{
			100: {ClubID: 1, UserID: 100, Status: models.MembershipStatusApproved, Role: models.RoleManager},
			10:  {ClubID: 1, UserID: 10, Status: models.MembershipStatusApproved, Role: models.RoleMember},
			11:  {ClubID: 1, UserID: 11, Status: models.MembershipStatusApproved, Role: models.RoleMember},
			12:  {ClubID: 1, UserID: 12, Status: models.MembershipStatusPending, Role: models.RoleMember},
		},
		groupRows: map[int][]*models.GroupMembership{
			10: {{GroupID: 5, UserID: 10, Role: models.GroupRoleMember}},
		},
	}
	hub := chat.NewHub()
	return NewChatService(messageRepo, groupRepo, membership, hub), messageRepo, hub
}

func TestAppendPersistsThenPublishes(t *testing.T) {
	svc, _, hub := newChatFixture()
	ch := chat.ChannelID{ClubID: 1}

	sub := hub.Subscribe(ch.Room(), 4)
	defer sub.Cancel()

	message, err := svc.Append(context.Background(), ch, 10, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", message.Content)
	assert.NotZero(t, message.ID)

	select {
	case ev := <-sub.C:
		// Публикация после записи: событие несет серверный id.
		assert.Equal(t, message.ID, ev.Message.ID)
	case <-time.After(time.Second):
		t.Fatal("append was not published to the hub")
	}
}

func TestAppendRejectsEmptyContent(t *testing.T) {
	svc, _, _ := newChatFixture()

	_, err := svc.Append(context.Background(), chat.ChannelID{ClubID: 1}, 10, "   ")
	assert.ErrorIs(t, err, ErrMessageEmpty)
}

func TestChannelAccessRules(t *testing.T) {
	svc, _, _ := newChatFixture()
	groupID := 5
	groupCh := chat.ChannelID{ClubID: 1, GroupID: &groupID}

	// Pending-участник не имеет доступа даже к общему каналу.
	_, err := svc.History(context.Background(), chat.ChannelID{ClubID: 1}, 12)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Участник группы читает групповой канал.
	_, err = svc.History(context.Background(), groupCh, 10)
	assert.NoError(t, err)

	// Approved участник клуба вне группы — нет.
	_, err = svc.History(context.Background(), groupCh, 11)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Клубный админ читает любой групповой канал.
	_, err = svc.History(context.Background(), groupCh, 100)
	assert.NoError(t, err)

	// Группа чужого клуба под этим клубом не существует.
	foreignID := 9
	_, err = svc.History(context.Background(), chat.ChannelID{ClubID: 1, GroupID: &foreignID}, 10)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestDeleteMessageAuthorOrManager(t *testing.T) {
	svc, messageRepo, _ := newChatFixture()
	ch := chat.ChannelID{ClubID: 1}

	message, err := svc.Append(context.Background(), ch, 10, "mine")
	require.NoError(t, err)

	// Чужой рядовой участник удалить не может.
	err = svc.DeleteMessage(context.Background(), 11, message.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Автор может.
	require.NoError(t, svc.DeleteMessage(context.Background(), 10, message.ID))
	_, err = messageRepo.GetByID(context.Background(), message.ID)
	assert.ErrorIs(t, err, repositories.ErrMessageNotFound)

	// Manager может удалить чужое.
	message, err = svc.Append(context.Background(), ch, 11, "theirs")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteMessage(context.Background(), 100, message.ID))
}
