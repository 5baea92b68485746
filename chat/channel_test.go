package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moimhub/club-system/models"
)

type fakeStore struct {
	mu      sync.Mutex
	history map[string][]*models.Message
	nextID  int
	failing bool
	appends int
}

func newFakeStore() *fakeStore {
	return &fakeStore{history: make(map[string][]*models.Message), nextID: 1}
}

func (s *fakeStore) History(ctx context.Context, ch ChannelID, userID int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Message, len(s.history[ch.Room()]))
	copy(out, s.history[ch.Room()])
	return out, nil
}

func (s *fakeStore) Append(ctx context.Context, ch ChannelID, authorID int, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.failing {
		return nil, errors.New("store down")
	}
	msg := &models.Message{
		ID:        s.nextID,
		ClubID:    ch.ClubID,
		GroupID:   ch.GroupID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.nextID++
	s.history[ch.Room()] = append(s.history[ch.Room()], msg)
	return msg, nil
}

func (s *fakeStore) seed(ch ChannelID, authorID int, content string, at time.Time) *models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &models.Message{
		ID:        s.nextID,
		ClubID:    ch.ClubID,
		GroupID:   ch.GroupID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: at,
	}
	s.nextID++
	s.history[ch.Room()] = append(s.history[ch.Room()], msg)
	return msg
}

func (s *fakeStore) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func newTestManager(t *testing.T, store Store, userID int) *ChannelManager {
	t.Helper()
	m := NewChannelManager(context.Background(), store, NewHub(), userID)
	t.Cleanup(m.Close)
	return m
}

func contents(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message.Content)
	}
	return out
}

func TestOpenLoadsHistoryInOrder(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 1}
	base := time.Now().Add(-time.Hour)
	store.seed(ch, 2, "first", base)
	store.seed(ch, 3, "second", base.Add(time.Minute))

	m := newTestManager(t, store, 1)
	require.NoError(t, m.Open(ch))

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"first", "second"}, contents(entries))
	for _, e := range entries {
		assert.Equal(t, StateConfirmed, e.State)
	}
}

func TestSendOptimisticThenConfirmed(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 1}

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(ch))

	require.NoError(t, m.Send("prov-1", "hello"))

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StateConfirmed, entries[0].State)
	assert.Equal(t, "prov-1", entries[0].ProvisionalID)
	assert.NotZero(t, entries[0].Message.ID)
}

func TestOwnEchoConfirmsInsteadOfDuplicating(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 1}

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(ch))
	require.NoError(t, m.Send("prov-1", "hello"))

	// Эхо собственного сообщения из live-ленты после подтверждения Append:
	// известный серверный id, запись не дублируется.
	confirmed := m.Entries()[0].Message
	m.OnRemoteInsert(Event{Type: EventMessage, Message: &confirmed})

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StateConfirmed, entries[0].State)
}

func TestEchoBeforeAppendReturnConfirmsPendingFIFO(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 4}

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(ch))

	// Оптимистичная запись без завершенного Append.
	m.mu.Lock()
	m.seq++
	entry := &Entry{
		ProvisionalID: "prov-1",
		State:         StatePending,
		Message:       models.Message{ClubID: 4, AuthorID: 7, Content: "hi", CreatedAt: m.nextProvisionalTS()},
		seq:           m.seq,
	}
	m.byProv["prov-1"] = entry
	m.pending = append(m.pending, "prov-1")
	m.entries = append(m.entries, entry)
	m.mu.Unlock()

	server := &models.Message{ID: 42, ClubID: 4, AuthorID: 7, Content: "hi", CreatedAt: time.Now()}
	m.OnRemoteInsert(Event{Type: EventMessage, Message: server})

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StateConfirmed, entries[0].State)
	assert.Equal(t, 42, entries[0].Message.ID)
}

func TestRemoteFromOtherAuthorNeverConfirmsPending(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 4}

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(ch))

	m.mu.Lock()
	m.seq++
	entry := &Entry{
		ProvisionalID: "prov-1",
		State:         StatePending,
		Message:       models.Message{ClubID: 4, AuthorID: 7, Content: "hi", CreatedAt: m.nextProvisionalTS()},
		seq:           m.seq,
	}
	m.byProv["prov-1"] = entry
	m.pending = append(m.pending, "prov-1")
	m.entries = append(m.entries, entry)
	m.mu.Unlock()

	// Чужое сообщение с тем же текстом: вставляется отдельной строкой,
	// pending-запись остается нетронутой.
	other := &models.Message{ID: 43, ClubID: 4, AuthorID: 9, Content: "hi", CreatedAt: time.Now()}
	m.OnRemoteInsert(Event{Type: EventMessage, Message: other})

	entries := m.Entries()
	require.Len(t, entries, 2)

	var pendingCount int
	for _, e := range entries {
		if e.State == StatePending {
			pendingCount++
		}
	}
	assert.Equal(t, 1, pendingCount)
}

func TestFailedSendKeptForRetry(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 1}

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(ch))

	store.setFailing(true)
	require.Error(t, m.Send("prov-1", "hello"))

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StateFailed, entries[0].State)

	store.setFailing(false)
	require.NoError(t, m.Retry("prov-1"))

	entries = m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StateConfirmed, entries[0].State)
}

func TestDiscardRemovesFailedEntry(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 1}

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(ch))

	store.setFailing(true)
	require.Error(t, m.Send("prov-1", "hello"))

	m.Discard("prov-1")
	assert.Empty(t, m.Entries())

	// Discard не трогает не-failed записи.
	store.setFailing(false)
	require.NoError(t, m.Send("prov-2", "ok"))
	m.Discard("prov-2")
	assert.Len(t, m.Entries(), 1)
}

func TestRemoteInsertsSortedByTimestamp(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 1}

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(ch))

	base := time.Now()
	m.OnRemoteInsert(Event{Type: EventMessage, Message: &models.Message{
		ID: 10, ClubID: 1, AuthorID: 2, Content: "late", CreatedAt: base.Add(time.Minute),
	}})
	// Событие с более ранним временем приходит вторым.
	m.OnRemoteInsert(Event{Type: EventMessage, Message: &models.Message{
		ID: 11, ClubID: 1, AuthorID: 3, Content: "early", CreatedAt: base,
	}})

	assert.Equal(t, []string{"early", "late"}, contents(m.Entries()))
}

func TestDuplicateServerIDDropped(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 1}
	msg := store.seed(ch, 2, "hello", time.Now())

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(ch))

	// Live-событие, пересекшееся с историей.
	m.OnRemoteInsert(Event{Type: EventMessage, Message: msg})

	assert.Len(t, m.Entries(), 1)
}

func TestChannelSwitchDropsForeignEvents(t *testing.T) {
	store := newFakeStore()
	chA := ChannelID{ClubID: 1}
	groupID := 5
	chB := ChannelID{ClubID: 1, GroupID: &groupID}

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(chA))
	require.NoError(t, m.Open(chB))

	// Событие старого канала после переключения.
	m.OnRemoteInsert(Event{Type: EventMessage, Message: &models.Message{
		ID: 10, ClubID: 1, AuthorID: 2, Content: "general talk", CreatedAt: time.Now(),
	}})

	assert.Empty(t, m.Entries())

	m.OnRemoteInsert(Event{Type: EventMessage, Message: &models.Message{
		ID: 11, ClubID: 1, GroupID: &groupID, AuthorID: 2, Content: "group talk", CreatedAt: time.Now(),
	}})

	require.Len(t, m.Entries(), 1)
	assert.Equal(t, "group talk", m.Entries()[0].Message.Content)
}

func TestLiveEventThroughHubLandsInEntries(t *testing.T) {
	store := newFakeStore()
	hub := NewHub()
	ch := ChannelID{ClubID: 1}

	m := NewChannelManager(context.Background(), store, hub, 7)
	t.Cleanup(m.Close)
	require.NoError(t, m.Open(ch))

	hub.Publish(ch.Room(), Event{Type: EventMessage, Message: &models.Message{
		ID: 10, ClubID: 1, AuthorID: 2, Content: "hello", CreatedAt: time.Now(),
	}})

	require.Eventually(t, func() bool {
		return len(m.Entries()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestProvisionalTimestampMonotonic(t *testing.T) {
	store := newFakeStore()
	ch := ChannelID{ClubID: 1}
	// История с временем из будущего: часы сервера ушли вперед.
	store.seed(ch, 2, "future", time.Now().Add(time.Hour))

	m := newTestManager(t, store, 7)
	require.NoError(t, m.Open(ch))
	require.NoError(t, m.Send("prov-1", "now"))

	// Новая отправка не встает раньше уже показанных сообщений.
	assert.Equal(t, []string{"future", "now"}, contents(m.Entries()))
}

func TestChannelIDRoomAndMatches(t *testing.T) {
	groupID := 3
	general := ChannelID{ClubID: 7}
	group := ChannelID{ClubID: 7, GroupID: &groupID}

	assert.Equal(t, "club:7", general.Room())
	assert.Equal(t, "club:7:group:3", group.Room())

	generalMsg := &models.Message{ClubID: 7}
	groupMsg := &models.Message{ClubID: 7, GroupID: &groupID}

	assert.True(t, general.Matches(generalMsg))
	assert.False(t, general.Matches(groupMsg))
	assert.True(t, group.Matches(groupMsg))
	assert.False(t, group.Matches(generalMsg))
	assert.False(t, group.Matches(&models.Message{ClubID: 8, GroupID: &groupID}))
}
