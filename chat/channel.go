package chat

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/moimhub/club-system/models"
)

// ChannelID — идентичность канала: общий канал клуба (GroupID == nil) или
// канал группы.
type ChannelID struct {
	ClubID  int  `json:"club_id"`
	GroupID *int `json:"group_id,omitempty"`
}

// Room возвращает ключ комнаты хаба: "club:7" или "club:7:group:3".
func (c ChannelID) Room() string {
	if c.GroupID == nil {
		return "club:" + strconv.Itoa(c.ClubID)
	}
	return "club:" + strconv.Itoa(c.ClubID) + ":group:" + strconv.Itoa(*c.GroupID)
}

// Matches проверяет принадлежность сообщения каналу: club_id и
// group_id-или-nil должны совпасть.
func (c ChannelID) Matches(m *models.Message) bool {
	if m == nil || m.ClubID != c.ClubID {
		return false
	}
	if c.GroupID == nil {
		return m.GroupID == nil
	}
	return m.GroupID != nil && *m.GroupID == *c.GroupID
}

func (c ChannelID) equal(other ChannelID) bool {
	if c.ClubID != other.ClubID {
		return false
	}
	if c.GroupID == nil || other.GroupID == nil {
		return c.GroupID == other.GroupID
	}
	return *c.GroupID == *other.GroupID
}

// MessageState — состояние доставки записи в списке: оптимистичная запись
// рождается pending, подтверждается серверной строкой или помечается
// failed с возможностью retry/discard.
type MessageState string

const (
	StatePending   MessageState = "pending"
	StateConfirmed MessageState = "confirmed"
	StateFailed    MessageState = "failed"
)

// Entry — одна строка отображаемого списка сообщений.
type Entry struct {
	ProvisionalID string         `json:"provisional_id,omitempty"`
	State         MessageState   `json:"state"`
	Message       models.Message `json:"message"`

	seq int // порядок прихода, вторичный ключ сортировки
}

// Store — персистентность канала. Реализуется сервисным слоем.
type Store interface {
	History(ctx context.Context, ch ChannelID, userID int) ([]*models.Message, error)
	Append(ctx context.Context, ch ChannelID, authorID int, content string) (*models.Message, error)
}

// Frame — исходящее сообщение к UI-поверхности.
type Frame struct {
	Type    string     `json:"type"` // history, append, confirm, failed, error
	Channel *ChannelID `json:"channel,omitempty"`
	Entries []Entry    `json:"entries,omitempty"`
	Entry   *Entry     `json:"entry,omitempty"`
	Error   string     `json:"error,omitempty"`
}

const (
	FrameHistory = "history"
	FrameAppend  = "append"
	FrameConfirm = "confirm"
	FrameFailed  = "failed"
	FrameError   = "error"
)

const subscriptionBuffer = 64

// ChannelManager держит список сообщений ровно одного открытого канала:
// история + live-события без дублей, оптимистичная отправка без ожидания
// серверного эха. Одна поверхность чата — один менеджер.
type ChannelManager struct {
	ctx    context.Context
	store  Store
	feed   Feed
	userID int

	mu       sync.Mutex
	channel  *ChannelID
	sub      *Subscription
	entries  []*Entry
	seen     map[int]bool      // подтвержденные серверные id
	pending  []string          // FIFO provisional id незакрытых отправок
	byProv   map[string]*Entry // provisional id -> запись
	seq      int
	lastTS   time.Time
	epoch    int // растет при каждом Open/Close: старые feed-циклы умирают
	closed   bool
	out      chan Frame
}

func NewChannelManager(ctx context.Context, store Store, feed Feed, userID int) *ChannelManager {
	return &ChannelManager{
		ctx:    ctx,
		store:  store,
		feed:   feed,
		userID: userID,
		seen:   make(map[int]bool),
		byProv: make(map[string]*Entry),
		out:    make(chan Frame, 256),
	}
}

// Out — канал исходящих фреймов для write pump.
func (m *ChannelManager) Out() <-chan Frame { return m.out }

// Open переключает менеджер на канал ch: прежняя подписка снимается до
// установки новой (события закрытого канала не должны попасть в новый
// список), затем подписка, затем история. Подписка раньше истории — чтобы
// не потерять вставки в зазоре; пересечение гасится по серверным id.
func (m *ChannelManager) Open(ch ChannelID) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("channel manager is closed")
	}
	m.teardownLocked()
	m.epoch++
	epoch := m.epoch
	m.channel = &ch
	sub := m.feed.Subscribe(ch.Room(), subscriptionBuffer)
	m.sub = sub
	m.mu.Unlock()

	history, err := m.store.History(m.ctx, ch, m.userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.closed {
		// Канал успели переключить, пока грузилась история.
		sub.Cancel()
		return nil
	}
	if err != nil {
		// Пустой канал с ошибкой, подписка остается живой.
		m.entries = nil
		m.emitLocked(Frame{Type: FrameError, Channel: &ch, Error: err.Error()})
		go m.runFeed(sub, ch, epoch)
		return err
	}

	m.entries = make([]*Entry, 0, len(history))
	for _, msg := range history {
		if m.seen[msg.ID] {
			continue
		}
		m.seen[msg.ID] = true
		m.seq++
		m.entries = append(m.entries, &Entry{
			State:   StateConfirmed,
			Message: *msg,
			seq:     m.seq,
		})
		if msg.CreatedAt.After(m.lastTS) {
			m.lastTS = msg.CreatedAt
		}
	}
	m.emitLocked(Frame{Type: FrameHistory, Channel: &ch, Entries: m.snapshotLocked()})
	go m.runFeed(sub, ch, epoch)
	return nil
}

// OnRemoteInsert принимает событие live-ленты. Фильтрует чужие каналы и
// уже известные серверные id; собственное эхо подтверждает оптимистичную
// запись вместо дублирования.
func (m *ChannelManager) OnRemoteInsert(event Event) {
	if event.Type != EventMessage || event.Message == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.channel == nil || !m.channel.Matches(event.Message) {
		return
	}
	if m.seen[event.Message.ID] {
		return
	}

	if event.Message.AuthorID == m.userID && len(m.pending) > 0 {
		// Эхо собственной отправки: события хаба приходят в порядке
		// записи, а отправки менеджера последовательны, поэтому эхо
		// соответствует самой старой незакрытой записи.
		provID := m.pending[0]
		m.pending = m.pending[1:]
		if entry, ok := m.byProv[provID]; ok && entry.State == StatePending {
			m.confirmLocked(entry, event.Message)
			return
		}
	}

	m.seen[event.Message.ID] = true
	m.seq++
	entry := &Entry{State: StateConfirmed, Message: *event.Message, seq: m.seq}
	m.insertSortedLocked(entry)
	if event.Message.CreatedAt.After(m.lastTS) {
		m.lastTS = event.Message.CreatedAt
	}
	m.emitLocked(Frame{Type: FrameAppend, Channel: m.channel, Entry: cloneEntry(entry)})
}

// Send — оптимистичная отправка: запись появляется в списке сразу со
// статусом pending, затем персистится. Неудача помечает запись failed и
// оставляет ее для retry/discard; молча запись не исчезает никогда.
func (m *ChannelManager) Send(provisionalID, content string) error {
	m.mu.Lock()
	if m.closed || m.channel == nil {
		m.mu.Unlock()
		return fmt.Errorf("no open channel")
	}
	ch := *m.channel
	if _, exists := m.byProv[provisionalID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("duplicate provisional id %q", provisionalID)
	}

	m.seq++
	entry := &Entry{
		ProvisionalID: provisionalID,
		State:         StatePending,
		Message: models.Message{
			ClubID:    ch.ClubID,
			GroupID:   ch.GroupID,
			AuthorID:  m.userID,
			Content:   content,
			CreatedAt: m.nextProvisionalTS(),
		},
		seq: m.seq,
	}
	m.byProv[provisionalID] = entry
	m.pending = append(m.pending, provisionalID)
	m.entries = append(m.entries, entry) // монотонный timestamp: место в хвосте
	m.emitLocked(Frame{Type: FrameAppend, Channel: &ch, Entry: cloneEntry(entry)})
	m.mu.Unlock()

	message, err := m.store.Append(m.ctx, ch, m.userID, content)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if entry.State == StatePending {
			entry.State = StateFailed
			m.dropPendingLocked(provisionalID)
			m.emitLocked(Frame{Type: FrameFailed, Channel: &ch, Entry: cloneEntry(entry)})
		}
		return err
	}
	// Эхо хаба могло подтвердить запись раньше, чем вернулся Append.
	if entry.State == StatePending {
		m.dropPendingLocked(provisionalID)
		m.confirmLocked(entry, message)
	}
	return nil
}

// Retry повторяет неудачную отправку под тем же provisional id.
func (m *ChannelManager) Retry(provisionalID string) error {
	m.mu.Lock()
	entry, ok := m.byProv[provisionalID]
	if !ok || entry.State != StateFailed || m.channel == nil {
		m.mu.Unlock()
		return fmt.Errorf("no failed entry for provisional id %q", provisionalID)
	}
	ch := *m.channel
	entry.State = StatePending
	entry.Message.CreatedAt = m.nextProvisionalTS()
	m.pending = append(m.pending, provisionalID)
	m.resortLocked(entry)
	m.emitLocked(Frame{Type: FrameAppend, Channel: &ch, Entry: cloneEntry(entry)})
	content := entry.Message.Content
	m.mu.Unlock()

	message, err := m.store.Append(m.ctx, ch, m.userID, content)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if entry.State == StatePending {
			entry.State = StateFailed
			m.dropPendingLocked(provisionalID)
			m.emitLocked(Frame{Type: FrameFailed, Channel: &ch, Entry: cloneEntry(entry)})
		}
		return err
	}
	if entry.State == StatePending {
		m.dropPendingLocked(provisionalID)
		m.confirmLocked(entry, message)
	}
	return nil
}

// Discard убирает failed-запись из списка.
func (m *ChannelManager) Discard(provisionalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.byProv[provisionalID]
	if !ok || entry.State != StateFailed {
		return
	}
	delete(m.byProv, provisionalID)
	for i, e := range m.entries {
		if e == entry {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
}

// CloseChannel снимает подписку; безопасен без открытого канала.
func (m *ChannelManager) CloseChannel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	m.epoch++
}

// Close останавливает менеджер целиком (уход с поверхности чата).
func (m *ChannelManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.teardownLocked()
	m.epoch++
	m.closed = true
	close(m.out)
}

// Entries — снимок текущего списка в отображаемом порядке.
func (m *ChannelManager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *ChannelManager) teardownLocked() {
	if m.sub != nil {
		m.sub.Cancel()
		m.sub = nil
	}
	m.channel = nil
	m.entries = nil
	m.seen = make(map[int]bool)
	m.pending = nil
	m.byProv = make(map[string]*Entry)
}

// confirmLocked заменяет оптимистичную запись серверной строкой. Время
// сервера может отличаться от провизорного — запись пересортировывается.
func (m *ChannelManager) confirmLocked(entry *Entry, message *models.Message) {
	entry.State = StateConfirmed
	entry.Message = *message
	m.seen[message.ID] = true
	if message.CreatedAt.After(m.lastTS) {
		m.lastTS = message.CreatedAt
	}
	m.resortLocked(entry)
	m.emitLocked(Frame{Type: FrameConfirm, Channel: m.channel, Entry: cloneEntry(entry)})
}

func (m *ChannelManager) dropPendingLocked(provisionalID string) {
	for i, id := range m.pending {
		if id == provisionalID {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// insertSortedLocked вставляет по (created_at, seq): порядку доставки
// live-ленты доверять нельзя, сортирует менеджер.
func (m *ChannelManager) insertSortedLocked(entry *Entry) {
	i := sort.Search(len(m.entries), func(i int) bool {
		return entryAfter(m.entries[i], entry)
	})
	m.entries = append(m.entries, nil)
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = entry
}

func (m *ChannelManager) resortLocked(entry *Entry) {
	for i, e := range m.entries {
		if e == entry {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	m.insertSortedLocked(entry)
}

func (m *ChannelManager) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	return out
}

func (m *ChannelManager) emitLocked(frame Frame) {
	select {
	case m.out <- frame:
	default:
		// Переполненный исходящий буфер — write pump мертв или
		// безнадежно отстал; фрейм теряется, соединение все равно
		// обречено на закрытие по ping timeout.
	}
}

// nextProvisionalTS выдает монотонно растущее провизорное время: новая
// оптимистичная запись никогда не встает раньше уже показанных сообщений,
// даже при перекошенных часах.
func (m *ChannelManager) nextProvisionalTS() time.Time {
	ts := time.Now()
	if !ts.After(m.lastTS) {
		ts = m.lastTS.Add(time.Millisecond)
	}
	m.lastTS = ts
	return ts
}

func entryAfter(a, b *Entry) bool {
	if a.Message.CreatedAt.Equal(b.Message.CreatedAt) {
		return a.seq > b.seq
	}
	return a.Message.CreatedAt.After(b.Message.CreatedAt)
}

func cloneEntry(entry *Entry) *Entry {
	c := *entry
	return &c
}
