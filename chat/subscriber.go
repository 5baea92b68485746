package chat

import (
	"time"

	"github.com/moimhub/club-system/models"
)

const (
	resubscribeBaseDelay = 250 * time.Millisecond
	resubscribeMaxDelay  = 8 * time.Second
)

// runFeed качает события подписки в менеджер. Закрытие канала подписки
// без Cancel означает, что хаб выкинул отставшего подписчика: цикл
// переподключается с экспоненциальной задержкой и перечитывает историю,
// потому что в промежутке сообщения были потеряны.
func (m *ChannelManager) runFeed(sub *Subscription, ch ChannelID, epoch int) {
	for {
		for event := range sub.C {
			m.OnRemoteInsert(event)
		}
		if !m.stillCurrent(sub, epoch) {
			return
		}
		next, ok := m.reattach(ch, epoch)
		if !ok {
			return
		}
		sub = next
	}
}

func (m *ChannelManager) stillCurrent(sub *Subscription, epoch int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && m.epoch == epoch && m.sub == sub
}

// reattach — новая подписка плюс refetch истории. Задержка растет с
// каждой подряд идущей неудачей History, сбрасывается при успехе.
func (m *ChannelManager) reattach(ch ChannelID, epoch int) (*Subscription, bool) {
	delay := resubscribeBaseDelay
	for {
		m.mu.Lock()
		if m.closed || m.epoch != epoch {
			m.mu.Unlock()
			return nil, false
		}
		sub := m.feed.Subscribe(ch.Room(), subscriptionBuffer)
		m.sub = sub
		m.mu.Unlock()

		history, err := m.store.History(m.ctx, ch, m.userID)
		if err == nil {
			m.mergeHistory(ch, epoch, history)
			return sub, true
		}

		sub.Cancel()
		select {
		case <-m.ctx.Done():
			return nil, false
		case <-time.After(delay):
		}
		if delay < resubscribeMaxDelay {
			delay *= 2
			if delay > resubscribeMaxDelay {
				delay = resubscribeMaxDelay
			}
		}
	}
}

// mergeHistory вливает перечитанную историю в существующий список:
// известные id пропускаются, pending/failed записи остаются на месте.
func (m *ChannelManager) mergeHistory(ch ChannelID, epoch int, history []*models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.epoch != epoch {
		return
	}
	for _, msg := range history {
		if m.seen[msg.ID] {
			continue
		}
		if msg.AuthorID == m.userID && len(m.pending) > 0 {
			provID := m.pending[0]
			if entry, ok := m.byProv[provID]; ok && entry.State == StatePending {
				m.pending = m.pending[1:]
				m.confirmLocked(entry, msg)
				continue
			}
		}
		m.seen[msg.ID] = true
		m.seq++
		entry := &Entry{State: StateConfirmed, Message: *msg, seq: m.seq}
		m.insertSortedLocked(entry)
		if msg.CreatedAt.After(m.lastTS) {
			m.lastTS = msg.CreatedAt
		}
	}
	m.emitLocked(Frame{Type: FrameHistory, Channel: &ch, Entries: m.snapshotLocked()})
}
