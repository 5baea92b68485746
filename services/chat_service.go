package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/moimhub/club-system/chat"
	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
)

// ChatService отвечает за персистентность сообщений и доступ к каналам.
// Реализует chat.Store: ChannelManager ходит сюда за историей и записью.
type ChatService interface {
	chat.Store

	// DeleteMessage: автор или manager клуба.
	DeleteMessage(ctx context.Context, actorID, messageID int) error
}

type chatService struct {
	messageRepo repositories.MessageRepository
	groupRepo   repositories.GroupRepository
	membership  MembershipService
	hub         *chat.Hub
}

func NewChatService(
	messageRepo repositories.MessageRepository,
	groupRepo repositories.GroupRepository,
	membership MembershipService,
	hub *chat.Hub,
) ChatService {
	return &chatService{
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		membership:  membership,
		hub:         hub,
	}
}

// History возвращает всю историю канала по возрастанию created_at.
// Доступ: approved член клуба; для группового канала дополнительно
// членство в группе либо клубный админ.
func (s *chatService) History(ctx context.Context, ch chat.ChannelID, userID int) ([]*models.Message, error) {
	if err := s.requireChannelAccess(ctx, ch, userID); err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListByChannel(ctx, ch.ClubID, ch.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel history: %w", err)
	}
	return messages, nil
}

// Append персистит сообщение и публикует его в комнату канала. Порядок
// важен: сначала запись, потом публикация — подписчики никогда не видят
// сообщение, которого нет в истории.
func (s *chatService) Append(ctx context.Context, ch chat.ChannelID, authorID int, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if err := s.requireChannelAccess(ctx, ch, authorID); err != nil {
		return nil, err
	}

	message := &models.Message{
		ClubID:   ch.ClubID,
		GroupID:  ch.GroupID,
		AuthorID: authorID,
		Content:  content,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		if errors.Is(err, repositories.ErrMessageChannelInvalid) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("%w: failed to store message: %w", ErrStoreUnavailable, err)
	}

	s.hub.Publish(ch.Room(), chat.Event{Type: chat.EventMessage, Message: message})
	return message, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, actorID, messageID int) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to get message %d: %w", messageID, err)
	}

	if message.AuthorID != actorID {
		actor := s.membership.ResolveMembership(ctx, message.ClubID, actorID)
		if actor == nil || actor.Status != models.MembershipStatusApproved || actor.Role != models.RoleManager {
			return ErrPermissionDenied
		}
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

func (s *chatService) requireChannelAccess(ctx context.Context, ch chat.ChannelID, userID int) error {
	actor := s.membership.ResolveMembership(ctx, ch.ClubID, userID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return ErrPermissionDenied
	}
	if ch.GroupID == nil {
		return nil
	}

	group, err := s.groupRepo.GetByID(ctx, *ch.GroupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to get group %d: %w", *ch.GroupID, err)
	}
	if group.ClubID != ch.ClubID {
		return ErrGroupNotFound
	}
	if IsClubAdmin(actor.Role) {
		return nil
	}
	memberships := s.membership.ResolveGroupMemberships(ctx, ch.ClubID, userID)
	for _, gm := range memberships {
		if gm.GroupID == *ch.GroupID {
			return nil
		}
	}
	return ErrPermissionDenied
}
