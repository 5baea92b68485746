package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
)

type LedgerService interface {
	AddEntry(ctx context.Context, actorID int, input LedgerEntryInput) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, actorID, clubID int) ([]*models.LedgerEntry, error)
	Summary(ctx context.Context, actorID, clubID int) (*models.LedgerSummary, error)
	DeleteEntry(ctx context.Context, actorID, entryID int) error
}

type LedgerEntryInput struct {
	ClubID     int       `json:"club_id"`
	Type       string    `json:"type"`
	Amount     int64     `json:"amount"`
	Note       *string   `json:"note"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ledgerService struct {
	ledgerRepo repositories.LedgerRepository
	membership MembershipService
}

func NewLedgerService(ledgerRepo repositories.LedgerRepository, membership MembershipService) LedgerService {
	return &ledgerService{ledgerRepo: ledgerRepo, membership: membership}
}

// AddEntry: запись в кассу — только админы клуба.
func (s *ledgerService) AddEntry(ctx context.Context, actorID int, input LedgerEntryInput) (*models.LedgerEntry, error) {
	if err := s.requireAdmin(ctx, actorID, input.ClubID); err != nil {
		return nil, err
	}
	entryType := models.LedgerEntryType(input.Type)
	if entryType != models.LedgerIncome && entryType != models.LedgerExpense {
		return nil, ErrValidationFailed
	}
	if input.Amount <= 0 {
		return nil, ErrAmountInvalid
	}
	if input.OccurredAt.IsZero() {
		input.OccurredAt = time.Now()
	}

	entry := &models.LedgerEntry{
		ClubID:     input.ClubID,
		RecorderID: actorID,
		Type:       entryType,
		Amount:     input.Amount,
		Note:       input.Note,
		OccurredAt: input.OccurredAt,
	}
	if err := s.ledgerRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, repositories.ErrLedgerClubInvalid) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return entry, nil
}

// ListEntries доступен любому approved-участнику: касса клуба прозрачна.
func (s *ledgerService) ListEntries(ctx context.Context, actorID, clubID int) ([]*models.LedgerEntry, error) {
	if err := s.requireMember(ctx, actorID, clubID); err != nil {
		return nil, err
	}
	entries, err := s.ledgerRepo.ListByClub(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (s *ledgerService) Summary(ctx context.Context, actorID, clubID int) (*models.LedgerSummary, error) {
	if err := s.requireMember(ctx, actorID, clubID); err != nil {
		return nil, err
	}
	summary, err := s.ledgerRepo.Summary(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize ledger: %w", err)
	}
	return summary, nil
}

func (s *ledgerService) DeleteEntry(ctx context.Context, actorID, entryID int) error {
	entry, err := s.ledgerRepo.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, repositories.ErrLedgerEntryNotFound) {
			return ErrLedgerEntryNotFound
		}
		return fmt.Errorf("failed to get ledger entry %d: %w", entryID, err)
	}
	if err := s.requireAdmin(ctx, actorID, entry.ClubID); err != nil {
		return err
	}
	if err := s.ledgerRepo.Delete(ctx, entryID); err != nil {
		if errors.Is(err, repositories.ErrLedgerEntryNotFound) {
			return ErrLedgerEntryNotFound
		}
		return fmt.Errorf("failed to delete ledger entry %d: %w", entryID, err)
	}
	return nil
}

func (s *ledgerService) requireAdmin(ctx context.Context, actorID, clubID int) error {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved || !IsClubAdmin(actor.Role) {
		return ErrClubAdminRequired
	}
	return nil
}

func (s *ledgerService) requireMember(ctx context.Context, actorID, clubID int) error {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return ErrPermissionDenied
	}
	return nil
}
