package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
)

// MembershipService — membership- и authorization-движок. Все мутации
// статусов и ролей клуба проходят здесь; предикаты доступа живут в authz.go
// и используются остальными сервисами через Resolve*.
type MembershipService interface {
	// ResolveMembership возвращает nil при отсутствии строки. Ошибки
	// чтения деградируют до nil (нет доступа), наружу не выходят:
	// вызывающие обязаны трактовать "absent или pending" как отсутствие
	// member-прав.
	ResolveMembership(ctx context.Context, clubID, userID int) *models.Membership

	// ResolveGroupMemberships возвращает все group-строки пользователя в
	// клубе; при ошибке чтения — пустой срез.
	ResolveGroupMemberships(ctx context.Context, clubID, userID int) []*models.GroupMembership

	RequestJoin(ctx context.Context, clubID, userID int) (*models.Membership, error)
	Approve(ctx context.Context, actorID, membershipID int) error
	Reject(ctx context.Context, actorID, membershipID int) error
	Kick(ctx context.Context, actorID, membershipID int) error
	ChangeRole(ctx context.Context, actorID, membershipID int, role models.ClubRole) error
	TransferManager(ctx context.Context, clubID, fromUserID, toUserID int) error
	ListMembers(ctx context.Context, actorID, clubID int, status *models.MembershipStatus) ([]*models.Membership, error)
}

type membershipService struct {
	db              *sql.DB
	membershipRepo  repositories.MembershipRepository
	groupMemberRepo repositories.GroupMembershipRepository
	clubRepo        repositories.ClubRepository
	logger          *slog.Logger
}

func NewMembershipService(
	db *sql.DB,
	membershipRepo repositories.MembershipRepository,
	groupMemberRepo repositories.GroupMembershipRepository,
	clubRepo repositories.ClubRepository,
	logger *slog.Logger,
) MembershipService {
	return &membershipService{
		db:              db,
		membershipRepo:  membershipRepo,
		groupMemberRepo: groupMemberRepo,
		clubRepo:        clubRepo,
		logger:          logger,
	}
}

func (s *membershipService) ResolveMembership(ctx context.Context, clubID, userID int) *models.Membership {
	membership, err := s.membershipRepo.GetByClubAndUser(ctx, clubID, userID)
	if err != nil {
		if !errors.Is(err, repositories.ErrMembershipNotFound) {
			s.logger.Warn("membership lookup failed, treating as absent",
				slog.Int("club_id", clubID),
				slog.Int("user_id", userID),
				slog.Any("error", err))
		}
		return nil
	}
	return membership
}

func (s *membershipService) ResolveGroupMemberships(ctx context.Context, clubID, userID int) []*models.GroupMembership {
	memberships, err := s.groupMemberRepo.ListByClubAndUser(ctx, clubID, userID)
	if err != nil {
		s.logger.Warn("group membership lookup failed, treating as none",
			slog.Int("club_id", clubID),
			slog.Int("user_id", userID),
			slog.Any("error", err))
		return nil
	}
	return memberships
}

// RequestJoin создает строку pending/member. Повторная заявка упирается в
// unique constraint (club_id, user_id), а не в read-then-write проверку.
func (s *membershipService) RequestJoin(ctx context.Context, clubID, userID int) (*models.Membership, error) {
	if _, err := s.clubRepo.GetByID(ctx, clubID); err != nil {
		if errors.Is(err, repositories.ErrClubNotFound) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("failed to get club %d: %w", clubID, err)
	}

	membership := &models.Membership{
		ClubID: clubID,
		UserID: userID,
		Status: models.MembershipStatusPending,
		Role:   models.RoleMember,
	}
	if err := s.membershipRepo.Create(ctx, nil, membership); err != nil {
		if errors.Is(err, repositories.ErrMembershipConflict) {
			return nil, ErrDuplicateJoinRequest
		}
		if errors.Is(err, repositories.ErrMembershipClubInvalid) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("failed to create join request: %w", err)
	}
	return membership, nil
}

func (s *membershipService) Approve(ctx context.Context, actorID, membershipID int) error {
	target, err := s.requireAdminOver(ctx, actorID, membershipID)
	if err != nil {
		return err
	}
	if target.Status != models.MembershipStatusPending {
		return ErrMembershipNotPending
	}
	if err := s.membershipRepo.UpdateStatus(ctx, target.ID, models.MembershipStatusApproved); err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("failed to approve membership %d: %w", target.ID, err)
	}
	return nil
}

func (s *membershipService) Reject(ctx context.Context, actorID, membershipID int) error {
	target, err := s.requireAdminOver(ctx, actorID, membershipID)
	if err != nil {
		return err
	}
	if target.Status != models.MembershipStatusPending {
		return ErrMembershipNotPending
	}
	if err := s.membershipRepo.Delete(ctx, nil, target.ID); err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("failed to reject membership %d: %w", target.ID, err)
	}
	return nil
}

// Kick удаляет approved-участника. Его group-строки в этом клубе удаляются
// в той же транзакции: оставшиеся leader-строки позволили бы вернувшемуся
// пользователю восстановить лидерство без повторного назначения.
func (s *membershipService) Kick(ctx context.Context, actorID, membershipID int) error {
	target, err := s.requireAdminOver(ctx, actorID, membershipID)
	if err != nil {
		return err
	}
	if target.Role == models.RoleManager {
		return ErrCannotKickManager
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, txErr = s.groupMemberRepo.DeleteByClubAndUser(ctx, tx, target.ClubID, target.UserID); txErr != nil {
		return fmt.Errorf("failed to remove group memberships for user %d: %w", target.UserID, txErr)
	}
	if txErr = s.membershipRepo.Delete(ctx, tx, target.ID); txErr != nil {
		if errors.Is(txErr, repositories.ErrMembershipNotFound) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("failed to delete membership %d: %w", target.ID, txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit kick transaction: %w", txErr)
	}
	return nil
}

// ChangeRole переключает staff/member. Роль manager назначается только
// через TransferManager.
func (s *membershipService) ChangeRole(ctx context.Context, actorID, membershipID int, role models.ClubRole) error {
	if role != models.RoleStaff && role != models.RoleMember {
		return ErrValidationFailed
	}
	target, err := s.getMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	actor := s.ResolveMembership(ctx, target.ClubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved || actor.Role != models.RoleManager {
		return ErrManagerOnly
	}
	if target.Role == models.RoleManager {
		return ErrManagerOnly
	}
	if target.Status != models.MembershipStatusApproved {
		return ErrMemberNotApproved
	}
	if err := s.membershipRepo.UpdateRole(ctx, nil, target.ID, role); err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("failed to change role for membership %d: %w", target.ID, err)
	}
	return nil
}

// TransferManager атомарно передает manager-роль: понижение текущего
// manager до staff и повышение цели выполняются в одной транзакции. При
// недоступности транзакции операция падает целиком — частичное выполнение
// нарушило бы инвариант "ровно один manager на клуб".
func (s *membershipService) TransferManager(ctx context.Context, clubID, fromUserID, toUserID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transfer transaction: %w", ErrStoreUnavailable, err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			s.logger.Warn("rolling back manager transfer", slog.Int("club_id", clubID), slog.Any("error", txErr))
			_ = tx.Rollback()
		}
	}()

	// Строка manager читается с блокировкой: два конкурентных transfer
	// сериализуются, второй увидит уже смененного manager и упадет.
	manager, err := s.membershipRepo.GetManager(ctx, tx, clubID)
	if err != nil {
		txErr = err
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrClubNotFound
		}
		return fmt.Errorf("failed to load club manager: %w", err)
	}
	if manager.UserID != fromUserID {
		txErr = ErrPermissionDenied
		return ErrPermissionDenied
	}

	target, err := s.membershipRepo.GetByClubAndUser(ctx, clubID, toUserID)
	if err != nil {
		txErr = err
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("failed to load target membership: %w", err)
	}
	if target.Status != models.MembershipStatusApproved {
		txErr = ErrMemberNotApproved
		return ErrMemberNotApproved
	}
	if target.UserID == manager.UserID {
		txErr = ErrValidationFailed
		return ErrValidationFailed
	}

	if txErr = s.membershipRepo.UpdateRole(ctx, tx, manager.ID, models.RoleStaff); txErr != nil {
		return fmt.Errorf("failed to demote manager: %w", txErr)
	}
	if txErr = s.membershipRepo.UpdateRole(ctx, tx, target.ID, models.RoleManager); txErr != nil {
		return fmt.Errorf("failed to promote new manager: %w", txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("%w: failed to commit manager transfer: %w", ErrStoreUnavailable, txErr)
	}
	return nil
}

func (s *membershipService) ListMembers(ctx context.Context, actorID, clubID int, status *models.MembershipStatus) ([]*models.Membership, error) {
	actor := s.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return nil, ErrPermissionDenied
	}
	// Pending-заявки видят только админы.
	if status != nil && *status == models.MembershipStatusPending && !IsClubAdmin(actor.Role) {
		return nil, ErrClubAdminRequired
	}
	members, err := s.membershipRepo.ListByClub(ctx, clubID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of club %d: %w", clubID, err)
	}
	return members, nil
}

func (s *membershipService) getMembership(ctx context.Context, membershipID int) (*models.Membership, error) {
	target, err := s.membershipRepo.GetByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership %d: %w", membershipID, err)
	}
	return target, nil
}

// requireAdminOver загружает целевую строку и проверяет, что actor —
// approved admin того же клуба.
func (s *membershipService) requireAdminOver(ctx context.Context, actorID, membershipID int) (*models.Membership, error) {
	target, err := s.getMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	actor := s.ResolveMembership(ctx, target.ClubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved || !IsClubAdmin(actor.Role) {
		return nil, ErrClubAdminRequired
	}
	return target, nil
}
