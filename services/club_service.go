package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
	"github.com/moimhub/club-system/storage"
	"golang.org/x/sync/errgroup"
)

type ClubService interface {
	// CreateClub создает клуб и бутстрапит создателя как approved manager
	// в одной транзакции.
	CreateClub(ctx context.Context, creatorID int, input CreateClubInput) (*models.Club, error)
	GetClub(ctx context.Context, clubID int) (*models.Club, error)
	ListClubs(ctx context.Context, officialOnly bool) ([]*models.Club, error)
	UpdateClub(ctx context.Context, actorID, clubID int, input UpdateClubInput) (*models.Club, error)
	DeleteClub(ctx context.Context, actorID, clubID int) error
	UploadCover(ctx context.Context, actorID, clubID int, contentType string, reader io.Reader) (*models.Club, error)
	Overview(ctx context.Context, actorID, clubID int) (*models.ClubOverview, error)
}

type CreateClubInput struct {
	Name  string  `json:"name"`
	Intro *string `json:"intro"`
}

type UpdateClubInput struct {
	Name     *string `json:"name"`
	Intro    *string `json:"intro"`
	Official *bool   `json:"official"`
}

type clubService struct {
	db             *sql.DB
	clubRepo       repositories.ClubRepository
	membershipRepo repositories.MembershipRepository
	groupRepo      repositories.GroupRepository
	postRepo       repositories.PostRepository
	scheduleRepo   repositories.ScheduleRepository
	membership     MembershipService
	uploader       storage.FileUploader
}

func NewClubService(
	db *sql.DB,
	clubRepo repositories.ClubRepository,
	membershipRepo repositories.MembershipRepository,
	groupRepo repositories.GroupRepository,
	postRepo repositories.PostRepository,
	scheduleRepo repositories.ScheduleRepository,
	membership MembershipService,
	uploader storage.FileUploader,
) ClubService {
	return &clubService{
		db:             db,
		clubRepo:       clubRepo,
		membershipRepo: membershipRepo,
		groupRepo:      groupRepo,
		postRepo:       postRepo,
		scheduleRepo:   scheduleRepo,
		membership:     membership,
		uploader:       uploader,
	}
}

func (s *clubService) CreateClub(ctx context.Context, creatorID int, input CreateClubInput) (*models.Club, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrClubNameRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
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

	club := &models.Club{
		Name:  input.Name,
		Intro: input.Intro,
	}
	if txErr = s.clubRepo.Create(ctx, tx, club); txErr != nil {
		if errors.Is(txErr, repositories.ErrClubNameConflict) {
			return nil, ErrClubNameConflict
		}
		return nil, fmt.Errorf("failed to create club: %w", txErr)
	}

	bootstrap := &models.Membership{
		ClubID: club.ID,
		UserID: creatorID,
		Status: models.MembershipStatusApproved,
		Role:   models.RoleManager,
	}
	if txErr = s.membershipRepo.Create(ctx, tx, bootstrap); txErr != nil {
		return nil, fmt.Errorf("failed to bootstrap club manager: %w", txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit club creation: %w", txErr)
	}
	return club, nil
}

func (s *clubService) GetClub(ctx context.Context, clubID int) (*models.Club, error) {
	club, err := s.clubRepo.GetByID(ctx, clubID)
	if err != nil {
		if errors.Is(err, repositories.ErrClubNotFound) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("failed to get club %d: %w", clubID, err)
	}
	s.fillCoverURL(club)
	return club, nil
}

func (s *clubService) ListClubs(ctx context.Context, officialOnly bool) ([]*models.Club, error) {
	clubs, err := s.clubRepo.List(ctx, officialOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	for _, club := range clubs {
		s.fillCoverURL(club)
	}
	return clubs, nil
}

func (s *clubService) UpdateClub(ctx context.Context, actorID, clubID int, input UpdateClubInput) (*models.Club, error) {
	if err := s.requireAdmin(ctx, actorID, clubID); err != nil {
		return nil, err
	}
	club, err := s.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrClubNameRequired
		}
		club.Name = name
	}
	if input.Intro != nil {
		club.Intro = input.Intro
	}
	if input.Official != nil {
		club.Official = *input.Official
	}
	if err := s.clubRepo.Update(ctx, club); err != nil {
		if errors.Is(err, repositories.ErrClubNameConflict) {
			return nil, ErrClubNameConflict
		}
		return nil, fmt.Errorf("failed to update club %d: %w", clubID, err)
	}
	return club, nil
}

// DeleteClub доступен только manager.
func (s *clubService) DeleteClub(ctx context.Context, actorID, clubID int) error {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved || actor.Role != models.RoleManager {
		return ErrManagerOnly
	}
	if err := s.clubRepo.Delete(ctx, clubID); err != nil {
		if errors.Is(err, repositories.ErrClubNotFound) {
			return ErrClubNotFound
		}
		return fmt.Errorf("failed to delete club %d: %w", clubID, err)
	}
	return nil
}

func (s *clubService) UploadCover(ctx context.Context, actorID, clubID int, contentType string, reader io.Reader) (*models.Club, error) {
	if err := s.requireAdmin(ctx, actorID, clubID); err != nil {
		return nil, err
	}
	club, err := s.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("clubs/%d/cover/%s", clubID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload club cover: %w", err)
	}

	oldKey := club.CoverKey
	club.CoverKey = &result.Key
	if err := s.clubRepo.Update(ctx, club); err != nil {
		return nil, fmt.Errorf("failed to store cover key: %w", err)
	}
	if oldKey != nil {
		// Старую обложку чистим best-effort, ошибка не мешает результату.
		_ = s.uploader.Delete(ctx, *oldKey)
	}
	s.fillCoverURL(club)
	return club, nil
}

// Overview собирает счетчики страницы клуба параллельно.
func (s *clubService) Overview(ctx context.Context, actorID, clubID int) (*models.ClubOverview, error) {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return nil, ErrPermissionDenied
	}

	club, err := s.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}

	overview := &models.ClubOverview{Club: club}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		count, err := s.membershipRepo.CountByClub(gCtx, clubID, models.MembershipStatusApproved)
		if err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		overview.MemberCount = count
		return nil
	})
	g.Go(func() error {
		if !IsClubAdmin(actor.Role) {
			return nil
		}
		count, err := s.membershipRepo.CountByClub(gCtx, clubID, models.MembershipStatusPending)
		if err != nil {
			return fmt.Errorf("failed to count pending requests: %w", err)
		}
		overview.PendingCount = count
		return nil
	})
	g.Go(func() error {
		count, err := s.groupRepo.CountByClub(gCtx, clubID)
		if err != nil {
			return fmt.Errorf("failed to count groups: %w", err)
		}
		overview.GroupCount = count
		return nil
	})
	g.Go(func() error {
		count, err := s.postRepo.CountByClub(gCtx, clubID)
		if err != nil {
			return fmt.Errorf("failed to count posts: %w", err)
		}
		overview.PostCount = count
		return nil
	})
	g.Go(func() error {
		count, err := s.scheduleRepo.CountByClub(gCtx, clubID)
		if err != nil {
			return fmt.Errorf("failed to count schedules: %w", err)
		}
		overview.ScheduleCount = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}

func (s *clubService) requireAdmin(ctx context.Context, actorID, clubID int) error {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved || !IsClubAdmin(actor.Role) {
		return ErrClubAdminRequired
	}
	return nil
}

func (s *clubService) fillCoverURL(club *models.Club) {
	if club.CoverKey != nil && s.uploader != nil {
		url := s.uploader.GetPublicURL(*club.CoverKey)
		club.CoverURL = &url
	}
}
