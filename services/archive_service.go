package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/moimhub/club-system/models"
	"github.com/moimhub/club-system/repositories"
	"github.com/moimhub/club-system/storage"
)

type ArchiveService interface {
	CreateFolder(ctx context.Context, actorID, clubID int, name string, kind models.FolderKind) (*models.Folder, error)
	ListFolders(ctx context.Context, actorID, clubID int, kind models.FolderKind) ([]*models.Folder, error)
	DeleteFolder(ctx context.Context, actorID, clubID, folderID int) error

	UploadFile(ctx context.Context, actorID int, input UploadFileInput) (*models.ArchiveFile, error)
	ListFiles(ctx context.Context, actorID, clubID int, folderID *int) ([]*models.ArchiveFile, error)
	DeleteFile(ctx context.Context, actorID, fileID int) error
}

type UploadFileInput struct {
	ClubID      int
	FolderID    *int
	Title       string
	ContentType string
	Reader      io.Reader
}

type archiveService struct {
	archiveRepo repositories.ArchiveRepository
	membership  MembershipService
	uploader    storage.FileUploader
	logger      *slog.Logger
}

func NewArchiveService(
	archiveRepo repositories.ArchiveRepository,
	membership MembershipService,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ArchiveService {
	return &archiveService{
		archiveRepo: archiveRepo,
		membership:  membership,
		uploader:    uploader,
		logger:      logger,
	}
}

func (s *archiveService) CreateFolder(ctx context.Context, actorID, clubID int, name string, kind models.FolderKind) (*models.Folder, error) {
	if err := s.requireAdmin(ctx, actorID, clubID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrValidationFailed
	}
	if kind != models.FolderKindFile && kind != models.FolderKindPhoto {
		return nil, ErrValidationFailed
	}

	folder := &models.Folder{ClubID: clubID, Name: name, Kind: kind}
	if err := s.archiveRepo.CreateFolder(ctx, folder); err != nil {
		if errors.Is(err, repositories.ErrFolderNameConflict) {
			return nil, ErrValidationFailed
		}
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return folder, nil
}

func (s *archiveService) ListFolders(ctx context.Context, actorID, clubID int, kind models.FolderKind) ([]*models.Folder, error) {
	if err := s.requireMember(ctx, actorID, clubID); err != nil {
		return nil, err
	}
	folders, err := s.archiveRepo.ListFolders(ctx, clubID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

func (s *archiveService) DeleteFolder(ctx context.Context, actorID, clubID, folderID int) error {
	if err := s.requireAdmin(ctx, actorID, clubID); err != nil {
		return err
	}
	if err := s.archiveRepo.DeleteFolder(ctx, folderID); err != nil {
		if errors.Is(err, repositories.ErrFolderNotFound) {
			return ErrFolderNotFound
		}
		return fmt.Errorf("failed to delete folder %d: %w", folderID, err)
	}
	return nil
}

// UploadFile кладет содержимое в объектное хранилище под префиксом
// clubs/<id>/archive/ и записывает метаданные. Загружать могут все
// approved-участники.
func (s *archiveService) UploadFile(ctx context.Context, actorID int, input UploadFileInput) (*models.ArchiveFile, error) {
	if err := s.requireMember(ctx, actorID, input.ClubID); err != nil {
		return nil, err
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrValidationFailed
	}

	key := fmt.Sprintf("clubs/%d/archive/%s", input.ClubID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, input.ContentType, input.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to upload file: %w", ErrStoreUnavailable, err)
	}

	file := &models.ArchiveFile{
		ClubID:     input.ClubID,
		FolderID:   input.FolderID,
		UploaderID: actorID,
		Title:      input.Title,
		FileKey:    result.Key,
	}
	if err := s.archiveRepo.CreateFile(ctx, file); err != nil {
		// Метаданные не записались — объект в хранилище осиротел, чистим.
		if delErr := s.uploader.Delete(ctx, result.Key); delErr != nil {
			s.logger.Warn("failed to clean up orphaned object",
				slog.String("key", result.Key), slog.Any("error", delErr))
		}
		if errors.Is(err, repositories.ErrArchiveFolderInvalid) {
			return nil, ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to store file metadata: %w", err)
	}

	s.fillFileURL(file)
	return file, nil
}

func (s *archiveService) ListFiles(ctx context.Context, actorID, clubID int, folderID *int) ([]*models.ArchiveFile, error) {
	if err := s.requireMember(ctx, actorID, clubID); err != nil {
		return nil, err
	}
	files, err := s.archiveRepo.ListFiles(ctx, clubID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive files: %w", err)
	}
	for _, f := range files {
		s.fillFileURL(f)
	}
	return files, nil
}

func (s *archiveService) DeleteFile(ctx context.Context, actorID, fileID int) error {
	file, err := s.archiveRepo.GetFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repositories.ErrArchiveFileNotFound) {
			return ErrArchiveFileNotFound
		}
		return fmt.Errorf("failed to get archive file %d: %w", fileID, err)
	}
	if file.UploaderID != actorID {
		if err := s.requireAdmin(ctx, actorID, file.ClubID); err != nil {
			return err
		}
	}
	if err := s.archiveRepo.DeleteFile(ctx, fileID); err != nil {
		if errors.Is(err, repositories.ErrArchiveFileNotFound) {
			return ErrArchiveFileNotFound
		}
		return fmt.Errorf("failed to delete archive file %d: %w", fileID, err)
	}
	if err := s.uploader.Delete(ctx, file.FileKey); err != nil {
		s.logger.Warn("failed to delete object for removed file",
			slog.String("key", file.FileKey), slog.Any("error", err))
	}
	return nil
}

func (s *archiveService) fillFileURL(file *models.ArchiveFile) {
	if s.uploader != nil {
		url := s.uploader.GetPublicURL(file.FileKey)
		file.FileURL = &url
	}
}

func (s *archiveService) requireAdmin(ctx context.Context, actorID, clubID int) error {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved || !IsClubAdmin(actor.Role) {
		return ErrClubAdminRequired
	}
	return nil
}

func (s *archiveService) requireMember(ctx context.Context, actorID, clubID int) error {
	actor := s.membership.ResolveMembership(ctx, clubID, actorID)
	if actor == nil || actor.Status != models.MembershipStatusApproved {
		return ErrPermissionDenied
	}
	return nil
}
