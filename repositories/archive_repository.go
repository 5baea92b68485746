package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/moimhub/club-system/models"
)

var (
	ErrFolderNotFound       = errors.New("folder not found")
	ErrFolderNameConflict   = errors.New("folder name conflict within club")
	ErrArchiveFileNotFound  = errors.New("archive file not found")
	ErrArchiveFolderInvalid = errors.New("archive folder invalid")
)

type ArchiveRepository interface {
	CreateFolder(ctx context.Context, folder *models.Folder) error
	ListFolders(ctx context.Context, clubID int, kind models.FolderKind) ([]*models.Folder, error)
	DeleteFolder(ctx context.Context, id int) error

	CreateFile(ctx context.Context, file *models.ArchiveFile) error
	GetFileByID(ctx context.Context, id int) (*models.ArchiveFile, error)
	ListFiles(ctx context.Context, clubID int, folderID *int) ([]*models.ArchiveFile, error)
	DeleteFile(ctx context.Context, id int) error
}

type postgresArchiveRepository struct {
	db *sql.DB
}

func NewPostgresArchiveRepository(db *sql.DB) ArchiveRepository {
	return &postgresArchiveRepository{db: db}
}

func (r *postgresArchiveRepository) CreateFolder(ctx context.Context, folder *models.Folder) error {
	query := `
		INSERT INTO folders (club_id, name, kind)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		folder.ClubID,
		folder.Name,
		folder.Kind,
	).Scan(&folder.ID, &folder.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "folders_club_id_name_kind_key" {
				return ErrFolderNameConflict
			}
		}
		return err
	}
	return nil
}

func (r *postgresArchiveRepository) ListFolders(ctx context.Context, clubID int, kind models.FolderKind) ([]*models.Folder, error) {
	query := `
		SELECT id, club_id, name, kind, created_at
		FROM folders
		WHERE club_id = $1 AND kind = $2
		ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, clubID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders := make([]*models.Folder, 0)
	for rows.Next() {
		var f models.Folder
		if scanErr := rows.Scan(&f.ID, &f.ClubID, &f.Name, &f.Kind, &f.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		folders = append(folders, &f)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *postgresArchiveRepository) DeleteFolder(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrFolderNotFound)
}

func (r *postgresArchiveRepository) CreateFile(ctx context.Context, file *models.ArchiveFile) error {
	query := `
		INSERT INTO archives (club_id, folder_id, uploader_id, title, file_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		file.ClubID,
		file.FolderID,
		file.UploaderID,
		file.Title,
		file.FileKey,
	).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			if pqErr.Constraint == "archives_folder_id_fkey" {
				return ErrArchiveFolderInvalid
			}
		}
		return err
	}
	return nil
}

func (r *postgresArchiveRepository) GetFileByID(ctx context.Context, id int) (*models.ArchiveFile, error) {
	query := `
		SELECT id, club_id, folder_id, uploader_id, title, file_key, created_at
		FROM archives
		WHERE id = $1`

	f := &models.ArchiveFile{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.ClubID, &f.FolderID, &f.UploaderID, &f.Title, &f.FileKey, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArchiveFileNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *postgresArchiveRepository) ListFiles(ctx context.Context, clubID int, folderID *int) ([]*models.ArchiveFile, error) {
	query := `
		SELECT id, club_id, folder_id, uploader_id, title, file_key, created_at
		FROM archives
		WHERE club_id = $1`
	args := []interface{}{clubID}
	if folderID != nil {
		query += ` AND folder_id = $2`
		args = append(args, *folderID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]*models.ArchiveFile, 0)
	for rows.Next() {
		var f models.ArchiveFile
		if scanErr := rows.Scan(
			&f.ID, &f.ClubID, &f.FolderID, &f.UploaderID, &f.Title, &f.FileKey, &f.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		files = append(files, &f)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func (r *postgresArchiveRepository) DeleteFile(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM archives WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrArchiveFileNotFound)
}
