package models

import "time"

type FolderKind string

const (
	FolderKindFile  FolderKind = "file"
	FolderKindPhoto FolderKind = "photo"
)

type Folder struct {
	ID        int        `json:"id" db:"id"`
	ClubID    int        `json:"club_id" db:"club_id"`
	Name      string     `json:"name" db:"name"`
	Kind      FolderKind `json:"kind" db:"kind"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// ArchiveFile — файл или фотография в архиве клуба. Содержимое лежит в
// объектном хранилище под ключом FileKey (префикс clubs/<id>/...).
type ArchiveFile struct {
	ID         int       `json:"id" db:"id"`
	ClubID     int       `json:"club_id" db:"club_id"`
	FolderID   *int      `json:"folder_id,omitempty" db:"folder_id"`
	UploaderID int       `json:"uploader_id" db:"uploader_id"`
	Title      string    `json:"title" db:"title"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	FileKey string  `json:"-" db:"file_key"`
	FileURL *string `json:"file_url,omitempty" db:"-"`
}
