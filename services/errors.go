package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed     = errors.New("validation failed")
	ErrPasswordTooShort     = errors.New("password is too short")
	ErrClubNameRequired     = errors.New("club name is required")
	ErrGroupNameRequired    = errors.New("group name is required")
	ErrPostTitleRequired    = errors.New("post title is required")
	ErrVoteOptionsRequired  = errors.New("activity post requires at least two vote options")
	ErrMessageEmpty         = errors.New("message content is empty")
	ErrAmountInvalid        = errors.New("ledger amount must be positive")
	ErrScheduleInvalidRange = errors.New("schedule end must be after start")
	ErrMemberNotApproved    = errors.New("user is not an approved member of the club")
	ErrMembershipNotPending = errors.New("membership is not pending")
	ErrCannotKickManager    = errors.New("the club manager cannot be kicked")
	ErrCannotLeaveAsManager = errors.New("transfer the manager role before leaving the club")

	// Ошибки конфликтов
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrUserNicknameConflict = errors.New("nickname is already in use")
	ErrClubNameConflict     = errors.New("club name is already in use")
	ErrGroupNameConflict    = errors.New("group name is already in use within this club")
	ErrDuplicateJoinRequest = errors.New("join request already exists for this club")
	ErrAlreadyInGroup       = errors.New("user is already a member of this group")
	ErrAlreadyVoted         = errors.New("user has already voted on this post")

	// Ошибки аутентификации и авторизации
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrPermissionDenied       = errors.New("operation not allowed for the current user")
	ErrClubAdminRequired      = errors.New("only the club manager or staff can perform this action")
	ErrManagerOnly            = errors.New("only the club manager can perform this action")
	ErrGroupLeaderRequired    = errors.New("only a leader of this group can perform this action")

	// Ошибки, специфичные для сущностей (дублируют ErrNotFound, но дают контекст)
	ErrUserNotFound        = errors.New("user not found")
	ErrClubNotFound        = errors.New("club not found")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrPostNotFound        = errors.New("post not found")
	ErrScheduleNotFound    = errors.New("schedule not found")
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
	ErrFolderNotFound      = errors.New("folder not found")
	ErrArchiveFileNotFound = errors.New("archive file not found")

	// Хранилище недоступно / сетевые сбои
	ErrStoreUnavailable = errors.New("backing store temporarily unavailable")
)
