package models

import "time"

type LedgerEntryType string

const (
	LedgerIncome  LedgerEntryType = "income"
	LedgerExpense LedgerEntryType = "expense"
)

// LedgerEntry — строка кассовой книги клуба. Amount хранится в минимальных
// единицах валюты (центы/воны), без плавающей точки.
type LedgerEntry struct {
	ID         int             `json:"id" db:"id"`
	ClubID     int             `json:"club_id" db:"club_id"`
	RecorderID int             `json:"recorder_id" db:"recorder_id"`
	Type       LedgerEntryType `json:"type" db:"type"`
	Amount     int64           `json:"amount" db:"amount"`
	Note       *string         `json:"note,omitempty" db:"note"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

type LedgerSummary struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Balance int64 `json:"balance"`
}
