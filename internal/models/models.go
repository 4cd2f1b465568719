package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin     UserRole = "ADMIN"
	UserRoleLibrarian UserRole = "LIBRARIAN"
	UserRoleStudent   UserRole = "STUDENT"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleLibrarian, UserRoleStudent:
		return true
	}
	return false
}

type BookCopyStatus string

const (
	BookCopyStatusAvailable BookCopyStatus = "AVAILABLE"
	BookCopyStatusIssued    BookCopyStatus = "ISSUED"
	BookCopyStatusLost      BookCopyStatus = "LOST"
)

// Valid reports whether s is one of the known copy statuses.
func (s BookCopyStatus) Valid() bool {
	switch s {
	case BookCopyStatusAvailable, BookCopyStatusIssued, BookCopyStatusLost:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusIssued   TransactionStatus = "ISSUED"
	TransactionStatusReturned TransactionStatus = "RETURNED"
	TransactionStatusOverdue  TransactionStatus = "OVERDUE"
)

// OpenTransactionStatuses are the statuses of a transaction that still holds its copy.
var OpenTransactionStatuses = []TransactionStatus{TransactionStatusIssued, TransactionStatusOverdue}

// IsOpen reports whether the transaction still holds its copy.
func (s TransactionStatus) IsOpen() bool {
	return s == TransactionStatusIssued || s == TransactionStatusOverdue
}

// User and Book are owned by the account and catalog collaborators. Only the
// columns circulation needs to resolve and join them are mapped here.

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"size:255;not null" json:"name"`
	Email string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Role  UserRole  `gorm:"type:varchar(16);not null" json:"role"`
}

type Book struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Author        string    `gorm:"size:255;not null" json:"author"`
	ISBN          string    `gorm:"size:32;not null;uniqueIndex" json:"isbn"`
	Category      string    `gorm:"size:128" json:"category"`
	PublishedYear int       `json:"published_year"`
}

type BookCopy struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BookID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"book_id"`
	Book      *Book          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"book,omitempty"`
	Status    BookCopyStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Transaction is one lending episode of one copy to one user.
//
// The partial unique index allows at most one open (ISSUED or OVERDUE)
// transaction per copy.
type Transaction struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	User       *User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"user,omitempty"`
	BookCopyID uuid.UUID         `gorm:"type:uuid;not null;index;uniqueIndex:uniq_open_transaction,where:status <> 'RETURNED'" json:"book_copy_id"`
	BookCopy   *BookCopy         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"book_copy,omitempty"`
	IssueDate  time.Time         `gorm:"not null" json:"issue_date"`
	DueDate    time.Time         `gorm:"not null;index" json:"due_date"`
	ReturnDate *time.Time        `json:"return_date"`
	RenewCount int               `gorm:"not null;default:0" json:"renew_count"`
	Status     TransactionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (b *Book) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (c *BookCopy) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// InventorySummary is a point-in-time count of copies by status.
type InventorySummary struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Issued    int64 `json:"issued"`
	Lost      int64 `json:"lost"`
}
