package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library/internal/models"
)

// TransactionRepository is the lending ledger. It applies no business rules
// beyond the guards on its conditional updates; callers own the unit of work.
type TransactionRepository interface {
	Create(db *gorm.DB, txn *models.Transaction) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Transaction, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Transaction, error)
	FindByIDs(db *gorm.DB, ids []uuid.UUID) ([]models.Transaction, error)
	FindAll(db *gorm.DB) ([]models.Transaction, error)
	FindActiveByUser(db *gorm.DB, userID uuid.UUID) ([]models.Transaction, error)
	CountByBookCopy(db *gorm.DB, bookCopyID uuid.UUID) (int64, error)
	MarkReturned(db *gorm.DB, id uuid.UUID, returnDate time.Time) error
	Renew(db *gorm.DB, id uuid.UUID, newDueDate time.Time, maxRenewals int) error
	LockOverdueCandidates(db *gorm.DB, asOf time.Time) ([]uuid.UUID, error)
	MarkOverdue(db *gorm.DB, ids []uuid.UUID) (int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func withView(db *gorm.DB) *gorm.DB {
	return db.Preload("User").Preload("BookCopy.Book")
}

func (r *transactionRepository) Create(db *gorm.DB, txn *models.Transaction) error {
	return orDefault(db, r.db).Create(txn).Error
}

// GetByID loads a transaction joined with its user and copy/book.
func (r *transactionRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := withView(orDefault(db, r.db)).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetByIDForUpdate locks the transaction row until the caller's unit of work ends.
func (r *transactionRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := orDefault(db, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) FindByIDs(db *gorm.DB, ids []uuid.UUID) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	if len(ids) == 0 {
		return txns, nil
	}
	if err := withView(orDefault(db, r.db)).
		Where("id IN ?", ids).
		Order("due_date, id").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *transactionRepository) FindAll(db *gorm.DB) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	if err := withView(orDefault(db, r.db)).Order("issue_date, id").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// FindActiveByUser returns the user's ISSUED and OVERDUE transactions.
func (r *transactionRepository) FindActiveByUser(db *gorm.DB, userID uuid.UUID) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	err := withView(orDefault(db, r.db)).
		Where("user_id = ? AND status IN ?", userID, models.OpenTransactionStatuses).
		Order("due_date, id").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *transactionRepository) CountByBookCopy(db *gorm.DB, bookCopyID uuid.UUID) (int64, error) {
	var n int64
	err := orDefault(db, r.db).Model(&models.Transaction{}).
		Where("book_copy_id = ?", bookCopyID).
		Count(&n).Error
	return n, err
}

// MarkReturned closes an open transaction. It returns ErrConditionNotMet if
// the transaction is already RETURNED, so a transaction is returned exactly once.
func (r *transactionRepository) MarkReturned(db *gorm.DB, id uuid.UUID, returnDate time.Time) error {
	res := orDefault(db, r.db).Model(&models.Transaction{}).
		Where("id = ? AND status <> ?", id, models.TransactionStatusReturned).
		Updates(map[string]interface{}{
			"status":      models.TransactionStatusReturned,
			"return_date": returnDate,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConditionNotMet
	}
	return nil
}

// Renew moves the due date and bumps renew_count, only while the transaction
// is ISSUED and has renewals left.
func (r *transactionRepository) Renew(db *gorm.DB, id uuid.UUID, newDueDate time.Time, maxRenewals int) error {
	res := orDefault(db, r.db).Model(&models.Transaction{}).
		Where("id = ? AND status = ? AND renew_count < ?", id, models.TransactionStatusIssued, maxRenewals).
		Updates(map[string]interface{}{
			"due_date":    newDueDate,
			"renew_count": gorm.Expr("renew_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConditionNotMet
	}
	return nil
}

// LockOverdueCandidates returns the ids of ISSUED transactions due before
// asOf, locking them so a concurrent return or renewal waits for the sweep.
func (r *transactionRepository) LockOverdueCandidates(db *gorm.DB, asOf time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := orDefault(db, r.db).Model(&models.Transaction{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND due_date < ?", models.TransactionStatusIssued, asOf).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkOverdue advances ISSUED transactions to OVERDUE. Rows in any other
// status are left alone, which makes the advance idempotent.
func (r *transactionRepository) MarkOverdue(db *gorm.DB, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := orDefault(db, r.db).Model(&models.Transaction{}).
		Where("id IN ? AND status = ?", ids, models.TransactionStatusIssued).
		Update("status", models.TransactionStatusOverdue)
	return res.RowsAffected, res.Error
}
