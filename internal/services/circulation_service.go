package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"library/internal/models"
	"library/internal/repositories"
)

// ReturnResult is a returned transaction together with the overdue days and
// fine computed at return time. Neither value is persisted.
type ReturnResult struct {
	models.Transaction
	OverdueDays int `json:"overdue_days"`
	Fine        int `json:"fine"`
}

// CirculationService drives the lending state machine. Each mutating
// operation runs as one storage transaction spanning the ledger and the copy
// registry, and takes the current time from the caller.
type CirculationService interface {
	Issue(ctx context.Context, userID, bookCopyID uuid.UUID, now time.Time) (*models.Transaction, error)
	Return(ctx context.Context, transactionID uuid.UUID, now time.Time) (*ReturnResult, error)
	Renew(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	FindOverdue(ctx context.Context, now time.Time) ([]models.Transaction, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
}

type circulationService struct {
	db              *gorm.DB
	userRepo        repositories.UserRepository
	bookCopyRepo    repositories.BookCopyRepository
	transactionRepo repositories.TransactionRepository
	inst            instrumentation
}

// NewCirculationService wires up the circulation engine.
func NewCirculationService(
	db *gorm.DB,
	userRepo repositories.UserRepository,
	bookCopyRepo repositories.BookCopyRepository,
	transactionRepo repositories.TransactionRepository,
) CirculationService {
	return &circulationService{
		db:              db,
		userRepo:        userRepo,
		bookCopyRepo:    bookCopyRepo,
		transactionRepo: transactionRepo,
		inst:            newInstrumentation(),
	}
}

// ─── Issue ────────────────────────────────────────────────────────────────────

// Issue lends an AVAILABLE copy to a user for LoanPeriodDays.
//
// The availability check is re-done by the conditional AVAILABLE→ISSUED update,
// so of two concurrent issues of the same copy exactly one succeeds and the
// other gets ErrCopyNotAvailable. The partial unique index on open
// transactions is a second line behind it.
func (s *circulationService) Issue(ctx context.Context, userID, bookCopyID uuid.UUID, now time.Time) (result *models.Transaction, err error) {
	ctx, span := s.inst.start(ctx, "circulation.issue",
		attribute.String("user.id", userID.String()),
		attribute.String("book_copy.id", bookCopyID.String()),
	)
	defer func() { s.inst.end(ctx, span, "issue", err) }()

	now = now.UTC()
	dueDate := now.AddDate(0, 0, LoanPeriodDays)

	err = runInTransaction(ctx, s.db, "Issue", func(tx *gorm.DB) error {
		if _, err := s.userRepo.GetByID(tx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		bookCopy, err := s.bookCopyRepo.GetByID(tx, bookCopyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookCopyNotFound
			}
			return err
		}
		if bookCopy.Status != models.BookCopyStatusAvailable {
			log.Warn().Str("book_copy_id", bookCopyID.String()).Str("status", string(bookCopy.Status)).
				Msg("Issue: book copy is not available")
			return ErrCopyNotAvailable
		}

		if err := s.bookCopyRepo.SetStatus(tx, bookCopyID, models.BookCopyStatusAvailable, models.BookCopyStatusIssued); err != nil {
			if errors.Is(err, repositories.ErrConditionNotMet) {
				log.Warn().Str("book_copy_id", bookCopyID.String()).Msg("Issue: lost race for book copy")
				return ErrCopyNotAvailable
			}
			log.Error().Err(err).Str("book_copy_id", bookCopyID.String()).Msg("Issue: failed to mark copy ISSUED")
			return err
		}

		txn := &models.Transaction{
			UserID:     userID,
			BookCopyID: bookCopyID,
			IssueDate:  now,
			DueDate:    dueDate,
			Status:     models.TransactionStatusIssued,
		}
		if err := s.transactionRepo.Create(tx, txn); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrCopyNotAvailable
			}
			log.Error().Err(err).Str("book_copy_id", bookCopyID.String()).Msg("Issue: failed to create transaction record")
			return err
		}

		view, err := s.transactionRepo.GetByID(tx, txn.ID)
		if err != nil {
			return err
		}
		result = view
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", result.ID.String()).
		Str("user_id", userID.String()).
		Str("book_copy_id", bookCopyID.String()).
		Str("due_date", dueDate.Format("2006-01-02")).
		Msg("Issue: book copy issued")
	return result, nil
}

// ─── Return ───────────────────────────────────────────────────────────────────

// Return closes an open transaction and makes its copy AVAILABLE again.
//
// Steps (all in one storage transaction):
//  1. Lock the transaction row.
//  2. Guard against double return.
//  3. Compute overdue days and fine (see CalculateFine).
//  4. Mark the transaction RETURNED with returnDate = now.
//  5. Mark the copy AVAILABLE.
func (s *circulationService) Return(ctx context.Context, transactionID uuid.UUID, now time.Time) (result *ReturnResult, err error) {
	ctx, span := s.inst.start(ctx, "circulation.return",
		attribute.String("transaction.id", transactionID.String()),
	)
	defer func() { s.inst.end(ctx, span, "return", err) }()

	now = now.UTC()

	err = runInTransaction(ctx, s.db, "Return", func(tx *gorm.DB) error {
		txn, err := s.transactionRepo.GetByIDForUpdate(tx, transactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		if txn.Status == models.TransactionStatusReturned {
			log.Warn().Str("transaction_id", transactionID.String()).Msg("Return: transaction already returned")
			return ErrAlreadyReturned
		}

		overdueDays, fine := CalculateFine(txn.DueDate, now)

		if err := s.transactionRepo.MarkReturned(tx, txn.ID, now); err != nil {
			if errors.Is(err, repositories.ErrConditionNotMet) {
				return ErrAlreadyReturned
			}
			log.Error().Err(err).Str("transaction_id", transactionID.String()).Msg("Return: failed to mark transaction RETURNED")
			return err
		}

		if err := s.bookCopyRepo.UpdateStatus(tx, txn.BookCopyID, models.BookCopyStatusAvailable); err != nil {
			log.Error().Err(err).Str("book_copy_id", txn.BookCopyID.String()).Msg("Return: failed to mark copy AVAILABLE")
			return err
		}

		view, err := s.transactionRepo.GetByID(tx, txn.ID)
		if err != nil {
			return err
		}
		result = &ReturnResult{Transaction: *view, OverdueDays: overdueDays, Fine: fine}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", transactionID.String()).
		Str("book_copy_id", result.BookCopyID.String()).
		Int("overdue_days", result.OverdueDays).
		Int("fine", result.Fine).
		Msg("Return: book copy returned")
	return result, nil
}

// ─── Renew ────────────────────────────────────────────────────────────────────

// Renew extends the due date of an ISSUED transaction by RenewalDays, at most
// MaxRenewals times. OVERDUE transactions cannot be renewed; they must be
// returned and issued again. The copy is not touched.
func (s *circulationService) Renew(ctx context.Context, transactionID uuid.UUID) (result *models.Transaction, err error) {
	ctx, span := s.inst.start(ctx, "circulation.renew",
		attribute.String("transaction.id", transactionID.String()),
	)
	defer func() { s.inst.end(ctx, span, "renew", err) }()

	err = runInTransaction(ctx, s.db, "Renew", func(tx *gorm.DB) error {
		txn, err := s.transactionRepo.GetByIDForUpdate(tx, transactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		if txn.Status != models.TransactionStatusIssued {
			log.Warn().Str("transaction_id", transactionID.String()).Str("status", string(txn.Status)).
				Msg("Renew: transaction is not ISSUED")
			return ErrNotRenewable
		}
		if txn.RenewCount >= MaxRenewals {
			log.Warn().Str("transaction_id", transactionID.String()).Msg("Renew: renewal limit reached")
			return ErrRenewalLimitReached
		}

		newDueDate := txn.DueDate.AddDate(0, 0, RenewalDays)
		if err := s.transactionRepo.Renew(tx, txn.ID, newDueDate, MaxRenewals); err != nil {
			if errors.Is(err, repositories.ErrConditionNotMet) {
				return s.renewConflict(tx, txn.ID)
			}
			log.Error().Err(err).Str("transaction_id", transactionID.String()).Msg("Renew: failed to update due date")
			return err
		}

		view, err := s.transactionRepo.GetByID(tx, txn.ID)
		if err != nil {
			return err
		}
		result = view
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", transactionID.String()).
		Str("due_date", result.DueDate.Format("2006-01-02")).
		Msg("Renew: transaction renewed")
	return result, nil
}

// renewConflict re-reads a transaction whose guarded renew changed no row
// and reports which guard it failed.
func (s *circulationService) renewConflict(tx *gorm.DB, id uuid.UUID) error {
	current, err := s.transactionRepo.GetByID(tx, id)
	if err != nil {
		return err
	}
	if current.Status != models.TransactionStatusIssued {
		log.Warn().Str("transaction_id", id.String()).Str("status", string(current.Status)).
			Msg("Renew: transaction left ISSUED before the update")
		return ErrNotRenewable
	}
	log.Warn().Str("transaction_id", id.String()).Msg("Renew: renewal limit reached before the update")
	return ErrRenewalLimitReached
}

// ─── Overdue sweep ────────────────────────────────────────────────────────────

// FindOverdue returns every ISSUED transaction due before now and, in the
// same storage transaction, advances them to OVERDUE. The returned snapshot
// is taken before the advance, so it still shows status ISSUED; callers that
// need the new status must query again. Running it twice in a row yields an
// empty second result.
func (s *circulationService) FindOverdue(ctx context.Context, now time.Time) (result []models.Transaction, err error) {
	ctx, span := s.inst.start(ctx, "circulation.sweep")
	defer func() { s.inst.end(ctx, span, "sweep", err) }()

	now = now.UTC()
	var advanced int64

	err = runInTransaction(ctx, s.db, "FindOverdue", func(tx *gorm.DB) error {
		ids, err := s.transactionRepo.LockOverdueCandidates(tx, now)
		if err != nil {
			return err
		}

		snapshot, err := s.transactionRepo.FindByIDs(tx, ids)
		if err != nil {
			return err
		}

		n, err := s.transactionRepo.MarkOverdue(tx, ids)
		if err != nil {
			log.Error().Err(err).Int("candidates", len(ids)).Msg("FindOverdue: failed to mark transactions OVERDUE")
			return err
		}

		result = snapshot
		advanced = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("sweep.advanced", advanced))
	if advanced > 0 {
		log.Info().Int64("advanced", advanced).Msg("FindOverdue: transactions marked OVERDUE")
	}
	return result, nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

func (s *circulationService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.transactionRepo.GetByID(s.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

func (s *circulationService) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	return s.transactionRepo.FindAll(s.db.WithContext(ctx))
}

// ListActiveForUser returns the user's ISSUED and OVERDUE transactions.
func (s *circulationService) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return s.transactionRepo.FindActiveByUser(s.db.WithContext(ctx), userID)
}
