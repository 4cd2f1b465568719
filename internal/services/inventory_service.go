package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"library/internal/models"
	"library/internal/repositories"
)

const (
	MinBulkCopies = 1
	MaxBulkCopies = 100
)

// CreateCopyRequest registers one copy of a book. Status defaults to AVAILABLE.
type CreateCopyRequest struct {
	BookID uuid.UUID
	Status *models.BookCopyStatus
}

// UpdateCopyRequest is an administrative edit of a copy. A nil field is left
// unchanged.
//
//   - Status: moves the copy between AVAILABLE and LOST. ISSUED cannot be set
//     here, and a copy that is currently ISSUED cannot be edited until it is
//     returned.
type UpdateCopyRequest struct {
	Status *models.BookCopyStatus
}

// InventoryService is the copy registry.
type InventoryService interface {
	CreateCopy(ctx context.Context, req CreateCopyRequest) (*models.BookCopy, error)
	CreateCopies(ctx context.Context, bookID uuid.UUID, count int) ([]*models.BookCopy, error)
	ListCopies(ctx context.Context) ([]models.BookCopy, error)
	GetCopy(ctx context.Context, id uuid.UUID) (*models.BookCopy, error)
	UpdateCopy(ctx context.Context, id uuid.UUID, req UpdateCopyRequest) (*models.BookCopy, error)
	DeleteCopy(ctx context.Context, id uuid.UUID) error
	Summary(ctx context.Context) (*models.InventorySummary, error)
}

type inventoryService struct {
	db              *gorm.DB
	bookRepo        repositories.BookRepository
	bookCopyRepo    repositories.BookCopyRepository
	transactionRepo repositories.TransactionRepository
	inst            instrumentation
}

func NewInventoryService(
	db *gorm.DB,
	bookRepo repositories.BookRepository,
	bookCopyRepo repositories.BookCopyRepository,
	transactionRepo repositories.TransactionRepository,
) InventoryService {
	return &inventoryService{
		db:              db,
		bookRepo:        bookRepo,
		bookCopyRepo:    bookCopyRepo,
		transactionRepo: transactionRepo,
		inst:            newInstrumentation(),
	}
}

func (s *inventoryService) getBook(db *gorm.DB, bookID uuid.UUID) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(db, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

func (s *inventoryService) CreateCopy(ctx context.Context, req CreateCopyRequest) (result *models.BookCopy, err error) {
	ctx, span := s.inst.start(ctx, "inventory.create_copy", attribute.String("book.id", req.BookID.String()))
	defer func() { s.inst.end(ctx, span, "create_copy", err) }()

	status := models.BookCopyStatusAvailable
	if req.Status != nil {
		status = *req.Status
	}
	if !status.Valid() {
		return nil, ErrInvalidCopyStatus
	}
	if status == models.BookCopyStatusIssued {
		return nil, ErrStatusReserved
	}

	book, err := s.getBook(s.db.WithContext(ctx), req.BookID)
	if err != nil {
		return nil, err
	}

	bookCopy := &models.BookCopy{BookID: book.ID, Status: status}
	if err := s.bookCopyRepo.Create(s.db.WithContext(ctx), bookCopy); err != nil {
		log.Error().Err(err).Str("book_id", book.ID.String()).Msg("CreateCopy: failed to create copy")
		return nil, err
	}
	bookCopy.Book = book

	log.Info().Str("book_copy_id", bookCopy.ID.String()).Str("book_id", book.ID.String()).Msg("CreateCopy: copy added")
	return bookCopy, nil
}

// CreateCopies adds count AVAILABLE copies of one book. Either all copies are
// created or none are.
func (s *inventoryService) CreateCopies(ctx context.Context, bookID uuid.UUID, count int) (result []*models.BookCopy, err error) {
	ctx, span := s.inst.start(ctx, "inventory.create_copies",
		attribute.String("book.id", bookID.String()),
		attribute.Int("count", count),
	)
	defer func() { s.inst.end(ctx, span, "create_copies", err) }()

	if count < MinBulkCopies || count > MaxBulkCopies {
		return nil, ErrInvalidCopyCount
	}

	err = runInTransaction(ctx, s.db, "CreateCopies", func(tx *gorm.DB) error {
		book, err := s.getBook(tx, bookID)
		if err != nil {
			return err
		}

		copies := make([]*models.BookCopy, count)
		for i := range copies {
			copies[i] = &models.BookCopy{BookID: bookID, Status: models.BookCopyStatusAvailable}
		}
		if err := s.bookCopyRepo.CreateBatch(tx, copies); err != nil {
			log.Error().Err(err).Str("book_id", bookID.String()).Int("count", count).Msg("CreateCopies: batch insert failed")
			return err
		}
		for _, c := range copies {
			c.Book = book
		}
		result = copies
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("book_id", bookID.String()).Int("count", count).Msg("CreateCopies: copies added")
	return result, nil
}

func (s *inventoryService) ListCopies(ctx context.Context) ([]models.BookCopy, error) {
	return s.bookCopyRepo.List(s.db.WithContext(ctx))
}

func (s *inventoryService) GetCopy(ctx context.Context, id uuid.UUID) (*models.BookCopy, error) {
	bookCopy, err := s.bookCopyRepo.GetByID(s.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookCopyNotFound
		}
		return nil, err
	}
	return bookCopy, nil
}

func (s *inventoryService) UpdateCopy(ctx context.Context, id uuid.UUID, req UpdateCopyRequest) (result *models.BookCopy, err error) {
	ctx, span := s.inst.start(ctx, "inventory.update_copy", attribute.String("book_copy.id", id.String()))
	defer func() { s.inst.end(ctx, span, "update_copy", err) }()

	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, ErrInvalidCopyStatus
		}
		if *req.Status == models.BookCopyStatusIssued {
			return nil, ErrStatusReserved
		}
	}

	err = runInTransaction(ctx, s.db, "UpdateCopy", func(tx *gorm.DB) error {
		bookCopy, err := s.bookCopyRepo.GetByID(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookCopyNotFound
			}
			return err
		}

		if req.Status != nil && *req.Status != bookCopy.Status {
			if bookCopy.Status == models.BookCopyStatusIssued {
				log.Warn().Str("book_copy_id", id.String()).Msg("UpdateCopy: copy is issued")
				return ErrCopyIssued
			}
			if err := s.bookCopyRepo.SetStatus(tx, id, bookCopy.Status, *req.Status); err != nil {
				if errors.Is(err, repositories.ErrConditionNotMet) {
					return ErrCopyIssued
				}
				return err
			}
			log.Info().Str("book_copy_id", id.String()).
				Str("from", string(bookCopy.Status)).Str("to", string(*req.Status)).
				Msg("UpdateCopy: status changed")
		}

		reloaded, err := s.bookCopyRepo.GetByID(tx, id)
		if err != nil {
			return err
		}
		result = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteCopy removes a copy that is not ISSUED and has never been lent.
// Copies with lending history are kept so the ledger stays complete; mark
// them LOST instead.
func (s *inventoryService) DeleteCopy(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.inst.start(ctx, "inventory.delete_copy", attribute.String("book_copy.id", id.String()))
	defer func() { s.inst.end(ctx, span, "delete_copy", err) }()

	err = runInTransaction(ctx, s.db, "DeleteCopy", func(tx *gorm.DB) error {
		bookCopy, err := s.bookCopyRepo.GetByID(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookCopyNotFound
			}
			return err
		}
		if bookCopy.Status == models.BookCopyStatusIssued {
			log.Warn().Str("book_copy_id", id.String()).Msg("DeleteCopy: copy is issued")
			return ErrCopyIssued
		}

		n, err := s.transactionRepo.CountByBookCopy(tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrCopyHasHistory
		}

		if err := s.bookCopyRepo.DeleteUnlessIssued(tx, id); err != nil {
			if errors.Is(err, repositories.ErrConditionNotMet) {
				return ErrCopyIssued
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("book_copy_id", id.String()).Msg("DeleteCopy: copy deleted")
	return nil
}

// Summary counts copies by status. It is read committed only: under
// concurrent writes the counts converge once writers settle.
func (s *inventoryService) Summary(ctx context.Context) (*models.InventorySummary, error) {
	return s.bookCopyRepo.Summary(s.db.WithContext(ctx))
}
