package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"library/internal/database"
	"library/internal/models"
	"library/internal/repositories"
)

var day0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db          *gorm.DB
	users       repositories.UserRepository
	books       repositories.BookRepository
	copies      repositories.BookCopyRepository
	txns        repositories.TransactionRepository
	circulation CirculationService
	inventory   InventoryService
}

func setupTestDB(t testing.TB) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "library.db"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, repositories.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return newTestEnv(db)
}

func newTestEnv(db *gorm.DB) *testEnv {
	env := &testEnv{
		db:     db,
		users:  repositories.NewUserRepository(db),
		books:  repositories.NewBookRepository(db),
		copies: repositories.NewBookCopyRepository(db),
		txns:   repositories.NewTransactionRepository(db),
	}
	env.circulation = NewCirculationService(db, env.users, env.copies, env.txns)
	env.inventory = NewInventoryService(db, env.books, env.copies, env.txns)
	return env
}

func (e *testEnv) user(t require.TestingT) *models.User {
	id := uuid.New()
	u := &models.User{ID: id, Name: "Reader", Email: fmt.Sprintf("%s@example.com", id), Role: models.UserRoleStudent}
	require.NoError(t, e.users.Create(nil, u))
	return u
}

func (e *testEnv) book(t require.TestingT) *models.Book {
	b := &models.Book{Title: "Designing Data-Intensive Applications", Author: "Kleppmann", ISBN: uuid.NewString()}
	require.NoError(t, e.books.Create(nil, b))
	return b
}

func (e *testEnv) bookCopy(t require.TestingT, status models.BookCopyStatus) *models.BookCopy {
	c := &models.BookCopy{BookID: e.book(t).ID, Status: status}
	require.NoError(t, e.copies.Create(nil, c))
	return c
}

func (e *testEnv) copyStatus(t require.TestingT, id uuid.UUID) models.BookCopyStatus {
	c, err := e.copies.GetByID(nil, id)
	require.NoError(t, err)
	return c.Status
}

func (e *testEnv) openTransactions(t require.TestingT, copyID uuid.UUID) int64 {
	var n int64
	err := e.db.Model(&models.Transaction{}).
		Where("book_copy_id = ? AND status <> ?", copyID, models.TransactionStatusReturned).
		Count(&n).Error
	require.NoError(t, err)
	return n
}

// requireConsistent checks that the copy is ISSUED exactly when it has one
// open transaction.
func (e *testEnv) requireConsistent(t require.TestingT, copyID uuid.UUID) {
	open := e.openTransactions(t, copyID)
	require.LessOrEqual(t, open, int64(1), "copy %s has %d open transactions", copyID, open)
	status := e.copyStatus(t, copyID)
	require.Equal(t, open == 1, status == models.BookCopyStatusIssued,
		"copy %s is %s with %d open transactions", copyID, status, open)
}
