package repositories

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"library/internal/database"
	"library/internal/models"
)

var day0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	users  UserRepository
	books  BookRepository
	copies BookCopyRepository
	txns   TransactionRepository
}

// setupTestDB opens a fresh migrated SQLite database in a temp dir.
func setupTestDB(t testing.TB) *fixture {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "library.db"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &fixture{
		db:     db,
		users:  NewUserRepository(db),
		books:  NewBookRepository(db),
		copies: NewBookCopyRepository(db),
		txns:   NewTransactionRepository(db),
	}
}

func (f *fixture) user(t testing.TB) *models.User {
	t.Helper()
	id := uuid.New()
	u := &models.User{ID: id, Name: "Reader", Email: fmt.Sprintf("%s@example.com", id), Role: models.UserRoleStudent}
	require.NoError(t, f.users.Create(nil, u))
	return u
}

func (f *fixture) book(t testing.TB) *models.Book {
	t.Helper()
	b := &models.Book{Title: "The Go Programming Language", Author: "Donovan", ISBN: uuid.NewString()}
	require.NoError(t, f.books.Create(nil, b))
	return b
}

func (f *fixture) bookCopy(t testing.TB, status models.BookCopyStatus) *models.BookCopy {
	t.Helper()
	c := &models.BookCopy{BookID: f.book(t).ID, Status: status}
	require.NoError(t, f.copies.Create(nil, c))
	return c
}

func (f *fixture) transaction(t testing.TB, userID, copyID uuid.UUID, due time.Time, status models.TransactionStatus) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		UserID:     userID,
		BookCopyID: copyID,
		IssueDate:  due.AddDate(0, 0, -14),
		DueDate:    due,
		Status:     status,
	}
	if status == models.TransactionStatusReturned {
		returned := due
		txn.ReturnDate = &returned
	}
	require.NoError(t, f.txns.Create(nil, txn))
	return txn
}

func TestBookCopySetStatusIsConditional(t *testing.T) {
	f := setupTestDB(t)
	c := f.bookCopy(t, models.BookCopyStatusAvailable)

	require.NoError(t, f.copies.SetStatus(nil, c.ID, models.BookCopyStatusAvailable, models.BookCopyStatusIssued))
	err := f.copies.SetStatus(nil, c.ID, models.BookCopyStatusAvailable, models.BookCopyStatusIssued)
	assert.ErrorIs(t, err, ErrConditionNotMet)

	got, err := f.copies.GetByID(nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookCopyStatusIssued, got.Status)
	require.NotNil(t, got.Book)
	assert.Equal(t, c.BookID, got.Book.ID)
}

func TestBookCopyUpdateStatusMissingCopy(t *testing.T) {
	f := setupTestDB(t)
	err := f.copies.UpdateStatus(nil, uuid.New(), models.BookCopyStatusAvailable)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestBookCopyDeleteUnlessIssued(t *testing.T) {
	f := setupTestDB(t)
	issued := f.bookCopy(t, models.BookCopyStatusIssued)
	lost := f.bookCopy(t, models.BookCopyStatusLost)

	assert.ErrorIs(t, f.copies.DeleteUnlessIssued(nil, issued.ID), ErrConditionNotMet)
	require.NoError(t, f.copies.DeleteUnlessIssued(nil, lost.ID))

	_, err := f.copies.GetByID(nil, lost.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = f.copies.GetByID(nil, issued.ID)
	assert.NoError(t, err)
}

func TestBookCopyCreateBatchAndSummary(t *testing.T) {
	f := setupTestDB(t)
	book := f.book(t)

	batch := make([]*models.BookCopy, 3)
	for i := range batch {
		batch[i] = &models.BookCopy{BookID: book.ID, Status: models.BookCopyStatusAvailable}
	}
	require.NoError(t, f.copies.CreateBatch(nil, batch))
	for _, c := range batch {
		assert.NotEqual(t, uuid.Nil, c.ID)
	}
	f.bookCopy(t, models.BookCopyStatusIssued)
	f.bookCopy(t, models.BookCopyStatusLost)

	summary, err := f.copies.Summary(nil)
	require.NoError(t, err)
	assert.Equal(t, &models.InventorySummary{Total: 5, Available: 3, Issued: 1, Lost: 1}, summary)

	all, err := f.copies.List(nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestSummaryOfEmptyRegistry(t *testing.T) {
	f := setupTestDB(t)
	summary, err := f.copies.Summary(nil)
	require.NoError(t, err)
	assert.Equal(t, &models.InventorySummary{}, summary)
}

func TestOneOpenTransactionPerCopy(t *testing.T) {
	f := setupTestDB(t)
	u := f.user(t)
	c := f.bookCopy(t, models.BookCopyStatusIssued)

	first := f.transaction(t, u.ID, c.ID, day0, models.TransactionStatusIssued)

	second := &models.Transaction{UserID: u.ID, BookCopyID: c.ID, IssueDate: day0, DueDate: day0, Status: models.TransactionStatusOverdue}
	require.Error(t, f.txns.Create(nil, second), "a second open transaction must be rejected")

	require.NoError(t, f.txns.MarkReturned(nil, first.ID, day0))
	third := &models.Transaction{UserID: u.ID, BookCopyID: c.ID, IssueDate: day0, DueDate: day0.AddDate(0, 0, 14), Status: models.TransactionStatusIssued}
	require.NoError(t, f.txns.Create(nil, third))

	n, err := f.txns.CountByBookCopy(nil, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMarkReturnedOnlyOnce(t *testing.T) {
	f := setupTestDB(t)
	u := f.user(t)
	c := f.bookCopy(t, models.BookCopyStatusIssued)
	txn := f.transaction(t, u.ID, c.ID, day0, models.TransactionStatusOverdue)

	returnedAt := day0.AddDate(0, 0, 3)
	require.NoError(t, f.txns.MarkReturned(nil, txn.ID, returnedAt))
	assert.ErrorIs(t, f.txns.MarkReturned(nil, txn.ID, returnedAt.Add(time.Hour)), ErrConditionNotMet)

	got, err := f.txns.GetByID(nil, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
	assert.True(t, returnedAt.Equal(*got.ReturnDate))
	require.NotNil(t, got.User)
	require.NotNil(t, got.BookCopy)
	assert.NotNil(t, got.BookCopy.Book)
}

func TestRenewGuard(t *testing.T) {
	f := setupTestDB(t)
	u := f.user(t)

	issued := f.transaction(t, u.ID, f.bookCopy(t, models.BookCopyStatusIssued).ID, day0, models.TransactionStatusIssued)
	overdue := f.transaction(t, u.ID, f.bookCopy(t, models.BookCopyStatusIssued).ID, day0, models.TransactionStatusOverdue)

	newDue := day0.AddDate(0, 0, 7)
	require.NoError(t, f.txns.Renew(nil, issued.ID, newDue, 1))
	assert.ErrorIs(t, f.txns.Renew(nil, issued.ID, newDue.AddDate(0, 0, 7), 1), ErrConditionNotMet)
	assert.ErrorIs(t, f.txns.Renew(nil, overdue.ID, newDue, 1), ErrConditionNotMet)

	got, err := f.txns.GetByID(nil, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RenewCount)
	assert.True(t, newDue.Equal(got.DueDate))
}

func TestOverdueCandidatesAndMark(t *testing.T) {
	f := setupTestDB(t)
	u := f.user(t)
	now := day0.AddDate(0, 0, 10)

	pastDue := f.transaction(t, u.ID, f.bookCopy(t, models.BookCopyStatusIssued).ID, day0, models.TransactionStatusIssued)
	f.transaction(t, u.ID, f.bookCopy(t, models.BookCopyStatusIssued).ID, now.AddDate(0, 0, 1), models.TransactionStatusIssued)
	f.transaction(t, u.ID, f.bookCopy(t, models.BookCopyStatusIssued).ID, day0, models.TransactionStatusOverdue)
	f.transaction(t, u.ID, f.bookCopy(t, models.BookCopyStatusAvailable).ID, day0, models.TransactionStatusReturned)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		ids, err := f.txns.LockOverdueCandidates(tx, now)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{pastDue.ID}, ids)

		n, err := f.txns.MarkOverdue(tx, ids)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = f.txns.MarkOverdue(tx, ids)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
		return nil
	})
	require.NoError(t, err)

	ids, err := f.txns.LockOverdueCandidates(nil, now)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFindActiveByUser(t *testing.T) {
	f := setupTestDB(t)
	u := f.user(t)
	other := f.user(t)

	open := f.transaction(t, u.ID, f.bookCopy(t, models.BookCopyStatusIssued).ID, day0.AddDate(0, 0, 1), models.TransactionStatusIssued)
	late := f.transaction(t, u.ID, f.bookCopy(t, models.BookCopyStatusIssued).ID, day0, models.TransactionStatusOverdue)
	f.transaction(t, u.ID, f.bookCopy(t, models.BookCopyStatusAvailable).ID, day0, models.TransactionStatusReturned)
	f.transaction(t, other.ID, f.bookCopy(t, models.BookCopyStatusIssued).ID, day0, models.TransactionStatusIssued)

	active, err := f.txns.FindActiveByUser(nil, u.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, late.ID, active[0].ID, "ordered by due date")
	assert.Equal(t, open.ID, active[1].ID)

	all, err := f.txns.FindAll(nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := f.txns.FindByIDs(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
