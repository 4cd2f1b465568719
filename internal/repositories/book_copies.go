package repositories

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"library/internal/models"
)

// BookCopyRepository owns persistence of book copies and their availability
// status. Status transitions driven by circulation go through SetStatus only.
type BookCopyRepository interface {
	Create(db *gorm.DB, copy *models.BookCopy) error
	CreateBatch(db *gorm.DB, copies []*models.BookCopy) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.BookCopy, error)
	List(db *gorm.DB) ([]models.BookCopy, error)
	SetStatus(db *gorm.DB, id uuid.UUID, from, to models.BookCopyStatus) error
	UpdateStatus(db *gorm.DB, id uuid.UUID, status models.BookCopyStatus) error
	DeleteUnlessIssued(db *gorm.DB, id uuid.UUID) error
	Summary(db *gorm.DB) (*models.InventorySummary, error)
}

type bookCopyRepository struct {
	db *gorm.DB
}

func NewBookCopyRepository(db *gorm.DB) BookCopyRepository {
	return &bookCopyRepository{db: db}
}

func (r *bookCopyRepository) Create(db *gorm.DB, copy *models.BookCopy) error {
	return orDefault(db, r.db).Create(copy).Error
}

// CreateBatch inserts all copies with a single statement.
func (r *bookCopyRepository) CreateBatch(db *gorm.DB, copies []*models.BookCopy) error {
	if len(copies) == 0 {
		return nil
	}
	return orDefault(db, r.db).Create(&copies).Error
}

func (r *bookCopyRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.BookCopy, error) {
	var copy models.BookCopy
	if err := orDefault(db, r.db).Preload("Book").First(&copy, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *bookCopyRepository) List(db *gorm.DB) ([]models.BookCopy, error) {
	copies := []models.BookCopy{}
	if err := orDefault(db, r.db).Preload("Book").Order("created_at, id").Find(&copies).Error; err != nil {
		return nil, err
	}
	return copies, nil
}

// SetStatus moves a copy from one status to another in a single conditional
// UPDATE. It returns ErrConditionNotMet when no row with that id is currently
// in status from, which is how two concurrent issues of the same copy are told
// apart: only one of them can observe the row as AVAILABLE.
func (r *bookCopyRepository) SetStatus(db *gorm.DB, id uuid.UUID, from, to models.BookCopyStatus) error {
	res := orDefault(db, r.db).Model(&models.BookCopy{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConditionNotMet
	}
	return nil
}

func (r *bookCopyRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, status models.BookCopyStatus) error {
	res := orDefault(db, r.db).Model(&models.BookCopy{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *bookCopyRepository) DeleteUnlessIssued(db *gorm.DB, id uuid.UUID) error {
	res := orDefault(db, r.db).
		Where("id = ? AND status <> ?", id, models.BookCopyStatusIssued).
		Delete(&models.BookCopy{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConditionNotMet
	}
	return nil
}

func (r *bookCopyRepository) Summary(db *gorm.DB) (*models.InventorySummary, error) {
	var rows []struct {
		Status models.BookCopyStatus
		Count  int64
	}
	err := orDefault(db, r.db).Model(&models.BookCopy{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := &models.InventorySummary{}
	for _, row := range rows {
		summary.Total += row.Count
		switch row.Status {
		case models.BookCopyStatusAvailable:
			summary.Available = row.Count
		case models.BookCopyStatusIssued:
			summary.Issued = row.Count
		case models.BookCopyStatusLost:
			summary.Lost = row.Count
		}
	}
	return summary, nil
}
