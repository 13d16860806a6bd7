package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/essaymark/essaymark-go-api/internal/models"
)

// GradingRepository exposes persistence helpers for grading records.
type GradingRepository interface {
	Create(ctx context.Context, record *models.GradingRecord) error
	GetByID(ctx context.Context, id string) (models.GradingRecord, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.GradingRecord, int64, error)
}

// NewGradingRepository constructs a grading repository.
func NewGradingRepository(db *gorm.DB) GradingRepository {
	return &gradingRepository{db: db}
}

type gradingRepository struct {
	db *gorm.DB
}

func (r *gradingRepository) Create(ctx context.Context, record *models.GradingRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *gradingRepository) GetByID(ctx context.Context, id string) (models.GradingRecord, error) {
	var record models.GradingRecord
	err := r.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&record, "id = ?", id).Error
	if err != nil {
		return models.GradingRecord{}, err
	}
	return record, nil
}

func (r *gradingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.GradingRecord, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.GradingRecord{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.GradingRecord
	err := query.
		Preload("Results", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
