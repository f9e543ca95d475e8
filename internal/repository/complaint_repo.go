package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/complaint-intake-api/internal/models"
)

// ComplaintFilter narrows complaint listings.
type ComplaintFilter struct {
	UserID string
}

// ComplaintRepository persists classified complaints.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	DeleteAll(ctx context.Context) ([]models.Complaint, error)
	List(ctx context.Context, filter ComplaintFilter) ([]models.Complaint, error)
	EnsureSchema(ctx context.Context) error
	Now(ctx context.Context) (time.Time, error)
}

type complaintRepository struct {
	db *gorm.DB
}

// NewComplaintRepository constructs a repository backed by GORM.
func NewComplaintRepository(db *gorm.DB) ComplaintRepository {
	return &complaintRepository{db: db}
}

func (r *complaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	return r.db.WithContext(ctx).Create(complaint).Error
}

// DeleteAll removes every row in one statement and returns the removed rows.
func (r *complaintRepository) DeleteAll(ctx context.Context) ([]models.Complaint, error) {
	var removed []models.Complaint
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Clauses(clause.Returning{}).
		Delete(&removed).Error
	if err != nil {
		return nil, err
	}
	if removed == nil {
		removed = []models.Complaint{}
	}
	return removed, nil
}

func (r *complaintRepository) List(ctx context.Context, filter ComplaintFilter) ([]models.Complaint, error) {
	query := r.db.WithContext(ctx).Model(&models.Complaint{})
	if filter.UserID != "" {
		query = query.Where("userid = ?", filter.UserID)
	}

	var complaints []models.Complaint
	if err := query.Order("date_sent DESC").Order("id DESC").Find(&complaints).Error; err != nil {
		return nil, err
	}
	return complaints, nil
}

// EnsureSchema creates the complaints table when it does not exist.
func (r *complaintRepository) EnsureSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.Complaint{})
}

// Now asks the database for its clock, which doubles as a connectivity probe.
func (r *complaintRepository) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := r.db.WithContext(ctx).Raw("SELECT CURRENT_TIMESTAMP").Scan(&now).Error; err != nil {
		return time.Time{}, err
	}
	return now, nil
}
