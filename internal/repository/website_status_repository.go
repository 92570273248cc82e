package repository

import (
	"gorm.io/gorm"

	"registration-service/internal/models"
)

const websiteStatusID = 1

// WebsiteStatusRepository manages the singleton website open/closed row.
type WebsiteStatusRepository interface {
	Get() (*models.WebsiteStatus, error)
	Update(isOpen bool, closedMessage string) (*models.WebsiteStatus, error)
}

// WebsiteStatusRepositoryImpl backs WebsiteStatusRepository with GORM.
type WebsiteStatusRepositoryImpl struct {
	db *gorm.DB
}

// NewWebsiteStatusRepository creates a new WebsiteStatusRepositoryImpl.
func NewWebsiteStatusRepository(db *gorm.DB) *WebsiteStatusRepositoryImpl {
	return &WebsiteStatusRepositoryImpl{db: db}
}

// Get returns the status row, creating the default open row on first use.
func (r *WebsiteStatusRepositoryImpl) Get() (*models.WebsiteStatus, error) {
	var status models.WebsiteStatus
	err := r.db.Where(models.WebsiteStatus{ID: websiteStatusID}).
		Attrs(models.WebsiteStatus{IsOpen: true}).
		FirstOrCreate(&status).Error
	return &status, err
}

// Update sets the open flag and closed message.
func (r *WebsiteStatusRepositoryImpl) Update(isOpen bool, closedMessage string) (*models.WebsiteStatus, error) {
	status, err := r.Get()
	if err != nil {
		return nil, err
	}
	status.IsOpen = isOpen
	status.ClosedMessage = closedMessage
	if err := r.db.Save(status).Error; err != nil {
		return nil, err
	}
	return status, nil
}
