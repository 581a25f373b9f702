package repository

import (
	"context"

	"childcare-billing/internal/models"

	"gorm.io/gorm"
)

// CheckoutSessions is the GORM CheckoutRepository.
type CheckoutSessions struct {
	db *gorm.DB
}

func NewCheckoutSessions(db *gorm.DB) *CheckoutSessions {
	return &CheckoutSessions{db: db}
}

func (r *CheckoutSessions) Record(ctx context.Context, s *models.CheckoutSession) error {
	return wrap("record checkout session", r.db.WithContext(ctx).Create(s).Error)
}

// AuditLogs is the GORM AuditRepository.
type AuditLogs struct {
	db *gorm.DB
}

func NewAuditLogs(db *gorm.DB) *AuditLogs {
	return &AuditLogs{db: db}
}

func (r *AuditLogs) Create(ctx context.Context, entry *models.AuditLog) error {
	return wrap("create audit log", r.db.WithContext(ctx).Create(entry).Error)
}

func (r *AuditLogs) List(ctx context.Context, limit, offset int) ([]models.AuditLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, wrap("count audit logs", err)
	}
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&logs).Error
	return logs, total, wrap("list audit logs", err)
}
