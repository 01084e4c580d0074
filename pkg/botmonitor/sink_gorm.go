package botmonitor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/database"
	"gorm.io/gorm"
)

type executionLogModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	InstanceID string    `gorm:"size:64"`
	TenantID   string    `gorm:"index:idx_execution_logs_tenant;not null"`
	Phone      string    `gorm:"index:idx_execution_logs_tenant"`
	Status     string    `gorm:"index;not null"`
	Metadata   string    `gorm:"type:text"` // JSON
	Spans      string    `gorm:"type:text"` // JSON
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt time.Time `gorm:"index;not null"`
	DurationMs int64
}

func (executionLogModel) TableName() string {
	return "execution_logs"
}

// GormSink stores traces in the execution_logs table.
type GormSink struct {
	db *database.Client
}

func NewGormSink(db *database.Client) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) InitSchema(ctx context.Context) error {
	return s.db.DB().WithContext(ctx).AutoMigrate(&executionLogModel{})
}

func (s *GormSink) Save(ctx context.Context, rec TraceRecord) error {
	spans, err := json.Marshal(rec.Spans)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	m := executionLogModel{
		ID:         rec.ID,
		InstanceID: rec.InstanceID,
		TenantID:   rec.TenantID,
		Phone:      rec.Phone,
		Status:     string(rec.Status),
		Metadata:   string(meta),
		Spans:      string(spans),
		StartedAt:  rec.StartedAt.UTC(),
		FinishedAt: rec.FinishedAt.UTC(),
		DurationMs: rec.DurationMs,
	}
	return s.db.Do(ctx, "execution_logs.save", func(tx *gorm.DB) error {
		return tx.Create(&m).Error
	})
}

// Recent returns the latest execution logs of a tenant, newest first.
func (s *GormSink) Recent(ctx context.Context, tenantID string, limit int) ([]TraceRecord, error) {
	var models []executionLogModel
	err := s.db.Do(ctx, "execution_logs.recent", func(tx *gorm.DB) error {
		return tx.Where("tenant_id = ?", tenantID).Order("finished_at DESC").Limit(limit).Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]TraceRecord, 0, len(models))
	for _, m := range models {
		rec := TraceRecord{
			ID:         m.ID,
			InstanceID: m.InstanceID,
			TenantID:   m.TenantID,
			Phone:      m.Phone,
			Status:     Status(m.Status),
			StartedAt:  m.StartedAt,
			FinishedAt: m.FinishedAt,
			DurationMs: m.DurationMs,
		}
		_ = json.Unmarshal([]byte(m.Spans), &rec.Spans)
		_ = json.Unmarshal([]byte(m.Metadata), &rec.Metadata)
		out = append(out, rec)
	}
	return out, nil
}

// Sweep deletes execution logs finished before the cutoff.
func (s *GormSink) Sweep(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := s.db.Do(ctx, "execution_logs.sweep", func(tx *gorm.DB) error {
		res := tx.Where("finished_at < ?", before.UTC()).Delete(&executionLogModel{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
