package dedup

import (
	"context"
	"time"

	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type processedMessageModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	TenantID    string    `gorm:"uniqueIndex:idx_processed_messages_key,priority:1;not null"`
	MessageID   string    `gorm:"uniqueIndex:idx_processed_messages_key,priority:2;not null"`
	ProcessedAt time.Time `gorm:"index;not null"`
}

func (processedMessageModel) TableName() string {
	return "processed_messages"
}

// GormMarker is the durable marker. The unique key turns a concurrent second
// insert into a no-op, which is how duplicates are detected.
type GormMarker struct {
	db *database.Client
}

func NewGormMarker(db *database.Client) *GormMarker {
	return &GormMarker{db: db}
}

func (m *GormMarker) InitSchema(ctx context.Context) error {
	return m.db.DB().WithContext(ctx).AutoMigrate(&processedMessageModel{})
}

func (m *GormMarker) Mark(ctx context.Context, tenantID, messageID string) (bool, error) {
	row := processedMessageModel{TenantID: tenantID, MessageID: messageID, ProcessedAt: time.Now().UTC()}
	var affected int64
	err := m.db.Do(ctx, "dedup.mark", func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (m *GormMarker) Unmark(ctx context.Context, tenantID, messageID string) error {
	return m.db.Do(ctx, "dedup.unmark", func(tx *gorm.DB) error {
		return tx.Where("tenant_id = ? AND message_id = ?", tenantID, messageID).Delete(&processedMessageModel{}).Error
	})
}

// Sweep deletes records processed before the cutoff.
func (m *GormMarker) Sweep(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := m.db.Do(ctx, "dedup.sweep", func(tx *gorm.DB) error {
		res := tx.Where("processed_at < ?", before.UTC()).Delete(&processedMessageModel{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
