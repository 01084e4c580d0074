package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/database"
	"gorm.io/gorm"
)

type chatMessageModel struct {
	Seq               uint64 `gorm:"primaryKey;autoIncrement"`
	ID                string `gorm:"uniqueIndex;size:64;not null"`
	TenantID          string `gorm:"index:idx_chat_messages_conversation,priority:1;not null"`
	Phone             string `gorm:"index:idx_chat_messages_conversation,priority:2;not null"`
	Role              string `gorm:"not null"`
	Content           string `gorm:"type:text"`
	ProviderMessageID string `gorm:"index:idx_chat_messages_provider"`
	DeliveryStatus    string
	Reaction          string
	ExecutionID       string
	CreatedAt         time.Time `gorm:"not null"`
}

func (chatMessageModel) TableName() string {
	return "chat_messages"
}

// HistoryGormRepository stores the conversation turns of every tenant.
type HistoryGormRepository struct {
	db *database.Client
}

func NewHistoryGormRepository(db *database.Client) *HistoryGormRepository {
	return &HistoryGormRepository{db: db}
}

func (r *HistoryGormRepository) InitSchema(ctx context.Context) error {
	return r.db.DB().WithContext(ctx).AutoMigrate(&chatMessageModel{})
}

func (r *HistoryGormRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m := toChatMessageModel(msg)
	return r.db.Do(ctx, "history.append", func(tx *gorm.DB) error {
		return tx.Create(&m).Error
	})
}

// FetchRecent returns the latest limit turns, oldest first. Assistant
// segments that never reached the customer are left out.
func (r *HistoryGormRepository) FetchRecent(ctx context.Context, tenantID, phone string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	var models []chatMessageModel
	err := r.db.Do(ctx, "history.fetch_recent", func(tx *gorm.DB) error {
		return tx.
			Where("tenant_id = ? AND phone = ?", tenantID, phone).
			Where("NOT (role = ? AND delivery_status = ?)", string(domain.RoleAssistant), "failed").
			Order("seq DESC").
			Limit(limit).
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChatMessage, len(models))
	for i, m := range models {
		out[len(models)-1-i] = fromChatMessageModel(m)
	}
	return out, nil
}

func (r *HistoryGormRepository) UpdateDeliveryStatus(ctx context.Context, tenantID, providerMessageID, status string) error {
	return r.db.Do(ctx, "history.update_status", func(tx *gorm.DB) error {
		var m chatMessageModel
		if err := tx.Where("tenant_id = ? AND provider_message_id = ?", tenantID, providerMessageID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrMessageNotFound
			}
			return err
		}
		if !domain.AdvancesDelivery(m.DeliveryStatus, status) {
			return nil
		}
		return tx.Model(&chatMessageModel{}).Where("seq = ?", m.Seq).Update("delivery_status", status).Error
	})
}

func (r *HistoryGormRepository) SetReaction(ctx context.Context, tenantID, providerMessageID, emoji string) error {
	return r.db.Do(ctx, "history.set_reaction", func(tx *gorm.DB) error {
		res := tx.Model(&chatMessageModel{}).
			Where("tenant_id = ? AND provider_message_id = ?", tenantID, providerMessageID).
			Update("reaction", emoji)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrMessageNotFound
		}
		return nil
	})
}

func toChatMessageModel(msg *domain.ChatMessage) chatMessageModel {
	return chatMessageModel{
		ID:                msg.ID,
		TenantID:          msg.TenantID,
		Phone:             msg.Phone,
		Role:              string(msg.Role),
		Content:           msg.Content,
		ProviderMessageID: msg.ProviderMessageID,
		DeliveryStatus:    msg.DeliveryStatus,
		Reaction:          msg.Reaction,
		ExecutionID:       msg.ExecutionID,
		CreatedAt:         msg.CreatedAt,
	}
}

func fromChatMessageModel(m chatMessageModel) domain.ChatMessage {
	return domain.ChatMessage{
		ID:                m.ID,
		TenantID:          m.TenantID,
		Phone:             m.Phone,
		Role:              domain.Role(m.Role),
		Content:           m.Content,
		ProviderMessageID: m.ProviderMessageID,
		DeliveryStatus:    m.DeliveryStatus,
		Reaction:          m.Reaction,
		ExecutionID:       m.ExecutionID,
		CreatedAt:         m.CreatedAt,
	}
}
