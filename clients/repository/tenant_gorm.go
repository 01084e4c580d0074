package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/database"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/crypto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Model ---

type tenantModel struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	Status        string `gorm:"index:idx_tenants_status;not null;default:'active'"`
	VerifyToken   string `gorm:"type:text"` // encrypted
	AppSecret     string `gorm:"type:text"` // encrypted
	AccessToken   string `gorm:"type:text"` // encrypted
	PhoneNumberID string `gorm:"index:idx_tenants_phone_number_id"`
	SystemPrompt  string `gorm:"type:text"`
	Model         string `gorm:"type:text;default:'{}'"` // JSON
	Notify        string `gorm:"type:text;default:'{}'"` // JSON
	RAGEnabled    bool   `gorm:"column:rag_enabled;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (tenantModel) TableName() string {
	return "tenants"
}

// --- Repository Implementation ---

type TenantGormRepository struct {
	db *database.Client
}

func NewTenantGormRepository(db *database.Client) *TenantGormRepository {
	return &TenantGormRepository{db: db}
}

func (r *TenantGormRepository) InitSchema(ctx context.Context) error {
	return r.db.DB().WithContext(ctx).AutoMigrate(&tenantModel{})
}

func (r *TenantGormRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var m tenantModel
	err := r.db.Do(ctx, "tenants.get", func(tx *gorm.DB) error {
		return tx.First(&m, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return fromTenantModel(m)
}

func (r *TenantGormRepository) Upsert(ctx context.Context, tenant *domain.Tenant) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	m, err := toTenantModel(tenant)
	if err != nil {
		return err
	}
	return r.db.Do(ctx, "tenants.upsert", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "status", "verify_token", "app_secret", "access_token", "phone_number_id", "system_prompt", "model", "notify", "rag_enabled", "updated_at"}),
		}).Create(&m).Error
	})
}

// --- Mappers ---

func toTenantModel(t *domain.Tenant) (tenantModel, error) {
	verify, err := crypto.Encrypt(t.VerifyToken)
	if err != nil {
		return tenantModel{}, err
	}
	secret, err := crypto.Encrypt(t.AppSecret)
	if err != nil {
		return tenantModel{}, err
	}
	access, err := crypto.Encrypt(t.AccessToken)
	if err != nil {
		return tenantModel{}, err
	}
	model, _ := json.Marshal(t.Model)
	notify, _ := json.Marshal(t.Notify)

	return tenantModel{
		ID:            t.ID,
		Name:          t.Name,
		Status:        string(t.Status),
		VerifyToken:   verify,
		AppSecret:     secret,
		AccessToken:   access,
		PhoneNumberID: t.PhoneNumberID,
		SystemPrompt:  t.SystemPrompt,
		Model:         string(model),
		Notify:        string(notify),
		RAGEnabled:    t.RAGEnabled,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}, nil
}

func fromTenantModel(m tenantModel) (*domain.Tenant, error) {
	verify, err := crypto.Decrypt(m.VerifyToken)
	if err != nil {
		return nil, err
	}
	secret, err := crypto.Decrypt(m.AppSecret)
	if err != nil {
		return nil, err
	}
	access, err := crypto.Decrypt(m.AccessToken)
	if err != nil {
		return nil, err
	}

	t := &domain.Tenant{
		ID:            m.ID,
		Name:          m.Name,
		Status:        domain.TenantStatus(m.Status),
		VerifyToken:   verify,
		AppSecret:     secret,
		AccessToken:   access,
		PhoneNumberID: m.PhoneNumberID,
		SystemPrompt:  m.SystemPrompt,
		RAGEnabled:    m.RAGEnabled,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Model != "" {
		_ = json.Unmarshal([]byte(m.Model), &t.Model)
	}
	if m.Notify != "" {
		_ = json.Unmarshal([]byte(m.Notify), &t.Notify)
	}
	return t, nil
}
