package repository

import (
	"context"
	"errors"
	"time"

	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/database"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/customers/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type customerModel struct {
	TenantID  string `gorm:"primaryKey"`
	Phone     string `gorm:"primaryKey"`
	Name      string
	Status    string `gorm:"index:idx_customers_status;not null;default:'bot'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (customerModel) TableName() string {
	return "customers"
}

type CustomerGormRepository struct {
	db *database.Client
}

func NewCustomerGormRepository(db *database.Client) *CustomerGormRepository {
	return &CustomerGormRepository{db: db}
}

func (r *CustomerGormRepository) InitSchema(ctx context.Context) error {
	return r.db.DB().WithContext(ctx).AutoMigrate(&customerModel{})
}

// GetOrCreate returns the customer, inserting it as a bot conversation on
// first contact. A known name is refreshed when the profile name changed.
func (r *CustomerGormRepository) GetOrCreate(ctx context.Context, tenantID, phone, name string) (*domain.Customer, error) {
	var m customerModel
	err := r.db.Do(ctx, "customers.get_or_create", func(tx *gorm.DB) error {
		now := time.Now().UTC()
		insert := customerModel{
			TenantID:  tenantID,
			Phone:     phone,
			Name:      name,
			Status:    string(domain.StatusBot),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&insert).Error; err != nil {
			return err
		}
		if err := tx.First(&m, "tenant_id = ? AND phone = ?", tenantID, phone).Error; err != nil {
			return err
		}
		if name != "" && m.Name != name {
			m.Name = name
			return tx.Model(&customerModel{}).
				Where("tenant_id = ? AND phone = ?", tenantID, phone).
				Updates(map[string]any{"name": name, "updated_at": now}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fromCustomerModel(m), nil
}

func (r *CustomerGormRepository) Get(ctx context.Context, tenantID, phone string) (*domain.Customer, error) {
	var m customerModel
	err := r.db.Do(ctx, "customers.get", func(tx *gorm.DB) error {
		return tx.First(&m, "tenant_id = ? AND phone = ?", tenantID, phone).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	return fromCustomerModel(m), nil
}

func (r *CustomerGormRepository) SetStatus(ctx context.Context, tenantID, phone string, status domain.Status) error {
	return r.setStatus(ctx, tenantID, phone, status, true)
}

func (r *CustomerGormRepository) ExternalSetStatus(ctx context.Context, tenantID, phone string, status domain.Status) error {
	return r.setStatus(ctx, tenantID, phone, status, false)
}

func (r *CustomerGormRepository) setStatus(ctx context.Context, tenantID, phone string, status domain.Status, enforce bool) error {
	return r.db.Do(ctx, "customers.set_status", func(tx *gorm.DB) error {
		var m customerModel
		if err := tx.First(&m, "tenant_id = ? AND phone = ?", tenantID, phone).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCustomerNotFound
			}
			return err
		}
		if enforce {
			if err := domain.ValidateTransition(domain.Status(m.Status), status); err != nil {
				return err
			}
		}
		return tx.Model(&customerModel{}).
			Where("tenant_id = ? AND phone = ?", tenantID, phone).
			Updates(map[string]any{"status": string(status), "updated_at": time.Now().UTC()}).Error
	})
}

func fromCustomerModel(m customerModel) *domain.Customer {
	return &domain.Customer{
		TenantID:  m.TenantID,
		Phone:     m.Phone,
		Name:      m.Name,
		Status:    domain.Status(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
