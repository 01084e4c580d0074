package domain

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// TenantStatus define el estado operativo de un tenant
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantInactive  TenantStatus = "inactive"
	TenantSuspended TenantStatus = "suspended"
)

// ModelSelection elige proveedor y modelo para la generación de respuestas
type ModelSelection struct {
	Provider    string  `json:"provider" yaml:"provider"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// NotificationTargets lista a quién avisar cuando un cliente pide un humano
type NotificationTargets struct {
	Emails   []string `json:"emails,omitempty" yaml:"emails"`
	Webhooks []string `json:"webhooks,omitempty" yaml:"webhooks"`
}

func (n NotificationTargets) IsEmpty() bool {
	return len(n.Emails) == 0 && len(n.Webhooks) == 0
}

// Tenant es la configuración de un cliente de la plataforma (una cuenta de WhatsApp Business)
type Tenant struct {
	ID            string              `json:"id" yaml:"id"`
	Name          string              `json:"name" yaml:"name"`
	Status        TenantStatus        `json:"status" yaml:"status"`
	VerifyToken   string              `json:"-" yaml:"verify_token"`
	AppSecret     string              `json:"-" yaml:"app_secret"`
	AccessToken   string              `json:"-" yaml:"access_token"`
	PhoneNumberID string              `json:"phone_number_id" yaml:"phone_number_id"`
	SystemPrompt  string              `json:"system_prompt" yaml:"system_prompt"`
	Model         ModelSelection      `json:"model" yaml:"model"`
	Notify        NotificationTargets `json:"notify" yaml:"notify"`
	RAGEnabled    bool                `json:"rag_enabled" yaml:"rag_enabled"`
	CreatedAt     time.Time           `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time           `json:"updated_at" yaml:"-"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantActive
}

// HasAppSecret reports whether webhook signatures can be verified.
func (t *Tenant) HasAppSecret() bool {
	return strings.TrimSpace(t.AppSecret) != ""
}

// Validate checks the stored record. Secrets are not required here: a
// tenant without app secret is a deployment error reported per request.
func (t *Tenant) Validate() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.ID, validation.Required, validation.Length(1, 64)),
		validation.Field(&t.Status, validation.Required, validation.In(TenantActive, TenantInactive, TenantSuspended)),
		validation.Field(&t.Model),
		validation.Field(&t.Notify),
	)
}

func (m ModelSelection) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&m.MaxTokens, validation.Min(0)),
	)
}

func (n NotificationTargets) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Emails, validation.Each(is.EmailFormat)),
		validation.Field(&n.Webhooks, validation.Each(is.URL)),
	)
}
