package domain

import "errors"

var (
	// ErrTenantNotFound se retorna cuando el tenant del webhook no existe
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantInactive se retorna cuando el tenant existe pero no está activo
	ErrTenantInactive = errors.New("tenant is not active")

	// ErrMissingAppSecret se retorna cuando el tenant no tiene app secret configurado
	ErrMissingAppSecret = errors.New("tenant app secret not configured")
)
