package core

import (
	"context"
	"errors"
	"log"

	"armada.cl/asesor-compras/internal/store"
)

// defaultUserPassword applies when the admin never configured one.
const defaultUserPassword = "armada2024"

// User-visible validation errors. The wording is deliberately generic so the
// response does not reveal which check failed.
var (
	ErrWrongPassword    = errors.New("Contraseña incorrecta")
	ErrValidationFailed = errors.New("Error al validar credenciales")
	ErrUserCreation     = errors.New("Error al crear usuario")
)

// UserValidator checks a RUT + password pair against the shared password and
// auto-provisions the user row on first successful login.
type UserValidator struct {
	store    *store.Store
	settings *SettingsService
}

func NewUserValidator(st *store.Store, settings *SettingsService) *UserValidator {
	return &UserValidator{store: st, settings: settings}
}

// Validate returns the (possibly just created) user on success. A password
// mismatch never creates a row.
func (v *UserValidator) Validate(ctx context.Context, rut, password string) (*store.AppUser, error) {
	configured := v.settings.Snapshot().UserPassword
	if configured == "" {
		configured = defaultUserPassword
	}

	if password != configured {
		return nil, ErrWrongPassword
	}

	if v.store == nil {
		log.Printf("Login attempt for rut %s with persistence disabled", rut)
		return nil, ErrValidationFailed
	}

	user, err := v.store.GetUserByRut(ctx, rut)
	if err != nil {
		log.Printf("Error looking up user %s: %v", rut, err)
		return nil, ErrValidationFailed
	}

	if user == nil {
		user, err = v.store.CreateUser(ctx, rut)
		if err != nil {
			log.Printf("Error provisioning user %s: %v", rut, err)
			return nil, ErrUserCreation
		}
	}

	return user, nil
}
