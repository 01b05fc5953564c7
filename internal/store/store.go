// Package store holds what the image stores and repositories share.
package store

import (
	"errors"
	"fmt"
)

// HashKey formats a script hash the way every store writes it into keys.
func HashKey(scriptHash int64) string {
	return fmt.Sprintf("%016x", uint64(scriptHash))
}

var (
	// ErrStore is the base error for persistence backends.
	ErrStore = errors.New("store error")

	// ErrBinaryNotFound indicates no compiled binary is persisted for the requested object.
	ErrBinaryNotFound = fmt.Errorf("%w: binary not found", ErrStore)

	// ErrInvalidArgument indicates a malformed key component.
	ErrInvalidArgument = fmt.Errorf("%w: invalid argument", ErrStore)
)

// ValidateKey checks the components every binary store keys on. The script hash is part of the
// key so an edited object never resolves to the image of its previous content.
func ValidateKey(tenantID int, objectType string, objectID, scriptHash int64) error {
	var errs []error
	if tenantID <= 0 {
		errs = append(errs, fmt.Errorf("%w: tenant id %d", ErrInvalidArgument, tenantID))
	}
	if objectType == "" {
		errs = append(errs, fmt.Errorf("%w: empty object type", ErrInvalidArgument))
	}
	if objectID <= 0 {
		errs = append(errs, fmt.Errorf("%w: object id %d", ErrInvalidArgument, objectID))
	}
	if scriptHash == 0 {
		errs = append(errs, fmt.Errorf("%w: zero script hash", ErrInvalidArgument))
	}
	return errors.Join(errs...)
}
