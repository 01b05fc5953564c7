package modcache

import (
	"errors"
	"fmt"

	"github.com/atlanticdynamic/payscript/internal/domain"
)

var (
	// ErrCache is the base error for the module cache.
	ErrCache = errors.New("module cache error")

	// ErrInvalidKey indicates a key component failed validation.
	ErrInvalidKey = fmt.Errorf("%w: invalid key", ErrCache)

	// ErrZeroScriptHash indicates a script object without a content hash.
	ErrZeroScriptHash = errors.New("script hash must not be zero")

	// ErrNilObject indicates GetModule was called without a script object.
	ErrNilObject = fmt.Errorf("%w: script object is nil", ErrCache)

	// ErrTenantMismatch indicates a script object owned by another tenant.
	ErrTenantMismatch = fmt.Errorf("%w: script object belongs to another tenant", ErrCache)

	// ErrMissingBinary is matched by every *MissingBinaryError.
	ErrMissingBinary = fmt.Errorf("%w: missing binary", ErrCache)

	// ErrLoadRetriesExhausted indicates the tenant context kept being unloaded during a load.
	ErrLoadRetriesExhausted = fmt.Errorf("%w: tenant context unloaded during load", ErrCache)
)

// MissingBinaryError reports an object with no binary in memory, in the provider, or from
// the on-demand builder.
type MissingBinaryError struct {
	TenantID int
	Type     domain.ObjectType
	ObjectID int64
}

func (e *MissingBinaryError) Error() string {
	return fmt.Sprintf("%s: %s %d of tenant %d", ErrMissingBinary, e.Type, e.ObjectID, e.TenantID)
}

func (e *MissingBinaryError) Is(target error) bool {
	return errors.Is(ErrMissingBinary, target)
}
