package modcache

import (
	"errors"
	"fmt"

	"github.com/atlanticdynamic/payscript/internal/domain"
)

// Key addresses one cached module. The zero Key is invalid; use NewKey.
type Key struct {
	tenantID int
	typ      domain.ObjectType
	hash     int64
}

// NewKey validates and builds a cache key. A key can not be built without a tenant.
func NewKey(tenantID int, typ domain.ObjectType, scriptHash int64) (Key, error) {
	var errs []error
	if tenantID <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", domain.ErrInvalidTenant, tenantID))
	}
	if !typ.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", domain.ErrInvalidObjectType, typ))
	}
	if scriptHash == 0 {
		errs = append(errs, ErrZeroScriptHash)
	}
	if len(errs) > 0 {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidKey, errors.Join(errs...))
	}
	return Key{tenantID: tenantID, typ: typ, hash: scriptHash}, nil
}

func (k Key) TenantID() int {
	return k.tenantID
}

func (k Key) Type() domain.ObjectType {
	return k.typ
}

func (k Key) ScriptHash() int64 {
	return k.hash
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%016x", k.tenantID, k.typ, uint64(k.hash))
}
