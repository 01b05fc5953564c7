package modcache

import (
	"context"
	"errors"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/scripting/compiler"
	"github.com/atlanticdynamic/payscript/internal/store"
)

// BinaryProvider returns the persisted binary of one version of a script object, identified by
// its id and script hash. A missing binary is reported with store.ErrBinaryNotFound.
type BinaryProvider interface {
	GetBinary(
		ctx context.Context,
		db domain.DbContext,
		tenantID int,
		typ domain.ObjectType,
		objectID int64,
		scriptHash int64,
	) ([]byte, error)
}

// BinarySaver persists binaries compiled on demand. Providers may implement it.
type BinarySaver interface {
	SaveBinary(
		ctx context.Context,
		db domain.DbContext,
		tenantID int,
		typ domain.ObjectType,
		objectID int64,
		scriptHash int64,
		binary []byte,
	) error
}

// BinaryBuilder compiles a script object when no binary is persisted.
type BinaryBuilder interface {
	BuildObject(obj *domain.ScriptObject) (*compiler.Result, error)
}

// ChainProvider asks each provider in order and returns the first binary found.
type ChainProvider []BinaryProvider

var (
	_ BinaryProvider = ChainProvider(nil)
	_ BinarySaver    = ChainProvider(nil)
)

func (c ChainProvider) GetBinary(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	objectID int64,
	scriptHash int64,
) ([]byte, error) {
	for _, p := range c {
		binary, err := p.GetBinary(ctx, db, tenantID, typ, objectID, scriptHash)
		switch {
		case errors.Is(err, store.ErrBinaryNotFound):
			continue
		case err != nil:
			return nil, err
		case len(binary) > 0:
			return binary, nil
		}
	}
	return nil, store.ErrBinaryNotFound
}

// SaveBinary writes to every provider that can persist binaries.
func (c ChainProvider) SaveBinary(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	objectID int64,
	scriptHash int64,
	binary []byte,
) error {
	var errs []error
	for _, p := range c {
		if saver, ok := p.(BinarySaver); ok {
			if err := saver.SaveBinary(ctx, db, tenantID, typ, objectID, scriptHash, binary); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
