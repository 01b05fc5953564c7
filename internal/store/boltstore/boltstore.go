// Package boltstore persists compiled module images in a local bbolt file, one bucket per tenant.
package boltstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/store"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketBinaries = "binaries"
	openTimeout    = time.Second
)

// Store is safe for concurrent use.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogHandler sets a custom log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *Store) {
		if handler != nil {
			s.logger = slog.New(handler)
		}
	}
}

// Open creates or opens the store file at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{logger: slog.Default().WithGroup("boltstore.Store")}
	for _, opt := range opts {
		opt(s)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketBinaries))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize bolt store: %w", err)
	}
	s.db = db
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func tenantBucket(tenantID int) []byte {
	return []byte(strconv.Itoa(tenantID))
}

// objectPrefix is shared by every version of one object.
func objectPrefix(typ domain.ObjectType, objectID int64) []byte {
	return fmt.Appendf(nil, "%s/%d/", typ, objectID)
}

func objectKey(typ domain.ObjectType, objectID, scriptHash int64) []byte {
	return append(objectPrefix(typ, objectID), store.HashKey(scriptHash)...)
}

// GetBinary returns a copy of the stored image. The DbContext is unused.
func (s *Store) GetBinary(
	_ context.Context,
	_ domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	objectID int64,
	scriptHash int64,
) ([]byte, error) {
	if err := store.ValidateKey(tenantID, typ.String(), objectID, scriptHash); err != nil {
		return nil, err
	}

	var binary []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		tenant := tx.Bucket([]byte(bucketBinaries)).Bucket(tenantBucket(tenantID))
		if tenant == nil {
			return store.ErrBinaryNotFound
		}
		v := tenant.Get(objectKey(typ, objectID, scriptHash))
		if v == nil {
			return store.ErrBinaryNotFound
		}
		binary = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return binary, nil
}

func (s *Store) SaveBinary(
	_ context.Context,
	_ domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	objectID int64,
	scriptHash int64,
	binary []byte,
) error {
	if err := store.ValidateKey(tenantID, typ.String(), objectID, scriptHash); err != nil {
		return err
	}
	if len(binary) == 0 {
		return fmt.Errorf("%w: empty binary", store.ErrInvalidArgument)
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		tenant, err := tx.Bucket([]byte(bucketBinaries)).CreateBucketIfNotExists(tenantBucket(tenantID))
		if err != nil {
			return err
		}
		return tenant.Put(objectKey(typ, objectID, scriptHash), binary)
	})
	if err != nil {
		return fmt.Errorf("failed to save binary: %w", err)
	}
	s.logger.Debug("Binary saved",
		"tenant_id", tenantID, "type", typ, "object_id", objectID,
		"script_hash", store.HashKey(scriptHash), "size", len(binary))
	return nil
}

// DeleteBinary removes every stored version of one object. Deleting a missing image is not an
// error.
func (s *Store) DeleteBinary(tenantID int, typ domain.ObjectType, objectID int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		tenant := tx.Bucket([]byte(bucketBinaries)).Bucket(tenantBucket(tenantID))
		if tenant == nil {
			return nil
		}
		prefix := objectPrefix(typ, objectID)
		var keys [][]byte
		c := tenant.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, bytes.Clone(k))
		}
		for _, k := range keys {
			if err := tenant.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTenant removes every image of a tenant.
func (s *Store) DeleteTenant(tenantID int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket([]byte(bucketBinaries)).DeleteBucket(tenantBucket(tenantID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Tenants lists the tenants with stored images.
func (s *Store) Tenants() ([]int, error) {
	var ids []int
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBinaries)).ForEachBucket(func(k []byte) error {
			id, err := strconv.Atoi(string(k))
			if err != nil {
				return fmt.Errorf("corrupt tenant bucket %q: %w", k, err)
			}
			ids = append(ids, id)
			return nil
		})
	})
	slices.Sort(ids)
	return ids, err
}
