package testutil

import (
	"context"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockTaskRepository records task creation.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	task *domain.Task,
) error {
	args := m.Called(ctx, db, tenantID, task)
	return args.Error(0)
}

// MockLogRepository records log entry creation.
type MockLogRepository struct {
	mock.Mock
}

func (m *MockLogRepository) Create(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	entry *domain.LogEntry,
) error {
	args := m.Called(ctx, db, tenantID, entry)
	return args.Error(0)
}

// MockBinaryProvider serves binaries by object id and script hash.
type MockBinaryProvider struct {
	mock.Mock
}

func (m *MockBinaryProvider) GetBinary(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	objectID int64,
	scriptHash int64,
) ([]byte, error) {
	args := m.Called(ctx, db, tenantID, typ, objectID, scriptHash)
	binary, _ := args.Get(0).([]byte)
	return binary, args.Error(1)
}

// MockCloser counts Close calls.
type MockCloser struct {
	mock.Mock
}

func (m *MockCloser) Close() error {
	args := m.Called()
	return args.Error(0)
}
