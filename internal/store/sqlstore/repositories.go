package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/store"
)

// TaskRepository stores tasks raised by scripted functions.
type TaskRepository struct {
	st *Store
}

func NewTaskRepository(s *Store) *TaskRepository {
	return &TaskRepository{st: s}
}

func (r *TaskRepository) Create(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	task *domain.Task,
) error {
	if tenantID <= 0 || task == nil {
		return fmt.Errorf("%w: tenant %d, task %v", store.ErrInvalidArgument, tenantID, task)
	}
	attributes, err := json.Marshal(task.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode task attributes: %w", err)
	}
	_, err = r.st.conn(db).ExecContext(ctx,
		`INSERT INTO tasks (id, tenant_id, name, instruction, category, schedule_date, attributes, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		task.ID.String(), tenantID, task.Name, task.Instruction, task.Category,
		task.ScheduleDate.UTC(), string(attributes), task.Created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// LogRepository stores script log entries.
type LogRepository struct {
	st *Store
}

func NewLogRepository(s *Store) *LogRepository {
	return &LogRepository{st: s}
}

func (r *LogRepository) Create(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	entry *domain.LogEntry,
) error {
	if tenantID <= 0 || entry == nil {
		return fmt.Errorf("%w: tenant %d, entry %v", store.ErrInvalidArgument, tenantID, entry)
	}
	_, err := r.st.conn(db).ExecContext(ctx,
		`INSERT INTO log_entries (id, tenant_id, level, message, error, comment, owner, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID.String(), tenantID, int(entry.Level), entry.Message, entry.Error,
		entry.Comment, entry.Owner, entry.Created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}
