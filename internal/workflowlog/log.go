// Package workflowlog is the append-only record of agent runs. A run is
// inserted as running and later finalized exactly once; readers filter by
// project, workflow type and time range.
package workflowlog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"buildrag/internal/logging"
	"buildrag/pkg/types"
)

// errorMessageLimit caps the stored failure message.
const errorMessageLimit = 1000

// Log persists workflow run records.
type Log struct {
	db     *sqlx.DB
	logger logging.Logger
}

// New wraps an existing pool.
func New(db *sqlx.DB) *Log {
	return &Log{db: db, logger: logging.WithComponent("workflowlog")}
}

// Filter narrows List results. Zero fields are ignored.
type Filter struct {
	ProjectID    string
	WorkflowType types.WorkflowType
	From         time.Time
	To           time.Time
	Limit        int
}

// Start inserts a running record and returns its ID.
func (l *Log) Start(ctx context.Context, projectID string, workflowType types.WorkflowType, inputParams string) (int64, error) {
	var id int64
	err := l.db.GetContext(ctx, &id, `
		INSERT INTO workflow_logs (project_id, workflow_type, start_time, status, input_params)
		VALUES ($1, $2, NOW(), $3, $4)
		RETURNING id`,
		projectID, workflowType, types.WorkflowRunning, inputParams)
	if err != nil {
		return 0, fmt.Errorf("failed to start workflow log: %w", err)
	}
	return id, nil
}

// Finalize moves a record to its terminal state. The failure message is
// truncated so oversized stack traces never break the update.
func (l *Log) Finalize(ctx context.Context, id int64, status types.WorkflowStatus, summary, errMsg string) error {
	if status != types.WorkflowCompleted && status != types.WorkflowFailed {
		return fmt.Errorf("invalid terminal status: %s", status)
	}
	if runes := []rune(errMsg); len(runes) > errorMessageLimit {
		errMsg = string(runes[:errorMessageLimit])
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE workflow_logs
		SET status = $2, end_time = NOW(), output_summary = $3, error_message = $4
		WHERE id = $1`,
		id, status, summary, errMsg)
	if err != nil {
		return fmt.Errorf("failed to finalize workflow log %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workflow log %d not found", id)
	}
	return nil
}

// List returns records matching the filter, most recent first.
func (l *Log) List(ctx context.Context, filter Filter) ([]types.WorkflowLogEntry, error) {
	var conditions []string
	var args []any

	add := func(expr string, value any) {
		args = append(args, value)
		conditions = append(conditions, expr+"$"+strconv.Itoa(len(args)))
	}
	if filter.ProjectID != "" {
		add("project_id = ", filter.ProjectID)
	}
	if filter.WorkflowType != "" {
		add("workflow_type = ", filter.WorkflowType)
	}
	if !filter.From.IsZero() {
		add("start_time >= ", filter.From)
	}
	if !filter.To.IsZero() {
		add("start_time < ", filter.To)
	}

	query := `SELECT id, project_id, workflow_type, start_time, end_time, status,
	       input_params, COALESCE(output_summary, '') AS output_summary,
	       COALESCE(error_message, '') AS error_message
	FROM workflow_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time DESC, id DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))

	var entries []types.WorkflowLogEntry
	if err := l.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list workflow logs: %w", err)
	}
	return entries, nil
}
