package workflowlog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/pkg/types"
)

func newMockLog(t *testing.T) (*Log, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestStartInsertsRunning(t *testing.T) {
	log, mock := newMockLog(t)
	mock.ExpectQuery(`INSERT INTO workflow_logs`).
		WithArgs("p-1", types.WorkflowRisk, types.WorkflowRunning, `{"historical_days":30}`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := log.Start(context.Background(), "p-1", types.WorkflowRisk, `{"historical_days":30}`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeTruncatesErrorMessage(t *testing.T) {
	log, mock := newMockLog(t)
	long := strings.Repeat("错", 1500)
	mock.ExpectExec(`UPDATE workflow_logs`).
		WithArgs(int64(7), types.WorkflowFailed, "", strings.Repeat("错", 1000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := log.Finalize(context.Background(), 7, types.WorkflowFailed, "", long)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeRejectsNonTerminalStatus(t *testing.T) {
	log, _ := newMockLog(t)
	err := log.Finalize(context.Background(), 7, types.WorkflowRunning, "", "")
	assert.Error(t, err)
}

func TestFinalizeMissingRow(t *testing.T) {
	log, mock := newMockLog(t)
	mock.ExpectExec(`UPDATE workflow_logs`).
		WithArgs(int64(99), types.WorkflowCompleted, "done", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := log.Finalize(context.Background(), 99, types.WorkflowCompleted, "done", "")
	assert.Error(t, err)
}

func TestListAppliesFilters(t *testing.T) {
	log, mock := newMockLog(t)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	start := from.Add(12 * time.Hour)
	mock.ExpectQuery(`SELECT .+ FROM workflow_logs WHERE project_id = \$1 AND workflow_type = \$2 AND start_time >= \$3 ORDER BY start_time DESC, id DESC LIMIT \$4`).
		WithArgs("p-1", types.WorkflowWeekly, from, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "workflow_type", "start_time", "end_time", "status",
			"input_params", "output_summary", "error_message",
		}).AddRow(int64(3), "p-1", "weekly_report", start, nil, "running", "{}", "", ""))

	entries, err := log.List(context.Background(), Filter{
		ProjectID:    "p-1",
		WorkflowType: types.WorkflowWeekly,
		From:         from,
		Limit:        10,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.WorkflowRunning, entries[0].Status)
	assert.Nil(t, entries[0].EndTime)
}
