package projectdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"buildrag/pkg/types"
)

// GetProject loads one project row.
func (s *Store) GetProject(ctx context.Context, projectID string) (*types.Project, error) {
	var p types.Project
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, project_type, status, budget, progress, start_date, end_date
		FROM projects WHERE id = $1`, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	return &p, nil
}

// ListTasks loads all tasks of a project.
func (s *Store) ListTasks(ctx context.Context, projectID string) ([]types.Task, error) {
	var tasks []types.Task
	err := s.db.SelectContext(ctx, &tasks, `
		SELECT id, project_id, name, status, planned_progress, actual_progress,
		       is_critical, planned_days, start_date, end_date
		FROM tasks WHERE project_id = $1 ORDER BY start_date, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks of %s: %w", projectID, err)
	}
	return tasks, nil
}

// ListCosts loads all cost rows of a project.
func (s *Store) ListCosts(ctx context.Context, projectID string) ([]types.Cost, error) {
	var costs []types.Cost
	err := s.db.SelectContext(ctx, &costs, `
		SELECT id, project_id, category, budget_amount, actual_amount, recorded_at
		FROM costs WHERE project_id = $1 ORDER BY recorded_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load costs of %s: %w", projectID, err)
	}
	return costs, nil
}

// ListSafetyRecords loads inspection rows of a project since the given time.
func (s *Store) ListSafetyRecords(ctx context.Context, projectID string, since time.Time) ([]types.SafetyRecord, error) {
	var records []types.SafetyRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, project_id, check_date, passed, defect_type, defect_level, closed, closed_at
		FROM safety_records
		WHERE project_id = $1 AND check_date >= $2
		ORDER BY check_date, id`, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load safety records of %s: %w", projectID, err)
	}
	return records, nil
}

// ListQualityReports loads quality inspection rows of a project.
func (s *Store) ListQualityReports(ctx context.Context, projectID string) ([]types.QualityReport, error) {
	var reports []types.QualityReport
	err := s.db.SelectContext(ctx, &reports, `
		SELECT id, project_id, report_date, pass_rate, summary
		FROM quality_reports WHERE project_id = $1 ORDER BY report_date, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quality reports of %s: %w", projectID, err)
	}
	return reports, nil
}

// PeerProjects loads completed projects of the same type, excluding the
// project itself, for historical cost comparison.
func (s *Store) PeerProjects(ctx context.Context, projectType, excludeID string, limit int) ([]types.Project, error) {
	if limit <= 0 {
		limit = 10
	}
	var peers []types.Project
	err := s.db.SelectContext(ctx, &peers, `
		SELECT id, name, project_type, status, budget, progress, start_date, end_date
		FROM projects
		WHERE project_type = $1 AND id <> $2 AND status = 'completed'
		ORDER BY end_date DESC LIMIT $3`, projectType, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load peer projects: %w", err)
	}
	return peers, nil
}
