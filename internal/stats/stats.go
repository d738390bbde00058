// Package stats computes aggregate statistics over lists and their tasks.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/db"
	"github.com/marcus/trellis/internal/tasks"
)

// NoStatus is the breakdown key for open tasks without a status.
const NoStatus = "(no status)"

// ListStats summarizes one list. Counts other than Tasks and Archived cover
// open (unarchived) tasks only.
type ListStats struct {
	ListID          string         `json:"list_id"`
	Name            string         `json:"name"`
	Tasks           int            `json:"tasks"`
	Archived        int            `json:"archived"`
	Overdue         int            `json:"overdue"`
	Unassigned      int            `json:"unassigned"`
	Blocked         int            `json:"blocked"`
	StatusBreakdown map[string]int `json:"status_breakdown,omitempty"`
}

// Open returns the number of unarchived tasks.
func (l ListStats) Open() int {
	return l.Tasks - l.Archived
}

// StatsResult holds all computed statistics, JSON-serializable.
type StatsResult struct {
	Lists             []ListStats `json:"lists"`
	TotalTasks        int         `json:"total_tasks"`
	TotalArchived     int         `json:"total_archived"`
	TotalOverdue      int         `json:"total_overdue"`
	TotalBlocked      int         `json:"total_blocked"`
	Dependencies      int         `json:"dependencies"`
	CustomFieldValues int         `json:"custom_field_values"`
	ComputedAt        time.Time   `json:"computed_at"`
}

// Stats computes statistics from the task database.
type Stats struct {
	db      *db.DB
	sb      sq.StatementBuilderType
	nowFunc func() time.Time
}

// New creates a Stats instance.
func New(database *db.DB) *Stats {
	return &Stats{
		db:      database,
		sb:      sq.StatementBuilder.PlaceholderFormat(sq.Question),
		nowFunc: time.Now,
	}
}

// Compute aggregates every list, or only listID when it is non-empty.
func (s *Stats) Compute(ctx context.Context, listID string) (*StatsResult, error) {
	now := s.nowFunc()
	result := &StatsResult{ComputedAt: now}

	lists, err := s.computeLists(ctx, listID, tasks.DateOf(now).String())
	if err != nil {
		return nil, err
	}
	if listID != "" && len(lists) == 0 {
		return nil, apperr.NotFound("list", listID)
	}
	if err := s.computeStatusBreakdown(ctx, listID, lists); err != nil {
		return nil, err
	}
	result.Lists = lists

	for _, l := range lists {
		result.TotalTasks += l.Tasks
		result.TotalArchived += l.Archived
		result.TotalOverdue += l.Overdue
		result.TotalBlocked += l.Blocked
	}

	if result.Dependencies, err = s.count(ctx, "task_dependencies d", "d.dependent_id", listID); err != nil {
		return nil, err
	}
	if result.CustomFieldValues, err = s.count(ctx, "custom_field_values v", "v.task_id", listID); err != nil {
		return nil, err
	}
	return result, nil
}

// open wraps an aggregate over open tasks so empty lists yield zero.
func open(cond string) string {
	return "COALESCE(SUM(CASE WHEN t.archived = 0 AND " + cond + " THEN 1 ELSE 0 END), 0)"
}

func (s *Stats) computeLists(ctx context.Context, listID, today string) ([]ListStats, error) {
	q := s.sb.Select("l.id", "l.name", "COUNT(t.id)", "COALESCE(SUM(t.archived), 0)").
		Column(sq.Expr(open("t.due_date < ?"), today)).
		Column(open("NOT EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.id)")).
		Column(open("EXISTS (SELECT 1 FROM task_dependencies d JOIN tasks b ON b.id = d.dependency_id WHERE d.dependent_id = t.id AND b.archived = 0)")).
		From("lists l").
		LeftJoin("tasks t ON t.list_id = l.id").
		GroupBy("l.id", "l.name").
		OrderBy("l.name", "l.id")
	if listID != "" {
		q = q.Where(sq.Eq{"l.id": listID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list stats query: %w", err)
	}
	rows, err := s.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying list stats: %w", err)
	}
	defer rows.Close()

	var lists []ListStats
	for rows.Next() {
		var l ListStats
		if err := rows.Scan(&l.ListID, &l.Name, &l.Tasks, &l.Archived, &l.Overdue, &l.Unassigned, &l.Blocked); err != nil {
			return nil, fmt.Errorf("scanning list stats: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (s *Stats) computeStatusBreakdown(ctx context.Context, listID string, lists []ListStats) error {
	q := s.sb.Select("t.list_id", "COALESCE(st.name, '')", "COUNT(*)").
		From("tasks t").
		LeftJoin("statuses st ON st.id = t.status_id").
		Where("t.archived = 0").
		GroupBy("t.list_id", "st.name")
	if listID != "" {
		q = q.Where(sq.Eq{"t.list_id": listID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building status breakdown query: %w", err)
	}
	rows, err := s.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying status breakdown: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int, len(lists))
	for i, l := range lists {
		index[l.ListID] = i
	}
	for rows.Next() {
		var list, status string
		var n int
		if err := rows.Scan(&list, &status, &n); err != nil {
			return fmt.Errorf("scanning status breakdown: %w", err)
		}
		i, ok := index[list]
		if !ok {
			continue
		}
		if status == "" {
			status = NoStatus
		}
		if lists[i].StatusBreakdown == nil {
			lists[i].StatusBreakdown = make(map[string]int)
		}
		lists[i].StatusBreakdown[status] += n
	}
	return rows.Err()
}

// count counts rows of table, scoped through taskColumn to listID's tasks.
func (s *Stats) count(ctx context.Context, table, taskColumn, listID string) (int, error) {
	q := s.sb.Select("COUNT(*)").From(table)
	if listID != "" {
		q = q.Join("tasks t ON t.id = " + taskColumn).Where(sq.Eq{"t.list_id": listID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int
	if err := s.db.SQL().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// SortedStatuses returns the breakdown keys by descending count, then name.
func (l ListStats) SortedStatuses() []string {
	keys := make([]string, 0, len(l.StatusBreakdown))
	for k := range l.StatusBreakdown {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := l.StatusBreakdown[keys[i]], l.StatusBreakdown[keys[j]]
		if a != b {
			return a > b
		}
		return keys[i] < keys[j]
	})
	return keys
}
