package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/worldchanger/management-systems/internal/model"
)

// sqliteTimeLayout keeps nine fractional digits so stored timestamps sort
// correctly as text. Reads accept any RFC 3339 precision.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const taskColumns = `id, content, status, priority, owner, section, epic, area, occurrence_count, position, created_at, updated_at, completed_at`

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db   *sql.DB
	q    sqlQuerier
	inTx bool
	now  func() time.Time
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db, q: db, now: utcNow}, nil
}

// SQLiteDSN turns a file path into a go-sqlite3 DSN with foreign keys and a
// busy timeout enabled on every pooled connection.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

// OpenSQLite opens the database file, applies pending migrations and returns
// a ready repository.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; transactions hold the only connection.
	db.SetMaxOpenConns(1)
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.inTx {
		return errors.New("storage: close called inside transaction")
	}
	return r.db.Close()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	scoped := &SQLiteRepository{db: r.db, q: tx, inTx: true, now: r.now}
	if err := fn(scoped); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, in model.Task) (int64, error) {
	in = stampNew(in, r.now())
	if err := validateTask(in); err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO kanban_tasks (content, status, priority, owner, section, epic, area, occurrence_count, position, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Content, in.Status, in.Priority, in.Owner, in.Section, nullString(in.Epic), in.Area,
		in.OccurrenceCount, in.Position, mustTime(in.CreatedAt), mustTime(in.UpdatedAt), nullTime(in.CompletedAt),
	)
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id int64) (model.Task, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM kanban_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, err
	}
	tags, err := r.loadTags(ctx, []int64{task.ID})
	if err != nil {
		return model.Task{}, err
	}
	task.Tags = tags[task.ID]
	return task, nil
}

func (r *SQLiteRepository) UpdateTask(ctx context.Context, in model.Task) error {
	if err := validateTask(in); err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE kanban_tasks
		SET content = ?, status = ?, priority = ?, owner = ?, section = ?, epic = ?, area = ?,
			occurrence_count = ?, position = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`,
		in.Content, in.Status, in.Priority, in.Owner, in.Section, nullString(in.Epic), in.Area,
		in.OccurrenceCount, in.Position, mustTime(r.now()), nullTime(in.CompletedAt), in.ID,
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM kanban_tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM kanban_tasks`
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if filter.Section != "" {
		clauses = append(clauses, "section = ?")
		args = append(args, filter.Section)
	}
	if filter.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Epic != "" {
		clauses = append(clauses, "epic = ?")
		args = append(args, filter.Epic)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY ` + sectionOrder + `, position ASC, created_at DESC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	out, err := r.queryTasks(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(out))
	for i, t := range out {
		ids[i] = t.ID
	}
	tags, err := r.loadTags(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
	}
	return out, nil
}

func (r *SQLiteRepository) FindByContentAndSection(ctx context.Context, content string, section model.Section) (model.Task, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM kanban_tasks
		WHERE content = ? AND section = ?
		ORDER BY id ASC LIMIT 1`, content, section)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, err
	}
	return task, nil
}

func (r *SQLiteRepository) NextPosition(ctx context.Context, section model.Section) (int, error) {
	var next int
	err := r.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM kanban_tasks WHERE section = ?`, section).Scan(&next)
	return next, err
}

func (r *SQLiteRepository) AppendHistory(ctx context.Context, in model.HistoryEntry) (int64, error) {
	if in.ChangedAt.IsZero() {
		in.ChangedAt = r.now()
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO kanban_task_history (task_id, action, old_value, new_value, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.TaskID, in.Action, nullString(in.OldValue), nullString(in.NewValue), in.ChangedBy, mustTime(in.ChangedAt),
	)
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) ListHistory(ctx context.Context, taskID int64) ([]model.HistoryEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, task_id, action, old_value, new_value, changed_by, changed_at
		FROM kanban_task_history WHERE task_id = ?
		ORDER BY changed_at DESC, id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var item model.HistoryEntry
		var action, changed string
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&item.ID, &item.TaskID, &action, &oldValue, &newValue, &item.ChangedBy, &changed); err != nil {
			return nil, err
		}
		changedAt, err := parseRequiredTime(changed)
		if err != nil {
			return nil, err
		}
		item.Action = model.HistoryAction(action)
		item.OldValue = stringPtr(oldValue)
		item.NewValue = stringPtr(newValue)
		item.ChangedAt = changedAt
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddTag(ctx context.Context, taskID int64, name, color string) (model.Tag, error) {
	var tag model.Tag
	err := r.WithTx(ctx, func(repo Repository) error {
		tx := repo.(*SQLiteRepository)
		var exists int
		if err := tx.q.QueryRowContext(ctx, `SELECT 1 FROM kanban_tasks WHERE id = ?`, taskID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.q.ExecContext(ctx, `
			INSERT INTO kanban_tags (name, color, created_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO NOTHING`, name, tagColor(color), mustTime(tx.now())); err != nil {
			return mapSQLiteError(err)
		}
		var created string
		if err := tx.q.QueryRowContext(ctx, `SELECT id, name, color, created_at FROM kanban_tags WHERE name = ?`, name).
			Scan(&tag.ID, &tag.Name, &tag.Color, &created); err != nil {
			return err
		}
		createdAt, err := parseRequiredTime(created)
		if err != nil {
			return err
		}
		tag.CreatedAt = createdAt
		_, err = tx.q.ExecContext(ctx, `
			INSERT INTO kanban_task_tags (task_id, tag_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, taskID, tag.ID)
		return mapSQLiteError(err)
	})
	return tag, err
}

func (r *SQLiteRepository) RemoveTag(ctx context.Context, taskID int64, name string) error {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM kanban_task_tags
		WHERE task_id = ? AND tag_id = (SELECT id FROM kanban_tags WHERE name = ?)`, taskID, name)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListTags(ctx context.Context) ([]model.Tag, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT t.id, t.name, t.color, t.created_at, COUNT(tt.task_id)
		FROM kanban_tags t
		LEFT JOIN kanban_task_tags tt ON tt.tag_id = t.id
		GROUP BY t.id, t.name, t.color, t.created_at
		ORDER BY t.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Tag, 0)
	for rows.Next() {
		var tag model.Tag
		var created string
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &created, &tag.TaskCount); err != nil {
			return nil, err
		}
		createdAt, err := parseRequiredTime(created)
		if err != nil {
			return nil, err
		}
		tag.CreatedAt = createdAt
		out = append(out, tag)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SectionStats(ctx context.Context) ([]model.SectionStats, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT section, COUNT(*),
			SUM(CASE WHEN priority = 'high' THEN 1 ELSE 0 END),
			SUM(CASE WHEN priority = 'medium' THEN 1 ELSE 0 END),
			SUM(CASE WHEN priority = 'low' THEN 1 ELSE 0 END)
		FROM kanban_tasks GROUP BY section`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, index := sectionStatsSkeleton()
	for rows.Next() {
		var section string
		var s model.SectionStats
		if err := rows.Scan(&section, &s.Count, &s.HighPriority, &s.MediumPriority, &s.LowPriority); err != nil {
			return nil, err
		}
		if i, ok := index[model.Section(section)]; ok {
			s.Section = out[i].Section
			out[i] = s
		}
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadTags(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT tt.task_id, t.name FROM kanban_task_tags tt
		JOIN kanban_tags t ON t.id = tt.tag_id
		WHERE tt.task_id IN (`+placeholders(len(ids))+`)
		ORDER BY t.name ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var taskID int64
		var name string
		if err := rows.Scan(&taskID, &name); err != nil {
			return nil, err
		}
		out[taskID] = append(out[taskID], name)
	}
	return out, rows.Err()
}

func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	} else if offset > 0 {
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var out model.Task
	var status, priority, owner, section string
	var epic sql.NullString
	var created, updated string
	var completed sql.NullString
	if err := s.Scan(&out.ID, &out.Content, &status, &priority, &owner, &section, &epic, &out.Area,
		&out.OccurrenceCount, &out.Position, &created, &updated, &completed); err != nil {
		return model.Task{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return model.Task{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return model.Task{}, err
	}
	completedAt, err := parseNullableTime(completed)
	if err != nil {
		return model.Task{}, err
	}
	out.Status = model.Status(status)
	out.Priority = model.Priority(priority)
	out.Owner = model.Owner(owner)
	out.Section = model.Section(section)
	out.Epic = stringPtr(epic)
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	out.CompletedAt = completedAt
	return out, nil
}
