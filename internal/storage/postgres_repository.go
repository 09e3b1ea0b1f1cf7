package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worldchanger/management-systems/internal/model"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	pool *pgxpool.Pool
	q    pgQuerier
	inTx bool
}

func NewPostgresRepository(pool *pgxpool.Pool) (*PostgresRepository, error) {
	if pool == nil {
		return nil, errors.New("storage: nil pool")
	}
	return &PostgresRepository{pool: pool, q: pool}, nil
}

// OpenPostgres connects to dsn, applies pending migrations and returns a
// ready repository.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := MigratePostgresUp(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewPostgresRepository(pool)
}

func (r *PostgresRepository) Close() error {
	if r.inTx {
		return errors.New("storage: close called inside transaction")
	}
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PostgresRepository{pool: r.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateTask(ctx context.Context, in model.Task) (int64, error) {
	in = stampNew(in, utcNow())
	if err := validateTask(in); err != nil {
		return 0, err
	}
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO kanban_tasks (content, status, priority, owner, section, epic, area, occurrence_count, position, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		in.Content, string(in.Status), string(in.Priority), string(in.Owner), string(in.Section), in.Epic, in.Area,
		in.OccurrenceCount, in.Position, in.CreatedAt, in.UpdatedAt, in.CompletedAt,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (r *PostgresRepository) GetTask(ctx context.Context, id int64) (model.Task, error) {
	row := r.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM kanban_tasks WHERE id = $1`, id)
	task, err := scanPgTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

func (r *PostgresRepository) UpdateTask(ctx context.Context, in model.Task) error {
	if err := validateTask(in); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE kanban_tasks
		SET content = $1, status = $2, priority = $3, owner = $4, section = $5, epic = $6, area = $7,
			occurrence_count = $8, position = $9, updated_at = now(), completed_at = $10
		WHERE id = $11`,
		in.Content, string(in.Status), string(in.Priority), string(in.Owner), string(in.Section), in.Epic, in.Area,
		in.OccurrenceCount, in.Position, in.CompletedAt, in.ID,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteTask(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM kanban_tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM kanban_tasks`
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 6)
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.Section != "" {
		add("section", string(filter.Section))
	}
	if filter.Priority != "" {
		add("priority", string(filter.Priority))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.Epic != "" {
		add("epic", filter.Epic)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY ` + sectionOrder + `, position ASC, created_at DESC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out, err := collectPgTasks(rows)
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

func (r *PostgresRepository) FindByContentAndSection(ctx context.Context, content string, section model.Section) (model.Task, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM kanban_tasks
		WHERE content = $1 AND section = $2
		ORDER BY id ASC LIMIT 1`, content, string(section))
	task, err := scanPgTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, err
	}
	return task, nil
}

func (r *PostgresRepository) NextPosition(ctx context.Context, section model.Section) (int, error) {
	var next int
	err := r.q.QueryRow(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM kanban_tasks WHERE section = $1`, string(section)).Scan(&next)
	return next, err
}

func (r *PostgresRepository) AppendHistory(ctx context.Context, in model.HistoryEntry) (int64, error) {
	if in.ChangedAt.IsZero() {
		in.ChangedAt = utcNow()
	}
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO kanban_task_history (task_id, action, old_value, new_value, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		in.TaskID, string(in.Action), in.OldValue, in.NewValue, in.ChangedBy, in.ChangedAt,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (r *PostgresRepository) ListHistory(ctx context.Context, taskID int64) ([]model.HistoryEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, task_id, action, old_value, new_value, changed_by, changed_at
		FROM kanban_task_history WHERE task_id = $1
		ORDER BY changed_at DESC, id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var item model.HistoryEntry
		var action string
		if err := rows.Scan(&item.ID, &item.TaskID, &action, &item.OldValue, &item.NewValue, &item.ChangedBy, &item.ChangedAt); err != nil {
			return nil, err
		}
		item.Action = model.HistoryAction(action)
		item.ChangedAt = item.ChangedAt.UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) AddTag(ctx context.Context, taskID int64, name, color string) (model.Tag, error) {
	var tag model.Tag
	err := r.WithTx(ctx, func(repo Repository) error {
		tx := repo.(*PostgresRepository)
		var exists int
		if err := tx.q.QueryRow(ctx, `SELECT 1 FROM kanban_tasks WHERE id = $1`, taskID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.q.Exec(ctx, `
			INSERT INTO kanban_tags (name, color) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING`, name, tagColor(color)); err != nil {
			return mapPgError(err)
		}
		if err := tx.q.QueryRow(ctx, `SELECT id, name, color, created_at FROM kanban_tags WHERE name = $1`, name).
			Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedAt); err != nil {
			return err
		}
		tag.CreatedAt = tag.CreatedAt.UTC()
		_, err := tx.q.Exec(ctx, `
			INSERT INTO kanban_task_tags (task_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, taskID, tag.ID)
		return mapPgError(err)
	})
	return tag, err
}

func (r *PostgresRepository) RemoveTag(ctx context.Context, taskID int64, name string) error {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM kanban_task_tags
		WHERE task_id = $1 AND tag_id = (SELECT id FROM kanban_tags WHERE name = $2)`, taskID, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListTags(ctx context.Context) ([]model.Tag, error) {
	rows, err := r.q.Query(ctx, `
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
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedAt, &tag.TaskCount); err != nil {
			return nil, err
		}
		tag.CreatedAt = tag.CreatedAt.UTC()
		out = append(out, tag)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SectionStats(ctx context.Context) ([]model.SectionStats, error) {
	rows, err := r.q.Query(ctx, `
		SELECT section, COUNT(*),
			COUNT(*) FILTER (WHERE priority = 'high'),
			COUNT(*) FILTER (WHERE priority = 'medium'),
			COUNT(*) FILTER (WHERE priority = 'low')
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

func (r *PostgresRepository) loadTags(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT tt.task_id, t.name FROM kanban_task_tags tt
		JOIN kanban_tags t ON t.id = tt.tag_id
		WHERE tt.task_id = ANY($1)
		ORDER BY t.name ASC`, ids)
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

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	// Class 23 is integrity constraint violation.
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%w: %s (%s)", ErrConstraint, pgErr.Message, pgErr.ConstraintName)
	}
	return err
}

func collectPgTasks(rows pgx.Rows) ([]model.Task, error) {
	defer rows.Close()
	out := make([]model.Task, 0)
	for rows.Next() {
		task, err := scanPgTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func scanPgTask(s scanner) (model.Task, error) {
	var out model.Task
	var status, priority, owner, section string
	var completed *time.Time
	if err := s.Scan(&out.ID, &out.Content, &status, &priority, &owner, &section, &out.Epic, &out.Area,
		&out.OccurrenceCount, &out.Position, &out.CreatedAt, &out.UpdatedAt, &completed); err != nil {
		return model.Task{}, err
	}
	out.Status = model.Status(status)
	out.Priority = model.Priority(priority)
	out.Owner = model.Owner(owner)
	out.Section = model.Section(section)
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	if completed != nil {
		utc := completed.UTC()
		out.CompletedAt = &utc
	}
	return out, nil
}
