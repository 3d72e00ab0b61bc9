package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/ambassador-portal/internal/model"
)

// ErrNotFound is returned when a cached row does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements the Store interface using a SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations. The DSN
// ":memory:" gives a cache that lives only as long as the process.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every pooled connection to ":memory:" would see its own empty
	// database, so pin the pool to a single connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// ReplaceTasks swaps the cached task set for tasks in one transaction.
func (s *SQLiteStore) ReplaceTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clearing tasks: %w", err)
	}

	if err := upsertTasks(ctx, tx, tasks); err != nil {
		return err
	}

	return tx.Commit()
}

// UpsertTask inserts or replaces a single cached task.
func (s *SQLiteStore) UpsertTask(ctx context.Context, task model.Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTasks(ctx, tx, []model.Task{task}); err != nil {
		return err
	}

	return tx.Commit()
}

func upsertTasks(ctx context.Context, tx *sqlx.Tx, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	const query = `
		INSERT OR REPLACE INTO tasks (
			id, title, due_unix, status, raw_data, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range tasks {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshaling task %s: %w", t.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			t.ID, t.Title, t.DueDate.Unix(), string(t.Status), string(raw), now,
		)
		if err != nil {
			return fmt.Errorf("upserting task %s: %w", t.ID, err)
		}
	}

	return nil
}

// GetTasks retrieves cached tasks matching the filter, ordered by
// deadline then title.
func (s *SQLiteStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var conditions []string
	var args []interface{}

	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	switch filter.Window {
	case WindowActive:
		conditions = append(conditions, "due_unix > ?")
		args = append(args, now.Unix())
	case WindowHistory:
		conditions = append(conditions, "due_unix <= ?")
		args = append(args, now.Unix())
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(*filter.Query)+"%")
	}

	query := "SELECT raw_data FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY due_unix ASC, title ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var raws []string
	if err := s.db.SelectContext(ctx, &raws, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(raws))
	for _, raw := range raws {
		var t model.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("unmarshaling cached task: %w", err)
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}

// GetTaskByID retrieves a single cached task by its ID.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, "SELECT raw_data FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}

	var t model.Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("unmarshaling task %s: %w", id, err)
	}
	return &t, nil
}

// ReplaceNotifications swaps the cached notification set, keeping the
// server order in the position column.
func (s *SQLiteStore) ReplaceNotifications(ctx context.Context, ns []model.Notification) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing notifications: %w", err)
	}

	for i, n := range ns {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO notifications (id, position, kind, title, body, read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, i, string(n.Kind), n.Title, n.Body, boolToInt(n.Read), n.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting notification %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// GetNotifications retrieves the cached notifications in server order.
func (s *SQLiteStore) GetNotifications(ctx context.Context) ([]model.Notification, error) {
	var ns []model.Notification
	err := s.db.SelectContext(ctx, &ns, `
		SELECT id, kind, title, body, read, created_at
		FROM notifications ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	return ns, nil
}

// SetNotificationsRead updates the read flag of the given notifications.
func (s *SQLiteStore) SetNotificationsRead(ctx context.Context, ids []string, read bool) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In("UPDATE notifications SET read = ? WHERE id IN (?)", boolToInt(read), ids)
	if err != nil {
		return fmt.Errorf("building read update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("updating notification read flags: %w", err)
	}
	return nil
}

// RecordPending inserts a pending confirmation into the ledger. If the
// confirmation has no ID, a new UUID is generated.
func (s *SQLiteStore) RecordPending(ctx context.Context, c model.Confirmation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	ids, err := json.Marshal(c.NotificationIDs)
	if err != nil {
		return fmt.Errorf("marshaling notification ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO confirmations (id, kind, notification_ids, state, error, created_at)
		VALUES (?, ?, ?, ?, '', ?)`,
		c.ID, string(c.Kind), string(ids), string(model.ConfirmationPending), c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording confirmation %s: %w", c.ID, err)
	}
	return nil
}

// ResolveConfirmation moves a ledger entry to its final state.
func (s *SQLiteStore) ResolveConfirmation(
	ctx context.Context,
	id string,
	state model.ConfirmationState,
	errMsg string,
) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE confirmations SET state = ?, error = ?, resolved_at = ?
		WHERE id = ?`,
		string(state), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("resolving confirmation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("resolving confirmation %s: %w", id, ErrNotFound)
	}
	return nil
}

// confirmationRow is the ledger row shape.
type confirmationRow struct {
	ID              string       `db:"id"`
	Kind            string       `db:"kind"`
	NotificationIDs string       `db:"notification_ids"`
	State           string       `db:"state"`
	Error           string       `db:"error"`
	CreatedAt       time.Time    `db:"created_at"`
	ResolvedAt      sql.NullTime `db:"resolved_at"`
}

// GetConfirmations lists ledger entries, optionally filtered by state,
// oldest first.
func (s *SQLiteStore) GetConfirmations(
	ctx context.Context,
	state *model.ConfirmationState,
) ([]model.Confirmation, error) {
	query := "SELECT * FROM confirmations"
	var args []interface{}
	if state != nil {
		query += " WHERE state = ?"
		args = append(args, string(*state))
	}
	query += " ORDER BY created_at ASC"

	var rows []confirmationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying confirmations: %w", err)
	}

	out := make([]model.Confirmation, 0, len(rows))
	for _, r := range rows {
		c := model.Confirmation{
			ID:        r.ID,
			Kind:      model.ConfirmationKind(r.Kind),
			State:     model.ConfirmationState(r.State),
			Error:     r.Error,
			CreatedAt: r.CreatedAt,
		}
		if err := json.Unmarshal([]byte(r.NotificationIDs), &c.NotificationIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling notification ids for %s: %w", r.ID, err)
		}
		if r.ResolvedAt.Valid {
			t := r.ResolvedAt.Time
			c.ResolvedAt = &t
		}
		out = append(out, c)
	}
	return out, nil
}

// Purge drops every cached row.
func (s *SQLiteStore) Purge(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"tasks", "notifications", "confirmations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("purging %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
