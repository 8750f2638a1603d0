package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/tasksync/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS providers (
			id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 1,
			url TEXT NOT NULL,
			resource TEXT NOT NULL,
			component TEXT NOT NULL DEFAULT 'TODO',
			auth TEXT NOT NULL DEFAULT 'basic',
			username TEXT DEFAULT '',
			password TEXT DEFAULT '',
			bearer_token TEXT DEFAULT '',
			category_filter TEXT DEFAULT '',
			write_back INTEGER DEFAULT 0,
			transition INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			notes TEXT DEFAULT '',
			due_with_time DATETIME,
			due_day TEXT DEFAULT '',
			time_estimate INTEGER DEFAULT 0,
			done_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			issue_id TEXT DEFAULT '',
			issue_provider_id TEXT DEFAULT '',
			issue_last_updated INTEGER DEFAULT 0,
			issue_was_updated INTEGER DEFAULT 0,
			FOREIGN KEY (issue_provider_id) REFERENCES providers(id) ON DELETE SET NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_done_at ON tasks(done_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_issue ON tasks(issue_provider_id, issue_id)`,
		// Sub-task linkage
		`ALTER TABLE tasks ADD COLUMN related_to TEXT DEFAULT ''`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Providers ===

const providerColumns = `id, enabled, url, resource, component, auth, username, password, bearer_token, category_filter, write_back, transition`

type scanner interface {
	Scan(dest ...any) error
}

func scanProvider(row scanner) (*domain.ProviderConfig, error) {
	p := &domain.ProviderConfig{}
	err := row.Scan(&p.ID, &p.Enabled, &p.URL, &p.ResourceName, &p.ComponentType, &p.AuthType,
		&p.Username, &p.Password, &p.BearerToken, &p.CategoryFilter, &p.WriteBack, &p.TransitionEnabled)
	return p, err
}

// SaveProvider inserts the provider or replaces the one with the same ID
func (s *Storage) SaveProvider(p *domain.ProviderConfig) error {
	_, err := s.db.Exec(
		`INSERT INTO providers (`+providerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled, url = excluded.url, resource = excluded.resource,
			component = excluded.component, auth = excluded.auth, username = excluded.username,
			password = excluded.password, bearer_token = excluded.bearer_token,
			category_filter = excluded.category_filter, write_back = excluded.write_back,
			transition = excluded.transition`,
		p.ID, p.Enabled, p.URL, p.ResourceName, p.ComponentType, p.AuthType,
		p.Username, p.Password, p.BearerToken, p.CategoryFilter, p.WriteBack, p.TransitionEnabled,
	)
	return err
}

func (s *Storage) GetProvider(id string) (*domain.ProviderConfig, error) {
	p, err := scanProvider(s.db.QueryRow(`SELECT `+providerColumns+` FROM providers WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListProviders returns providers ordered by ID
func (s *Storage) ListProviders(enabledOnly bool) ([]*domain.ProviderConfig, error) {
	query := `SELECT ` + providerColumns + ` FROM providers`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []*domain.ProviderConfig
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (s *Storage) SetProviderEnabled(id string, enabled bool) error {
	_, err := s.db.Exec(`UPDATE providers SET enabled = ? WHERE id = ?`, enabled, id)
	return err
}

func (s *Storage) DeleteProvider(id string) error {
	_, err := s.db.Exec(`DELETE FROM providers WHERE id = ?`, id)
	return err
}

// === Tasks ===

const taskColumns = `id, title, notes, due_with_time, due_day, time_estimate, related_to, done_at, created_at,
	issue_id, COALESCE(issue_provider_id, ''), issue_last_updated, issue_was_updated`

func scanTask(row scanner) (*domain.Task, error) {
	t := &domain.Task{}
	var estimateMs int64
	err := row.Scan(&t.ID, &t.Title, &t.Notes, &t.DueWithTime, &t.DueDay, &estimateMs, &t.RelatedTo, &t.DoneAt, &t.CreatedAt,
		&t.IssueID, &t.IssueProviderID, &t.IssueLastUpdated, &t.IssueWasUpdated)
	t.TimeEstimate = time.Duration(estimateMs) * time.Millisecond
	return t, err
}

func (s *Storage) CreateTask(t *domain.Task) error {
	res, err := s.db.Exec(
		`INSERT INTO tasks (title, notes, due_with_time, due_day, time_estimate, related_to, issue_id, issue_provider_id, issue_last_updated, issue_was_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Notes, t.DueWithTime, t.DueDay, t.TimeEstimate.Milliseconds(), t.RelatedTo,
		t.IssueID, nullString(t.IssueProviderID), t.IssueLastUpdated, t.IssueWasUpdated,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = id
	t.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetTask(id int64) (*domain.Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTaskByIssue returns the task linked to a remote item
func (s *Storage) GetTaskByIssue(providerID, issueID string) (*domain.Task, error) {
	if issueID == "" {
		return nil, nil
	}
	t, err := scanTask(s.db.QueryRow(
		`SELECT `+taskColumns+` FROM tasks WHERE issue_provider_id = ? AND issue_id = ?`,
		providerID, issueID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTasks returns local tasks, open ones first by due date
func (s *Storage) ListTasks(includeDone bool) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if !includeDone {
		query += ` WHERE done_at IS NULL`
	}
	query += ` ORDER BY done_at IS NOT NULL, due_with_time IS NULL, due_with_time, created_at DESC`
	return s.queryTasks(query)
}

// ListLinkedTasks returns the open tasks linked to a provider
func (s *Storage) ListLinkedTasks(providerID string) ([]*domain.Task, error) {
	return s.queryTasks(
		`SELECT `+taskColumns+` FROM tasks
		 WHERE issue_provider_id = ? AND issue_id != '' AND done_at IS NULL
		 ORDER BY id`,
		providerID,
	)
}

// ListIssueIDs returns every remote id linked to a provider, done or not
func (s *Storage) ListIssueIDs(providerID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT issue_id FROM tasks WHERE issue_provider_id = ? AND issue_id != ''`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Storage) queryTasks(query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Storage) UpdateTask(t *domain.Task) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET title = ?, notes = ?, due_with_time = ?, due_day = ?, time_estimate = ?, related_to = ?, done_at = ?,
			issue_last_updated = ?, issue_was_updated = ?
		 WHERE id = ?`,
		t.Title, t.Notes, t.DueWithTime, t.DueDay, t.TimeEstimate.Milliseconds(), t.RelatedTo, t.DoneAt,
		t.IssueLastUpdated, t.IssueWasUpdated, t.ID,
	)
	return err
}

func (s *Storage) MarkTaskDone(id int64) error {
	_, err := s.db.Exec(`UPDATE tasks SET done_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *Storage) MarkTaskUndone(id int64) error {
	_, err := s.db.Exec(`UPDATE tasks SET done_at = NULL WHERE id = ?`, id)
	return err
}

func (s *Storage) DeleteTask(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// nullString keeps unlinked tasks out of the providers foreign key
func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
