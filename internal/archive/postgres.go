package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"

	"github.com/danpasecinic/harvester/internal/types"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresStore is a PostgreSQL implementation of Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL archive and applies migrations
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &PostgresStore{db: db}

	if err := store.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// runMigrations applies database schema using goose
func (s *PostgresStore) runMigrations() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Save upserts sessions in a single transaction
func (s *PostgresStore) Save(ctx context.Context, sessions []types.ArchivedSession) error {
	if len(sessions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO archived_sessions (session_id, task_id, job_type, requester_id, config, priority, status,
		                               items_found, items_processed, pages_processed, created_at, start_time,
		                               end_time, error_message, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			items_found = EXCLUDED.items_found,
			items_processed = EXCLUDED.items_processed,
			pages_processed = EXCLUDED.pages_processed,
			end_time = EXCLUDED.end_time,
			error_message = EXCLUDED.error_message,
			archived_at = EXCLUDED.archived_at
	`

	for _, sess := range sessions {
		var configJSON []byte
		if sess.Config != nil {
			configJSON, err = json.Marshal(sess.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config of session %s: %w", sess.SessionID, err)
			}
		}

		_, err = tx.ExecContext(
			ctx,
			query,
			sess.SessionID,
			sess.TaskID,
			sess.JobType,
			sess.RequesterID,
			nullBytes(configJSON),
			sess.Priority.String(),
			sess.Status,
			sess.ItemsFound,
			sess.ItemsProcessed,
			sess.PagesProcessed,
			sess.CreatedAt,
			sess.StartTime,
			sess.EndTime,
			nullString(sess.ErrorMessage),
			sess.ArchivedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session %s: %w", sess.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}

	return nil
}

// List returns matching sessions, most recently archived first
func (s *PostgresStore) List(ctx context.Context, q Query) ([]types.ArchivedSession, error) {
	query := `
		SELECT session_id, task_id, job_type, requester_id, config, priority, status,
		       items_found, items_processed, pages_processed, created_at, start_time,
		       end_time, error_message, archived_at
		FROM archived_sessions
		WHERE ($1::text = '' OR requester_id = $1) AND ($2::text = '' OR job_type = $2)
		ORDER BY archived_at DESC, session_id DESC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, q.RequesterID, q.JobType, q.limit())
	if err != nil {
		return nil, fmt.Errorf("failed to query archived sessions: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	sessions := make([]types.ArchivedSession, 0)
	for rows.Next() {
		var sess types.ArchivedSession
		var configJSON []byte
		var priority string
		var errorMsg sql.NullString

		err := rows.Scan(
			&sess.SessionID,
			&sess.TaskID,
			&sess.JobType,
			&sess.RequesterID,
			&configJSON,
			&priority,
			&sess.Status,
			&sess.ItemsFound,
			&sess.ItemsProcessed,
			&sess.PagesProcessed,
			&sess.CreatedAt,
			&sess.StartTime,
			&sess.EndTime,
			&errorMsg,
			&sess.ArchivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived session: %w", err)
		}

		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &sess.Config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
		if p, err := types.ParsePriority(priority); err == nil {
			sess.Priority = p
		}
		if errorMsg.Valid {
			sess.ErrorMessage = errorMsg.String
		}

		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate archived sessions: %w", err)
	}

	return sessions, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}
