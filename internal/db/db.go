package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	return &DB{sql: conn}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			ticket     TEXT NOT NULL,
			service    TEXT NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'active',
			started_at INTEGER NOT NULL,
			ended_at   INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create runs: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS run_messages (
			id     INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			agent  TEXT NOT NULL DEFAULT '',
			text   TEXT NOT NULL DEFAULT '',
			kind   TEXT NOT NULL DEFAULT '',
			ts     INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create run_messages: %w", err)
	}

	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_run_messages_run_id ON run_messages(run_id, ts)`); err != nil {
		return fmt.Errorf("index run_messages: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create accounts: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token      TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create refresh_tokens: %w", err)
	}

	return nil
}

func (d *DB) InsertRun(r *Run) error {
	_, err := d.sql.Exec(`
		INSERT INTO runs (id, ticket, service, error_code, status, started_at, ended_at)
		VALUES (?,?,?,?,?,?,?)`,
		r.ID, r.Ticket, r.Service, r.ErrorCode, string(r.Status),
		r.StartedAt.UnixMilli(), endedMilli(r.EndedAt),
	)
	return err
}

func (d *DB) FinishRun(id string, status RunStatus, endedAt time.Time) error {
	_, err := d.sql.Exec("UPDATE runs SET status = ?, ended_at = ? WHERE id = ?",
		string(status), endedAt.UnixMilli(), id)
	return err
}

func (d *DB) GetRun(id string) (*Run, error) {
	row := d.sql.QueryRow(`
		SELECT id, ticket, service, error_code, status, started_at, ended_at
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// LoadRuns returns the most recent runs, newest first.
func (d *DB) LoadRuns(limit int) ([]*Run, error) {
	rows, err := d.sql.Query(`
		SELECT id, ticket, service, error_code, status, started_at, ended_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (d *DB) InsertRunMessage(runID, agent, text, kind string) error {
	_, err := d.sql.Exec(`
		INSERT INTO run_messages (run_id, agent, text, kind, ts) VALUES (?,?,?,?,?)`,
		runID, agent, text, kind, time.Now().UnixMilli(),
	)
	return err
}

func (d *DB) LoadRunMessages(runID string) ([]*RunMessage, error) {
	rows, err := d.sql.Query(`
		SELECT id, run_id, agent, text, kind, ts
		FROM run_messages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []*RunMessage
	for rows.Next() {
		var m RunMessage
		var ts int64
		if err := rows.Scan(&m.ID, &m.RunID, &m.Agent, &m.Text, &m.Kind, &ts); err != nil {
			return nil, err
		}
		m.Ts = time.UnixMilli(ts)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (d *DB) CreateAccount(username, passwordHash string) (*Account, error) {
	acc := &Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	_, err := d.sql.Exec(`
		INSERT INTO accounts (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		acc.ID, acc.Username, acc.PasswordHash, acc.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (d *DB) GetAccountByUsername(username string) (*Account, error) {
	row := d.sql.QueryRow(`
		SELECT id, username, password_hash, created_at
		FROM accounts WHERE username = ?`, username)
	var acc Account
	var createdAt int64
	if err := row.Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &createdAt); err != nil {
		return nil, err
	}
	acc.CreatedAt = time.UnixMilli(createdAt)
	return &acc, nil
}

func (d *DB) GetAccountByID(id string) (*Account, error) {
	row := d.sql.QueryRow(`
		SELECT id, username, password_hash, created_at
		FROM accounts WHERE id = ?`, id)
	var acc Account
	var createdAt int64
	if err := row.Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &createdAt); err != nil {
		return nil, err
	}
	acc.CreatedAt = time.UnixMilli(createdAt)
	return &acc, nil
}

func (d *DB) HasAccounts() (bool, error) {
	var count int
	err := d.sql.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&count)
	return count > 0, err
}

func (d *DB) UpdateAccountPassword(accountID, passwordHash string) error {
	_, err := d.sql.Exec("UPDATE accounts SET password_hash = ? WHERE id = ?",
		passwordHash, accountID)
	return err
}

func (d *DB) CreateRefreshToken(token, accountID string, expiresAt time.Time) error {
	_, err := d.sql.Exec(`
		INSERT INTO refresh_tokens (token, account_id, expires_at, created_at) VALUES (?,?,?,?)`,
		token, accountID, expiresAt.UnixMilli(), time.Now().UnixMilli(),
	)
	return err
}

func (d *DB) GetRefreshToken(token string) (*RefreshToken, error) {
	row := d.sql.QueryRow(`
		SELECT token, account_id, expires_at, created_at
		FROM refresh_tokens WHERE token = ?`, token)
	var rt RefreshToken
	var expiresAt, createdAt int64
	if err := row.Scan(&rt.Token, &rt.AccountID, &expiresAt, &createdAt); err != nil {
		return nil, err
	}
	rt.ExpiresAt = time.UnixMilli(expiresAt)
	rt.CreatedAt = time.UnixMilli(createdAt)
	return &rt, nil
}

func (d *DB) DeleteRefreshToken(token string) error {
	_, err := d.sql.Exec("DELETE FROM refresh_tokens WHERE token = ?", token)
	return err
}

func (d *DB) DeleteRefreshTokensByAccount(accountID string) error {
	_, err := d.sql.Exec("DELETE FROM refresh_tokens WHERE account_id = ?", accountID)
	return err
}

// rowScanner is implemented by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var status string
	var startedAt, endedAt int64
	err := row.Scan(&r.ID, &r.Ticket, &r.Service, &r.ErrorCode, &status, &startedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	r.StartedAt = time.UnixMilli(startedAt)
	if endedAt > 0 {
		r.EndedAt = time.UnixMilli(endedAt)
	}
	return &r, nil
}

func endedMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
