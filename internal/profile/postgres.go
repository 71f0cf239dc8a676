package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore keeps each profile as a jsonb document in the profiles table and the
// current-session pointer in the single-row current_session table.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

// OpenPG opens a pgx-backed pool.
func OpenPG(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing handle.
func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Load(ctx context.Context, sessionID string) (Profile, error) {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return Profile{}, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, `select payload from profiles where session_id = $1`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return decode(sessionID, data)
}

const upsertProfile = `
	insert into profiles(session_id, payload, updated_at)
	values ($1, $2, now())
	on conflict (session_id) do update
	set payload = excluded.payload, updated_at = excluded.updated_at`

func (s *PGStore) Save(ctx context.Context, sessionID string, p Profile) error {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return err
	}
	data, err := encode(p)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertProfile, sessionID, data); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Update locks the row for the duration of fn. A session with no row yet is
// not locked; two first writers race and the last one wins.
func (s *PGStore) Update(ctx context.Context, sessionID string, fn UpdateFunc) (Profile, error) {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return Profile{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		p     Profile
		found bool
		data  []byte
	)
	err = tx.QueryRowContext(ctx, `select payload from profiles where session_id = $1 for update`, sessionID).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Profile{}, fmt.Errorf("lock profile: %w", err)
	default:
		if p, err = decode(sessionID, data); err == nil {
			found = true
		}
	}

	if err := fn(&p, found); err != nil {
		return Profile{}, err
	}
	enc, err := encode(p)
	if err != nil {
		return Profile{}, err
	}
	if _, err := tx.ExecContext(ctx, upsertProfile, sessionID, enc); err != nil {
		return Profile{}, fmt.Errorf("save profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PGStore) SessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select session_id from profiles order by session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PGStore) SetCurrentSession(ctx context.Context, sessionID string) error {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into current_session(slot, session_id, updated_at)
		values (true, $1, now())
		on conflict (slot) do update
		set session_id = excluded.session_id, updated_at = excluded.updated_at`, sessionID)
	return err
}

func (s *PGStore) CurrentSession(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `select session_id from current_session where slot`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PGStore) ClearCurrentSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `delete from current_session`)
	return err
}

// Ping is used by the readiness probe.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
