// Package sqlitestore keeps the shared token store in a SQLite file so every
// process of the add-in (task pane, dialog, CLI) sees the same value.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/jrsteele09/mlredact-addin/token"
)

var _ token.Store = (*Store)(nil)

const schema = `CREATE TABLE IF NOT EXISTS token_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

type Store struct {
	db           *sql.DB
	pollInterval time.Duration
	nowFunc      func() time.Time

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Store)

// WithPollInterval sets how often Subscribe polls for writes made by other processes.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		s.pollInterval = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// Open opens (or creates) the database at path. ":memory:" is accepted for tests.
func Open(ctx context.Context, path string, options ...Option) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init sqlite token store: %w", err)
	}

	s := &Store{db: db, pollInterval: 500 * time.Millisecond}
	for _, opt := range options {
		opt(s)
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	return s, nil
}

func (s *Store) Name() string {
	return "sqlite"
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM token_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlitestore.Get: %w", err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.nowFunc().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlitestore.Set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM token_kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlitestore.Delete: %w", err)
	}
	return nil
}

// Subscribe polls the row and calls fn whenever the stored value changes.
// The current value at subscription time is not delivered.
func (s *Store) Subscribe(ctx context.Context, key string, fn func(string)) (func(), error) {
	last, _, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v, _, err := s.Get(ctx, key)
				if err != nil {
					if ctx.Err() == nil {
						log.Warn().Err(err).Msg("sqlitestore: poll failed")
					}
					continue
				}
				if v != last {
					last = v
					fn(v)
				}
			}
		}
	}()
	return cancel, nil
}

// Close stops every subscription and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	s.mu.Unlock()
	s.wg.Wait()
	return s.db.Close()
}
