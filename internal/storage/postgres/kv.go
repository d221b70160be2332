package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// KVStore implements the agent state store on two tables: kv_entries for
// single values and kv_lists for capped lists.
type KVStore struct {
	db        *sqlx.DB
	txManager *TransactionManager
	timeout   time.Duration
}

func NewKVStore(db *sqlx.DB, timeout time.Duration) *KVStore {
	return &KVStore{
		db:        db,
		txManager: NewTransactionManager(db),
		timeout:   timeout,
	}
}

func (s *KVStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
		SELECT value
		FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	var raw []byte
	err := s.db.GetContext(ctx, &raw, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
		INSERT INTO kv_entries (key, value, expires_at, updated_at)
		VALUES ($1, $2::jsonb, $3, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, key, string(data), expiresAt(ttl)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	// An expired row is treated as absent and taken over.
	query := `
		INSERT INTO kv_entries (key, value, expires_at, updated_at)
		VALUES ($1, $2::jsonb, $3, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
		WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= now()`

	res, err := s.db.ExecContext(ctx, query, key, string(data), expiresAt(ttl))
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return affected(res)
}

func (s *KVStore) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var live bool
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		res, err := exec.ExecContext(txCtx,
			`DELETE FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
			key,
		)
		if err != nil {
			return err
		}
		if live, err = affected(res); err != nil {
			return err
		}

		_, err = exec.ExecContext(txCtx, `DELETE FROM kv_entries WHERE key = $1`, key)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return live, nil
}

func (s *KVStore) CompareAndDelete(ctx context.Context, key string, value any) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE key = $1 AND value = $2::jsonb`,
		key, string(data),
	)
	if err != nil {
		return false, fmt.Errorf("compare and delete %s: %w", key, err)
	}
	return affected(res)
}

func (s *KVStore) Push(ctx context.Context, key string, value string, max int) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		if _, err := exec.ExecContext(txCtx,
			`INSERT INTO kv_lists (key, value) VALUES ($1, $2)`,
			key, value,
		); err != nil {
			return err
		}

		if max <= 0 {
			return nil
		}

		_, err := exec.ExecContext(txCtx, `
			DELETE FROM kv_lists
			WHERE key = $1 AND id NOT IN (
				SELECT id FROM kv_lists WHERE key = $1 ORDER BY id DESC LIMIT $2
			)`,
			key, max,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Range(ctx context.Context, key string, n int) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
		SELECT value
		FROM kv_lists
		WHERE key = $1
		ORDER BY id DESC
		LIMIT $2`

	values := make([]string, 0, n)
	if err := s.db.SelectContext(ctx, &values, query, key, n); err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	return values, nil
}

// PurgeExpired removes expired single values and returns how many were deleted.
func (s *KVStore) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return res.RowsAffected()
}

func (s *KVStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func expiresAt(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl).UTC()
	return &t
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
