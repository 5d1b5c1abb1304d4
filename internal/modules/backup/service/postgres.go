package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"arb_bot/pkg/db"
	"arb_bot/pkg/logger"
)

// PgStore keeps backups in a single key/content table.
type PgStore struct {
	tx *db.PgTxManager
}

func NewPgStore(tx *db.PgTxManager) *PgStore {
	return &PgStore{tx: tx}
}

// EnsureSchema creates the backups table when missing. Called once at
// startup.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	return s.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			CREATE TABLE IF NOT EXISTS backups (
				key        TEXT PRIMARY KEY,
				content    BYTEA NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
		return err
	})
}

func (s *PgStore) Save(ctx context.Context, key string, content []byte) bool {
	err := s.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO backups (key, content, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET content = $2, updated_at = now()`,
			key, content)
		return err
	})
	if err != nil {
		logger.Error("backup save %s: %v", key, err)
		return false
	}
	return true
}

func (s *PgStore) Read(ctx context.Context, key string) ([]byte, bool) {
	var content []byte
	err := s.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctxTx, `SELECT content FROM backups WHERE key = $1`, key).Scan(&content)
	})
	if err != nil {
		if err != pgx.ErrNoRows {
			logger.Error("backup read %s: %v", key, err)
		}
		return nil, false
	}
	return content, true
}

func (s *PgStore) Delete(ctx context.Context, key string) bool {
	err := s.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `DELETE FROM backups WHERE key = $1`, key)
		return err
	})
	if err != nil {
		logger.Error("backup delete %s: %v", key, err)
		return false
	}
	return true
}

func (s *PgStore) Exists(ctx context.Context, key string) bool {
	var one int
	err := s.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctxTx, `SELECT 1 FROM backups WHERE key = $1`, key).Scan(&one)
	})
	return err == nil
}

func (s *PgStore) ListKeys(ctx context.Context, prefix string) []string {
	var keys []string
	err := s.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `SELECT key FROM backups WHERE key LIKE $1 || '%' ORDER BY key`, prefix)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		logger.Error("backup list %s: %v", prefix, err)
		return nil
	}
	return keys
}
