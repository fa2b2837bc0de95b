package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// PostgresUpdateRepository хранит последнее обновление каждого источника в PostgreSQL.
// pgx.Conn не потокобезопасен, поэтому обращения сериализуются.
type PostgresUpdateRepository struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// NewPostgresUpdateRepository подключается к базе и создаёт схему, если её нет.
func NewPostgresUpdateRepository(ctx context.Context, connString string) (*PostgresUpdateRepository, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &PostgresUpdateRepository{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS board_updates (
			source TEXT PRIMARY KEY,
			request_id BIGINT NOT NULL,
			fen TEXT NOT NULL,
			change_kind TEXT NOT NULL,
			payload JSONB NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL,
			saved_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

// SaveLast заменяет последнее обновление источника.
func (r *PostgresUpdateRepository) SaveLast(ctx context.Context, source string, update entity.PipelineUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.conn.Exec(ctx, `
		INSERT INTO board_updates (source, request_id, fen, change_kind, payload, observed_at, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (source) DO UPDATE SET
			request_id = EXCLUDED.request_id,
			fen = EXCLUDED.fen,
			change_kind = EXCLUDED.change_kind,
			payload = EXCLUDED.payload,
			observed_at = EXCLUDED.observed_at,
			saved_at = NOW()
	`, source, int64(update.RequestID), update.FEN, string(update.Change), payload, update.Timestamp)
	if err != nil {
		return fmt.Errorf("save update: %w", err)
	}
	return nil
}

// LoadLast возвращает последнее обновление источника или port.ErrNotFound.
func (r *PostgresUpdateRepository) LoadLast(ctx context.Context, source string) (*entity.PipelineUpdate, error) {
	var payload []byte

	r.mu.Lock()
	err := r.conn.QueryRow(ctx, `SELECT payload FROM board_updates WHERE source = $1`, source).Scan(&payload)
	r.mu.Unlock()

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load update: %w", err)
	}

	var u entity.PipelineUpdate
	if err := json.Unmarshal(payload, &u); err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	return &u, nil
}

// Close закрывает соединение.
func (r *PostgresUpdateRepository) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn.Close(ctx)
}

var _ port.UpdateRepository = (*PostgresUpdateRepository)(nil)
