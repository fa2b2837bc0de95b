package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// remoteResponse ответ сервера классификации
type remoteResponse struct {
	Scores [][]float32 `json:"scores"`
	Error  string      `json:"error,omitempty"`
}

// RemoteBackend модель на удалённом сервере, доступном по websocket.
type RemoteBackend struct {
	serverURL string

	mu   sync.Mutex
	conn *websocket.Conn
}

// DialRemote подключается к серверу ws://host/classify.
func DialRemote(ctx context.Context, host string) (*RemoteBackend, error) {
	u := url.URL{Scheme: "ws", Host: host, Path: "/classify"}

	log.Println("connecting to inference server...", u.String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	log.Println("connected to inference server!")

	return &RemoteBackend{serverURL: u.String(), conn: conn}, nil
}

// Infer отправляет пакет бинарным сообщением и читает JSON с оценками.
func (b *RemoteBackend) Infer(ctx context.Context, batch *entity.TileBatch) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := encodeBatch(batch)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil, fmt.Errorf("%w: connection closed", port.ErrBackendBroken)
	}

	if err := b.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return nil, b.fail(fmt.Errorf("send batch: %w", err))
	}
	_, message, err := b.conn.ReadMessage()
	if err != nil {
		return nil, b.fail(fmt.Errorf("read response: %w", err))
	}

	var resp remoteResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	return resp.Scores, nil
}

// fail закрывает соединение после ошибки обмена; вызывается под mu.
func (b *RemoteBackend) fail(err error) error {
	_ = b.conn.Close()
	b.conn = nil
	return fmt.Errorf("%w: %w", port.ErrBackendBroken, err)
}

// Close закрывает соединение.
func (b *RemoteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	_ = b.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := b.conn.Close()
	b.conn = nil
	return err
}

var _ port.InferenceBackend = (*RemoteBackend)(nil)
