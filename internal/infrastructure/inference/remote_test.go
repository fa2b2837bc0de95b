package inference

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// classifyServer отвечает на каждый пакет функцией reply.
func classifyServer(t *testing.T, reply func(shape [4]uint32) remoteResponse) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/classify", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.BinaryMessage || len(msg) < 16 {
				return
			}
			var shape [4]uint32
			for i := range shape {
				shape[i] = binary.BigEndian.Uint32(msg[i*4:])
			}
			out, _ := json.Marshal(reply(shape))
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteBackend_Infer(t *testing.T) {
	srv := classifyServer(t, func(shape [4]uint32) remoteResponse {
		scores := make([][]float32, shape[0])
		for i := range scores {
			scores[i] = make([]float32, entity.ClassCount)
			scores[i][i%entity.ClassCount] = 5
		}
		return remoteResponse{Scores: scores}
	})

	b, err := DialRemote(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 2; i++ {
		scores, err := b.Infer(context.Background(), entity.NewTileBatch(64, 32))
		require.NoError(t, err)
		require.Len(t, scores, 64)
		require.Equal(t, float32(5), scores[14][1])
	}
}

func TestRemoteBackend_ServerError(t *testing.T) {
	srv := classifyServer(t, func(shape [4]uint32) remoteResponse {
		return remoteResponse{Error: "model not loaded"}
	})

	b, err := DialRemote(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Infer(context.Background(), entity.NewTileBatch(64, 32))
	require.ErrorContains(t, err, "model not loaded")
	require.NotErrorIs(t, err, port.ErrBackendBroken)
}

func TestRemoteBackend_DroppedConnectionIsBroken(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/classify", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Сервер падает, не ответив на запрос.
		_, _, _ = conn.ReadMessage()
		conn.Close()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b, err := DialRemote(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Infer(context.Background(), entity.NewTileBatch(64, 32))
	require.ErrorIs(t, err, port.ErrBackendBroken)

	_, err = b.Infer(context.Background(), entity.NewTileBatch(64, 32))
	require.ErrorIs(t, err, port.ErrBackendBroken)
}

func TestRemoteBackend_ClosedConnection(t *testing.T) {
	srv := classifyServer(t, func(shape [4]uint32) remoteResponse { return remoteResponse{} })
	b, err := DialRemote(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.Infer(context.Background(), entity.NewTileBatch(64, 32))
	require.ErrorIs(t, err, port.ErrBackendBroken)
}

func TestLoader(t *testing.T) {
	require.False(t, LoaderConfig{}.Configured())
	_, err := NewLoader(LoaderConfig{}).Load(context.Background())
	require.Error(t, err)

	srv := classifyServer(t, func(shape [4]uint32) remoteResponse { return remoteResponse{} })
	cfg := LoaderConfig{ModelURL: strings.TrimPrefix(srv.URL, "http://"), ModelPath: "ignored.pt"}
	require.True(t, cfg.Configured())
	backend, err := NewLoader(cfg).Load(context.Background())
	require.NoError(t, err)
	_, ok := backend.(*RemoteBackend)
	require.True(t, ok)
	require.NoError(t, backend.Close())
}
