package inference

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// MockCloser оборачивает bytes.Buffer, чтобы подменить каналы процесса.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

func okResponse(rows, cols int, fill func(r, c int) float32) []byte {
	payload := new(bytes.Buffer)
	payload.WriteByte(statusOK)
	binary.Write(payload, binary.BigEndian, [2]uint32{uint32(rows), uint32(cols)})
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			binary.Write(payload, binary.BigEndian, fill(r, c))
		}
	}
	return payload.Bytes()
}

func errorResponse(msg string) []byte {
	payload := new(bytes.Buffer)
	payload.WriteByte(statusError)
	binary.Write(payload, binary.BigEndian, uint32(len(msg)))
	payload.WriteString(msg)
	return payload.Bytes()
}

func framed(payload []byte) *MockCloser {
	m := &MockCloser{Buffer: new(bytes.Buffer)}
	binary.Write(m, binary.BigEndian, uint32(len(payload)))
	m.Write(payload)
	return m
}

func TestProcessBackend_Infer(t *testing.T) {
	stdin := &MockCloser{Buffer: new(bytes.Buffer)}
	data := framed(okResponse(64, 13, func(r, c int) float32 { return float32(r*100 + c) }))
	b := &ProcessBackend{stdin: stdin, dataPipe: data}

	batch := entity.NewTileBatch(64, 32)
	batch.Data[0] = 0.25
	scores, err := b.Infer(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, scores, 64)
	require.Len(t, scores[63], 13)
	require.Equal(t, float32(6312), scores[63][12])

	// Запрос: длина, форма, данные.
	sent := stdin.Bytes()
	require.Equal(t, 4+16+4*64*32*32, len(sent))
	require.Equal(t, uint32(len(sent)-4), binary.BigEndian.Uint32(sent[:4]))
	require.Equal(t, uint32(64), binary.BigEndian.Uint32(sent[4:8]))
	require.Equal(t, uint32(1), binary.BigEndian.Uint32(sent[8:12]))
	require.Equal(t, uint32(32), binary.BigEndian.Uint32(sent[16:20]))
}

func TestProcessBackend_WorkerError(t *testing.T) {
	b := &ProcessBackend{
		stdin:    &MockCloser{Buffer: new(bytes.Buffer)},
		dataPipe: framed(errorResponse("CUDA out of memory")),
	}
	_, err := b.Infer(context.Background(), entity.NewTileBatch(64, 32))
	require.ErrorContains(t, err, "CUDA out of memory")
	require.NotErrorIs(t, err, port.ErrBackendBroken)

	// Ошибка модели не ломает канал: следующий ответ читается нормально.
	b.dataPipe = framed(okResponse(1, 13, func(r, c int) float32 { return 1 }))
	scores, err := b.Infer(context.Background(), entity.NewTileBatch(64, 32))
	require.NoError(t, err)
	require.Len(t, scores, 1)
}

func TestProcessBackend_BrokenPipeIsSticky(t *testing.T) {
	b := &ProcessBackend{
		stdin:    &MockCloser{Buffer: new(bytes.Buffer)},
		dataPipe: &MockCloser{Buffer: new(bytes.Buffer)},
		stderr:   &stderrBuffer{},
	}
	_, _ = b.stderr.Write([]byte("Traceback: ModuleNotFoundError: torch\n"))
	_, err := b.Infer(context.Background(), entity.NewTileBatch(64, 32))
	require.ErrorContains(t, err, "ModuleNotFoundError")
	require.ErrorIs(t, err, port.ErrBackendBroken)

	b.dataPipe = framed(okResponse(64, 13, func(r, c int) float32 { return 0 }))
	_, err = b.Infer(context.Background(), entity.NewTileBatch(64, 32))
	require.ErrorIs(t, err, port.ErrBackendBroken)
}

func TestStderrBuffer_ConcurrentWrites(t *testing.T) {
	buf := &stderrBuffer{}
	b := &ProcessBackend{
		stdin:    &MockCloser{Buffer: new(bytes.Buffer)},
		dataPipe: &MockCloser{Buffer: new(bytes.Buffer)},
		stderr:   buf,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_, _ = buf.Write([]byte("line\n"))
		}
	}()
	_, err := b.Infer(context.Background(), entity.NewTileBatch(64, 32))
	<-done
	require.ErrorIs(t, err, port.ErrBackendBroken)
	require.Equal(t, 500, len(buf.String()))
}

func TestProcessBackend_CanceledBeforeSend(t *testing.T) {
	stdin := &MockCloser{Buffer: new(bytes.Buffer)}
	b := &ProcessBackend{stdin: stdin, dataPipe: &MockCloser{Buffer: new(bytes.Buffer)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Infer(ctx, entity.NewTileBatch(64, 32))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, stdin.Len())
}

func TestDecodeScores_Malformed(t *testing.T) {
	_, err := decodeScores(nil)
	require.Error(t, err)

	_, err = decodeScores([]byte{7})
	require.ErrorContains(t, err, "unknown response status")

	bad := okResponse(2, 13, func(r, c int) float32 { return 0 })
	_, err = decodeScores(bad[:len(bad)-4])
	require.ErrorContains(t, err, "does not match")
}

func TestEncodeBatch_RejectsInconsistentData(t *testing.T) {
	batch := entity.NewTileBatch(64, 32)
	batch.Data = batch.Data[:10]
	_, err := encodeBatch(batch)
	require.Error(t, err)
}

func TestStartProcess_EmptyCommand(t *testing.T) {
	_, err := StartProcess("  ", "model.pt")
	require.Error(t, err)
}
