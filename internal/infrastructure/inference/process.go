package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// ProcessBackend модель во внешнем процессе-воркере.
// Запросы идут в stdin, ответы читаются из отдельного канала (FD 3),
// чтобы print и логи воркера не ломали протокол.
type ProcessBackend struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	stderr   *stderrBuffer
	stdin    io.WriteCloser
	dataPipe io.ReadCloser
	broken   error
}

// StartProcess запускает воркер. Путь к модели передаётся через MODEL_PATH.
func StartProcess(command, modelPath string) (*ProcessBackend, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("worker command is empty")
	}

	cmd := exec.Command(args[0], args[1:]...)
	stderr := &stderrBuffer{}
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), "MODEL_PATH="+modelPath)

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker failed to start: %w", err)
	}

	// Пишущий конец остаётся только у воркера.
	w.Close()

	return &ProcessBackend{
		cmd:      cmd,
		stderr:   stderr,
		stdin:    stdin,
		dataPipe: r,
	}, nil
}

// Infer отправляет пакет клеток и ждёт оценки.
// Начатый обмен не прерывается отменой ctx, иначе протокол рассинхронизируется.
func (b *ProcessBackend) Infer(ctx context.Context, batch *entity.TileBatch) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := encodeBatch(batch)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken != nil {
		return nil, b.broken
	}

	if err := writeFrame(b.stdin, payload); err != nil {
		return nil, b.fail(fmt.Errorf("send batch: %w", err))
	}
	resp, err := readFrame(b.dataPipe)
	if err != nil {
		return nil, b.fail(fmt.Errorf("read response: %w", err))
	}
	return decodeScores(resp)
}

// fail помечает канал сломанным; дальнейшие вызовы сразу возвращают ошибку.
func (b *ProcessBackend) fail(err error) error {
	err = fmt.Errorf("%w: %w", port.ErrBackendBroken, err)
	if out := b.stderr.String(); out != "" {
		err = fmt.Errorf("%w; worker stderr: %s", err, tail(out, 512))
	}
	b.broken = err
	return err
}

// Close закрывает каналы и дожидается завершения воркера.
func (b *ProcessBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken == nil {
		b.broken = fmt.Errorf("%w: worker closed", port.ErrBackendBroken)
	}
	b.stdin.Close()
	b.dataPipe.Close()
	if b.cmd == nil {
		return nil
	}
	return b.cmd.Wait()
}

// stderrBuffer stderr воркера; exec пишет в него из своей горутины.
type stderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *stderrBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *stderrBuffer) String() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

var _ port.InferenceBackend = (*ProcessBackend)(nil)
