package inference

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"board-vision/internal/domain/entity"
)

// Статус ответа воркера.
const (
	statusOK    byte = 0
	statusError byte = 1
)

// maxMessage ограничение на длину сообщения воркера, защищает от мусора в канале.
const maxMessage = 64 << 20

// encodeBatch: [4]uint32 форма тензора, затем float32 данные (big endian).
func encodeBatch(batch *entity.TileBatch) ([]byte, error) {
	shape := batch.Shape()
	n := shape[0] * shape[1] * shape[2] * shape[3]
	if len(batch.Data) != n {
		return nil, fmt.Errorf("batch data has %d values, shape needs %d", len(batch.Data), n)
	}

	buf := bytes.NewBuffer(make([]byte, 0, 16+4*n))
	for _, d := range shape {
		if err := binary.Write(buf, binary.BigEndian, uint32(d)); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(buf, binary.BigEndian, batch.Data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeScores: [status]; при 0 далее [rows uint32][cols uint32][rows*cols float32],
// при 1 далее [len uint32][сообщение].
func decodeScores(payload []byte) ([][]float32, error) {
	r := bytes.NewReader(payload)
	status, err := r.ReadByte()
	if err != nil {
		return nil, errors.New("empty response")
	}

	switch status {
	case statusOK:
	case statusError:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("read error length: %w", err)
		}
		if int64(n) > int64(r.Len()) {
			return nil, fmt.Errorf("error message truncated")
		}
		msg := make([]byte, n)
		if _, err := io.ReadFull(r, msg); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("worker error: %s", msg)
	default:
		return nil, fmt.Errorf("unknown response status %d", status)
	}

	var dims [2]uint32
	if err := binary.Read(r, binary.BigEndian, &dims); err != nil {
		return nil, fmt.Errorf("read shape: %w", err)
	}
	rows, cols := int(dims[0]), int(dims[1])
	if int64(rows)*int64(cols)*4 != int64(r.Len()) {
		return nil, fmt.Errorf("response shape %dx%d does not match %d bytes", rows, cols, r.Len())
	}

	flat := make([]float32, rows*cols)
	if err := binary.Read(r, binary.BigEndian, flat); err != nil {
		return nil, fmt.Errorf("read scores: %w", err)
	}
	scores := make([][]float32, rows)
	for i := range scores {
		scores[i] = flat[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return scores, nil
}

// writeFrame пишет сообщение с префиксом длины.
func writeFrame(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// readFrame читает сообщение с префиксом длины.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header)
	if n > maxMessage {
		return nil, fmt.Errorf("response too large: %d bytes", n)
	}
	body := make([]byte, n)
	_, err := io.ReadFull(r, body)
	return body, err
}
