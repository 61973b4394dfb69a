package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// JSONLZstdWriter appends JSON lines to a zstd-compressed file, opened
// lazily on first write.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

// StepRecord is one simulation step of one episode.
type StepRecord struct {
	Episode      int       `json:"episode"`
	Step         int       `json:"step"`
	Observations []float64 `json:"observations"`
	Actions      []float64 `json:"actions"`
	Reward       float64   `json:"reward"`
	Cumulative   float64   `json:"cumulative"`
}

// StepLogger writes one compressed JSONL entry per simulation step.
type StepLogger struct {
	w       *JSONLZstdWriter
	episode int
}

func NewStepLogger(dir, runID string) *StepLogger {
	return &StepLogger{
		w:       NewJSONLZstdWriter(filepath.Join(dir, fmt.Sprintf("%s-steps.jsonl.zst", runID))),
		episode: -1,
	}
}

// BeginEpisode advances the episode counter stamped on subsequent steps.
func (l *StepLogger) BeginEpisode() {
	l.episode++
}

func (l *StepLogger) LogStep(rec StepRecord) error {
	rec.Episode = l.episode
	return l.w.Write(rec)
}

func (l *StepLogger) Close() error {
	return l.w.Close()
}
