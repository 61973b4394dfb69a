package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func decodeJSONL(t *testing.T, path string, out func([]byte)) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		out(sc.Bytes())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
}

func TestJSONLZstdWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl.zst")
	w := NewJSONLZstdWriter(path)

	for i := 0; i < 3; i++ {
		if err := w.Write(map[string]int{"i": i}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []int
	decodeJSONL(t, path, func(line []byte) {
		var row map[string]int
		if err := json.Unmarshal(line, &row); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, row["i"])
	})
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Fatalf("unexpected rows: %v", got)
	}
}

func TestJSONLZstdWriterLazyOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.jsonl.zst")
	w := NewJSONLZstdWriter(path)
	if err := w.Close(); err != nil {
		t.Fatalf("close without writes: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file should not exist until first write")
	}
}

func TestStepLoggerStampsEpisodes(t *testing.T) {
	dir := t.TempDir()
	l := NewStepLogger(dir, "run-1")

	l.BeginEpisode()
	if err := l.LogStep(StepRecord{Step: 0, Reward: 0.5, Cumulative: 0.5}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := l.LogStep(StepRecord{Step: 1, Reward: 0.25, Cumulative: 0.75}); err != nil {
		t.Fatalf("log: %v", err)
	}
	l.BeginEpisode()
	if err := l.LogStep(StepRecord{Step: 0, Reward: 1, Cumulative: 1}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var recs []StepRecord
	decodeJSONL(t, filepath.Join(dir, "run-1-steps.jsonl.zst"), func(line []byte) {
		var rec StepRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("decode: %v", err)
		}
		recs = append(recs, rec)
	})
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Episode != 0 || recs[1].Episode != 0 || recs[2].Episode != 1 {
		t.Fatalf("unexpected episode stamps: %v %v %v", recs[0].Episode, recs[1].Episode, recs[2].Episode)
	}
	if recs[2].Step != 0 || recs[2].Cumulative != 1 {
		t.Fatalf("unexpected final record: %+v", recs[2])
	}
}
