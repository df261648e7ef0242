package tabular

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/llm"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var rowsLabel = regexp.MustCompile(`rows (\d+)-(\d+)`)

func makeTable(n int) *Table {
	t := &Table{Header: []string{"id", "name"}}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, []string{fmt.Sprintf("R%03d", i), "provider"})
	}
	return t
}

// windowEngine answers each window with one record whose id is the window's
// first row number, or with garbage for windows listed in bad.
func windowEngine(t *testing.T, bad map[int]bool, calls *[]string) llm.Engine {
	var mu sync.Mutex
	return llm.EngineFunc(func(_ context.Context, req llm.ExtractRequest) (string, error) {
		m := rowsLabel.FindStringSubmatch(req.Text)
		if m == nil {
			t.Errorf("request text has no row label: %q", req.Text)
			return "", errors.New("no row label")
		}
		first, _ := strconv.Atoi(m[1])
		mu.Lock()
		*calls = append(*calls, req.Label)
		mu.Unlock()
		if bad[first] {
			return "sorry, I cannot help with that", nil
		}
		return fmt.Sprintf("```json\n[{\"id\":\"%d\",\"name\":\"x\",\"phones\":[]}]\n```", first), nil
	})
}

func TestExtractor_WindowsAndOrder(t *testing.T) {
	var calls []string
	e := NewExtractor(windowEngine(t, nil, &calls), quietLogger, WithWindowSize(200))

	var progress []int
	records, stats, err := e.Extract(context.Background(), makeTable(450), "instr", func(_ context.Context, done, total int) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("engine calls = %d, want 3", len(calls))
	}
	if calls[0] != "batch 1/3" || calls[2] != "batch 3/3" {
		t.Errorf("labels = %v", calls)
	}
	want := []string{"1", "201", "401"}
	for i, r := range records {
		if r.ID != want[i] {
			t.Errorf("record %d id = %s, want %s", i, r.ID, want[i])
		}
	}
	if stats.Windows != 3 || stats.Failed != 0 || stats.Records != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("progress = %v", progress)
	}
}

func TestExtractor_SkipsFailedWindows(t *testing.T) {
	var calls []string
	e := NewExtractor(windowEngine(t, map[int]bool{201: true}, &calls), quietLogger, WithWindowSize(200))

	records, stats, err := e.Extract(context.Background(), makeTable(450), "instr", nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 2 || records[0].ID != "1" || records[1].ID != "401" {
		t.Errorf("records = %+v", records)
	}
	if stats.Failed != 1 {
		t.Errorf("failed = %d, want 1", stats.Failed)
	}
}

func TestExtractor_EngineErrorIsPerWindow(t *testing.T) {
	n := 0
	engine := llm.EngineFunc(func(context.Context, llm.ExtractRequest) (string, error) {
		n++
		if n == 1 {
			return "", errors.New("503 from engine")
		}
		return `[{"id":"ok"}]`, nil
	})
	records, _, err := NewExtractor(engine, quietLogger, WithWindowSize(10)).Extract(context.Background(), makeTable(15), "i", nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 1 || records[0].ID != "ok" {
		t.Errorf("records = %+v", records)
	}
}

func TestExtractor_AllWindowsFail(t *testing.T) {
	var calls []string
	bad := map[int]bool{1: true, 201: true, 401: true}
	e := NewExtractor(windowEngine(t, bad, &calls), quietLogger, WithWindowSize(200))

	_, stats, err := e.Extract(context.Background(), makeTable(450), "instr", nil)
	if !errors.Is(err, common.ErrEmptyResult) {
		t.Fatalf("Extract() error = %v, want ErrEmptyResult", err)
	}
	if stats.Failed != 3 {
		t.Errorf("failed = %d, want 3", stats.Failed)
	}
}

func TestExtractor_NoRows(t *testing.T) {
	engine := llm.EngineFunc(func(context.Context, llm.ExtractRequest) (string, error) {
		t.Error("engine called for empty table")
		return "", nil
	})
	_, _, err := NewExtractor(engine, quietLogger).Extract(context.Background(), makeTable(0), "i", nil)
	if !errors.Is(err, common.ErrEmptyResult) {
		t.Errorf("Extract() error = %v, want ErrEmptyResult", err)
	}
}

func TestExtractor_ConcurrentKeepsOrder(t *testing.T) {
	var calls []string
	e := NewExtractor(windowEngine(t, nil, &calls), quietLogger, WithWindowSize(10), WithConcurrency(4))

	records, _, err := e.Extract(context.Background(), makeTable(95), "instr", nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("records = %d, want 10", len(records))
	}
	for i, r := range records {
		if want := strconv.Itoa(i*10 + 1); r.ID != want {
			t.Errorf("record %d id = %s, want %s", i, r.ID, want)
		}
	}
}

func TestExtractor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls []string
	_, _, err := NewExtractor(windowEngine(t, nil, &calls), quietLogger).Extract(ctx, makeTable(5), "i", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}
