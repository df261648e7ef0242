package tabular

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
	"github.com/joseph-ayodele/network-extractor/internal/llm"
)

// ProgressFunc is told after each finished window how many of total are done.
type ProgressFunc func(ctx context.Context, done, total int)

// Stats summarises one batch extraction.
type Stats struct {
	Windows int
	Failed  int
	Records int
}

// Extractor runs a table through the engine one row window at a time.
type Extractor struct {
	engine      llm.Engine
	windowSize  int
	concurrency int
	logger      *slog.Logger
}

type ExtractorOption func(*Extractor)

func WithWindowSize(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.windowSize = n
		}
	}
}

// WithConcurrency allows up to n windows in flight. Output order is unaffected.
func WithConcurrency(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewExtractor(engine llm.Engine, logger *slog.Logger, opts ...ExtractorOption) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		engine:      engine,
		windowSize:  constants.DefaultWindowSize,
		concurrency: 1,
		logger:      logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type windowResult struct {
	records []entity.Record
	ok      bool
}

// Extract sends every window of t to the engine and concatenates the parsed
// records in window order. A window whose call or parse fails is logged and
// skipped; only when no window succeeds does it return common.ErrEmptyResult.
func (e *Extractor) Extract(ctx context.Context, t *Table, instruction string, progress ProgressFunc) ([]entity.Record, Stats, error) {
	windows := Chunk(len(t.Rows), e.windowSize)
	stats := Stats{Windows: len(windows)}
	if len(windows) == 0 {
		return nil, stats, common.NewAppError("EMPTY_RESULT", "spreadsheet has no data rows", common.ErrEmptyResult)
	}

	results := make([]windowResult, len(windows))
	var mu sync.Mutex
	done := 0

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for _, w := range windows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[w.Index] = e.runWindow(ctx, t, w, len(windows), instruction)

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progress != nil {
				progress(ctx, n, len(windows))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	var merged []entity.Record
	for _, r := range results {
		if !r.ok {
			stats.Failed++
			continue
		}
		merged = append(merged, r.records...)
	}
	stats.Records = len(merged)

	if stats.Failed == stats.Windows {
		return nil, stats, common.NewAppError("EMPTY_RESULT",
			fmt.Sprintf("all %d batches failed to parse", stats.Windows), common.ErrEmptyResult)
	}
	return merged, stats, nil
}

func (e *Extractor) runWindow(ctx context.Context, t *Table, w Window, total int, instruction string) windowResult {
	label := fmt.Sprintf("batch %d/%d", w.Index+1, total)
	start := time.Now()

	text, err := e.engine.Generate(ctx, llm.ExtractRequest{
		Instruction: instruction,
		Text:        llm.BuildTabularText(t.Render(w), fmt.Sprintf("rows %d-%d", w.Start+1, w.End)),
		Label:       label,
	})
	if err != nil {
		e.logger.Warn("tabular.window.engine_failed", "window", label, "error", err)
		return windowResult{}
	}
	records, err := llm.ParseRecords(text, e.logger)
	if err != nil {
		e.logger.Warn("tabular.window.parse_failed", "window", label, "error", err)
		return windowResult{}
	}
	e.logger.Info("tabular.window.ok",
		"window", label,
		"rows", w.Size(),
		"records", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return windowResult{records: records, ok: true}
}
