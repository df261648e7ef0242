package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/document"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
	"github.com/joseph-ayodele/network-extractor/internal/llm"
	"github.com/joseph-ayodele/network-extractor/internal/tabular"
)

// extractTabular reads the sheet and sends it through the engine window by
// window. Failed windows are skipped.
func (p *Processor) extractTabular(ctx context.Context, job *entity.Job, data []byte, contentType string) ([]entity.Record, string, error) {
	table, err := tabular.ReadTable(data, contentType)
	if err != nil {
		return nil, "", err
	}
	p.logger.Info("worker.tabular.start", "job_id", job.ID, "sheet", table.Sheet, "rows", len(table.Rows))

	progress := func(ctx context.Context, done, total int) {
		if _, err := p.repo.Update(ctx, job.ID, job.Owner, entity.ProgressUpdate(progressNote(done, total))); err != nil {
			p.logger.Warn("worker.progress.update_failed", "job_id", job.ID, "error", err)
		}
	}

	records, stats, err := p.batches.Extract(ctx, table, p.instruction, progress)
	if err != nil {
		return nil, "", err
	}
	note := fmt.Sprintf("extracted %d records from %d batches", stats.Records, stats.Windows)
	if stats.Failed > 0 {
		note += fmt.Sprintf(" (%d skipped)", stats.Failed)
	}
	return records, note, nil
}

// extractDocument sends the whole file in one call. Any engine or parse
// failure fails the job.
func (p *Processor) extractDocument(ctx context.Context, job *entity.Job, data []byte, contentType string) ([]entity.Record, string, error) {
	p.logger.Info("worker.document.start", "job_id", job.ID, "content_type", contentType, "bytes", len(data))

	return p.generateOnce(ctx, llm.ExtractRequest{
		Instruction: p.instruction,
		Document:    data,
		MIMEType:    contentType,
		Label:       job.OriginalFilename,
	})
}

// extractWordDocument unpacks the text of a .docx and sends it in one call,
// since engines take PDFs and images inline but not word-processor files.
func (p *Processor) extractWordDocument(ctx context.Context, job *entity.Job, data []byte) ([]entity.Record, string, error) {
	text, err := document.DocxText(data)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(text) == "" {
		return nil, "", common.NewAppError("EMPTY_RESULT", "word document has no text", common.ErrEmptyResult)
	}
	p.logger.Info("worker.document.start", "job_id", job.ID, "content_type", constants.MIMEDOCX, "text_len", len(text))

	return p.generateOnce(ctx, llm.ExtractRequest{
		Instruction: p.instruction,
		Text:        text,
		Label:       job.OriginalFilename,
	})
}

func (p *Processor) generateOnce(ctx context.Context, req llm.ExtractRequest) ([]entity.Record, string, error) {
	reply, err := p.engine.Generate(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("extraction engine: %w", err)
	}

	records, err := llm.ParseRecords(reply, p.logger)
	if err != nil {
		return nil, "", err
	}
	return records, fmt.Sprintf("extracted %d records", len(records)), nil
}
