package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/llm"
)

// Generate implements llm.Engine over chat/completions. Images are sent as
// image_url parts and other documents as base64 file parts.
func (c *Client) Generate(ctx context.Context, req llm.ExtractRequest) (string, error) {
	start := time.Now()
	c.logger.Info("llm.extract.start",
		"provider", "openai",
		"model", c.cfg.Model,
		"label", req.Label,
		"text_len", len(req.Text),
		"document_bytes", len(req.Document),
		"mime_type", req.MIMEType,
	)

	user, err := userContent(req)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": req.Instruction},
			{"role": "user", "content": user},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"provider", "openai", "label", req.Label, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices", "label", req.Label, "raw_bytes", len(raw))
		return "", fmt.Errorf("no choices in openai response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if cc.Choices[0].FinishReason == "length" {
		c.logger.Warn("llm.extract.truncated", "provider", "openai", "label", req.Label)
	}

	c.logger.Info("llm.extract.ok",
		"provider", "openai",
		"label", req.Label,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func userContent(req llm.ExtractRequest) (any, error) {
	if !req.HasDocument() {
		return req.Text, nil
	}
	parts := []map[string]any{
		{"type": "text", "text": "Extract every provider from the attached document."},
	}
	dataURL := llm.DataURL(req.MIMEType, req.Document)
	if llm.IsImage(req.MIMEType) {
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": dataURL},
		})
		return parts, nil
	}
	ext := "bin"
	for e, mt := range constants.AllowedExtensions {
		if mt == constants.NormalizeMIME(req.MIMEType) {
			ext = e
			break
		}
	}
	parts = append(parts, map[string]any{
		"type": "file",
		"file": map[string]any{
			"filename":  "document." + ext,
			"file_data": dataURL,
		},
	})
	return parts, nil
}
