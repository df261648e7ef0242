package llm

import "context"

// ExtractRequest is one call to the extraction engine. Exactly one of Text or
// Document is set.
type ExtractRequest struct {
	Instruction string
	Text        string
	Document    []byte
	MIMEType    string
	// Label identifies the call in logs, e.g. "batch 2/5".
	Label string
}

// HasDocument reports whether raw bytes are attached.
func (r ExtractRequest) HasDocument() bool { return len(r.Document) > 0 }

// Engine is the extraction capability the worker depends on. It returns the
// model's raw text; callers parse it with ParseRecords.
type Engine interface {
	Generate(ctx context.Context, req ExtractRequest) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req ExtractRequest) (string, error)

func (f EngineFunc) Generate(ctx context.Context, req ExtractRequest) (string, error) {
	return f(ctx, req)
}
