package llm

import (
	"context"

	"github.com/raine/sellsmart-bot/internal/listing"
)

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// AnalysisResult contains the generated listing and usage information.
type AnalysisResult struct {
	Draft *listing.Draft
	Usage Usage
}

// ImageResult contains a newly produced image and usage information.
type ImageResult struct {
	Image listing.Payload
	Usage Usage
}

// Analyzer turns a product photo into a listing draft.
type Analyzer interface {
	Analyze(ctx context.Context, image listing.Payload) (*AnalysisResult, error)
}

// Editor applies a free-text instruction to a photo.
type Editor interface {
	Edit(ctx context.Context, image listing.Payload, instruction string) (*ImageResult, error)
}

// Generator produces a styled product photo from the current image.
type Generator interface {
	Generate(ctx context.Context, image listing.Payload, prompt string, resolution listing.Resolution) (*ImageResult, error)
}

// Gateway is the boundary to the generative AI service.
type Gateway interface {
	Analyzer
	Editor
	Generator
}

// Composite assembles a Gateway from independently chosen parts, so the
// generator can be swapped between the real model and the simulation
// without callers noticing.
type Composite struct {
	Analyzer
	Editor
	Generator
}

// NewGateway creates a Gateway from its three operations.
func NewGateway(analyzer Analyzer, editor Editor, generator Generator) *Composite {
	return &Composite{Analyzer: analyzer, Editor: editor, Generator: generator}
}
