package earthengine

import "context"

// VisParams describes how an image is turned into an RGB layer.
type VisParams struct {
	Bands   []string `json:"bands,omitempty"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette,omitempty"`
}

// Evaluator runs deferred computations. Compute performs exactly one
// evaluation and decodes the JSON result into out.
type Evaluator interface {
	Compute(ctx context.Context, c Computable, out any) error
	Tiles(ctx context.Context, img Image, vis VisParams) (string, error)
	Name() string
}
