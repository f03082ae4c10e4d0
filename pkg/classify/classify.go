package classify

import "context"

// Classifier scores an image for disallowed content. Scores are in
// [0, 1]; higher means more likely disallowed. The model behind the score
// is external to this module.
type Classifier interface {
	Score(ctx context.Context, path string) (float64, error)
}

// ScoreFunc adapts a plain function to the Classifier interface.
type ScoreFunc func(ctx context.Context, path string) (float64, error)

func (f ScoreFunc) Score(ctx context.Context, path string) (float64, error) {
	return f(ctx, path)
}
