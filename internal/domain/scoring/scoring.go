// Package scoring normalizes pipeline scores before records are stored.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/devhistory/internal/domain/record"
)

// Default source weights.
const (
	defaultWeightA = 1.0
	defaultWeightB = 1.0
)

// Option applies a configuration option to the CompositeScorer.
type Option func(*CompositeScorer)

// WithSourceWeights sets the weights of the two source scores in the
// derived overall score. Non-positive weights are ignored.
func WithSourceWeights(a, b float64) Option {
	return func(s *CompositeScorer) {
		if a > 0 {
			s.weightA = a
		}
		if b > 0 {
			s.weightB = b
		}
	}
}

// WithSourceWeightsFromConfig reads weights keyed "sourceA" and "sourceB".
func WithSourceWeightsFromConfig(weights map[string]float64) Option {
	return WithSourceWeights(weights["sourceA"], weights["sourceB"])
}

// Input is one record as reported by the pipeline.
type Input struct {
	Record record.AnalysisRecord
	// HasOverall is false when the pipeline did not report an overall score.
	HasOverall bool
}

// Result carries the normalized record.
type Result struct {
	Record record.AnalysisRecord
	// Derived reports that the overall score was computed here.
	Derived bool
	// Clamped reports that at least one score was pulled into range.
	Clamped bool
}

// Scorer normalizes records before they are persisted.
type Scorer interface {
	// Score normalizes in, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// CompositeScorer clamps scores to the record bounds and derives a missing
// overall score as the weighted mean of the source scores.
type CompositeScorer struct {
	weightA float64
	weightB float64
}

// NewCompositeScorer creates a scorer with configuration options.
func NewCompositeScorer(opts ...Option) *CompositeScorer {
	s := &CompositeScorer{weightA: defaultWeightA, weightB: defaultWeightB}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weights returns the configured source weights.
func (s *CompositeScorer) Weights() (float64, float64) {
	return s.weightA, s.weightB
}

// Score returns a normalized copy of in.Record.
func (s *CompositeScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}

	r := in.Record.Clone()
	if !r.Complete() {
		// Non-complete runs only carry placeholders.
		r.OverallScore, r.SourceScoreA, r.SourceScoreB = 0, 0, 0
		return Result{Record: r}, nil
	}

	var res Result
	r.SourceScoreA, res.Clamped = clamp(r.SourceScoreA, res.Clamped)
	r.SourceScoreB, res.Clamped = clamp(r.SourceScoreB, res.Clamped)
	if in.HasOverall {
		r.OverallScore, res.Clamped = clamp(r.OverallScore, res.Clamped)
	} else {
		r.OverallScore = s.composite(r.SourceScoreA, r.SourceScoreB)
		res.Derived = true
	}
	if len(r.SkillScores) > 0 {
		for name, v := range r.SkillScores {
			r.SkillScores[name], res.Clamped = clamp(v, res.Clamped)
		}
	}
	res.Record = r
	return res, nil
}

func (s *CompositeScorer) composite(a, b int) int {
	mean := (float64(a)*s.weightA + float64(b)*s.weightB) / (s.weightA + s.weightB)
	v := int(math.Floor(mean + 0.5))
	v, _ = clamp(v, false)
	return v
}

func clamp(v int, already bool) (int, bool) {
	switch {
	case v < record.MinScore:
		return record.MinScore, true
	case v > record.MaxScore:
		return record.MaxScore, true
	default:
		return v, already
	}
}
