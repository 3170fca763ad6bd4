package seeding

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/scoring"
	"github.com/okian/devhistory/pkg/logger"
)

// Generation ranges.
const (
	abilityMin       = 35
	abilityRange     = 55
	scoreNoise       = 15 // +/- around a user's ability; may leave 0-100
	gapDaysMin       = 2
	gapDaysRange     = 8
	durationMin      = 30
	durationRange    = 570
	skillsPerRecord  = 3
	maxAchievements  = 2
	completeShare    = 0.8
	failedShare      = 0.1 // the rest is in-progress
	omitOverallShare = 0.5
)

var (
	skills       = []string{"go", "algorithms", "testing", "concurrency", "databases", "networking", "rust", "typescript"}
	achievements = []string{"Polyglot", "Streak Keeper", "Bug Hunter", "Top Reviewer", "Speed Runner", "Night Owl", "Refactorer"}

	// namespace for deterministic ids
	seedNamespace = uuid.MustParse("6f1c2c9e-4f7e-4b8a-9d1e-3c2a1b0f9e8d")
)

// SubmitRequest mirrors the body of POST /analyses.
type SubmitRequest struct {
	DeliveryID string        `json:"deliveryId"`
	UserID     string        `json:"userId"`
	Record     RecordPayload `json:"record"`
}

// RecordPayload is a record as the pipeline reports it.
type RecordPayload struct {
	ID              string             `json:"id"`
	CompletedAt     time.Time          `json:"completedAt"`
	OverallScore    *int               `json:"overallScore,omitempty"`
	SourceScoreA    int                `json:"sourceScoreA"`
	SourceScoreB    int                `json:"sourceScoreB"`
	Status          record.Status      `json:"status"`
	SkillScores     map[string]int     `json:"skillScores,omitempty"`
	Achievements    []string           `json:"achievements,omitempty"`
	Identities      *record.Identities `json:"identities,omitempty"`
	DurationSeconds *int               `json:"durationSeconds,omitempty"`
}

// UserHistory is one synthetic user: what is sent, and what the service is
// expected to store.
type UserHistory struct {
	UserID   string
	Requests []SubmitRequest
	Expected []record.AnalysisRecord
}

// Generate builds histories ending at now. The same seed yields the same
// histories.
func Generate(ctx context.Context, config *Config, now time.Time) ([]UserHistory, error) {
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data
	scorer := scoring.NewCompositeScorer(scoring.WithSourceWeights(config.WeightA, config.WeightB))

	users := make([]UserHistory, config.Users)
	for u := range users {
		userID := fmt.Sprintf("user-%03d", u)
		ability := abilityMin + rng.IntN(abilityRange)
		ids := &record.Identities{SourceA: "gh-" + userID, SourceB: "lc-" + userID}

		h := UserHistory{UserID: userID}
		at := now
		for j := range config.RecordsPerUser {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled during generation: %w", err)
			}
			at = at.Add(-time.Duration(gapDaysMin+rng.IntN(gapDaysRange)) * 24 * time.Hour).
				Add(-time.Duration(rng.IntN(24*60)) * time.Minute)
			req := generateRequest(rng, config.Seed, userID, j, ability, at, ids)

			res, err := scorer.Score(ctx, scoring.Input{Record: req.toRecord(), HasOverall: req.Record.OverallScore != nil})
			if err != nil {
				return nil, fmt.Errorf("score %s/%d: %w", userID, j, err)
			}
			h.Requests = append(h.Requests, req)
			h.Expected = append(h.Expected, res.Record)
		}
		users[u] = h
	}

	logger.Get().Info(ctx, "generated histories",
		logger.Int("users", len(users)),
		logger.Int("recordsPerUser", config.RecordsPerUser),
	)
	return users, nil
}

func generateRequest(rng *rand.Rand, seed uint64, userID string, index, ability int, at time.Time, ids *record.Identities) SubmitRequest {
	key := fmt.Sprintf("%d/%s/%d", seed, userID, index)
	score := func() int { return ability - scoreNoise + rng.IntN(2*scoreNoise+1) }

	p := RecordPayload{
		ID:          uuid.NewSHA1(seedNamespace, []byte("record/"+key)).String(),
		CompletedAt: at.UTC().Truncate(time.Second),
		Status:      pickStatus(rng),
		Identities:  ids,
	}
	if p.Status == record.StatusComplete {
		p.SourceScoreA, p.SourceScoreB = score(), score()
		if rng.Float64() >= omitOverallShare {
			overall := score()
			p.OverallScore = &overall
		}
		p.SkillScores = make(map[string]int, skillsPerRecord)
		for _, i := range rng.Perm(len(skills))[:skillsPerRecord] {
			p.SkillScores[skills[i]] = score()
		}
		for _, i := range rng.Perm(len(achievements))[:rng.IntN(maxAchievements+1)] {
			p.Achievements = append(p.Achievements, achievements[i])
		}
		p.DurationSeconds = record.DurationOf(durationMin + rng.IntN(durationRange))
	}

	return SubmitRequest{
		DeliveryID: uuid.NewSHA1(seedNamespace, []byte("delivery/"+key)).String(),
		UserID:     userID,
		Record:     p,
	}
}

func pickStatus(rng *rand.Rand) record.Status {
	switch f := rng.Float64(); {
	case f < completeShare:
		return record.StatusComplete
	case f < completeShare+failedShare:
		return record.StatusFailed
	default:
		return record.StatusInProgress
	}
}

// toRecord converts the wire payload to the record the service decodes.
func (r SubmitRequest) toRecord() record.AnalysisRecord { //nolint:gocritic // hugeParam: value semantics intended
	p := r.Record
	out := record.AnalysisRecord{
		ID:              p.ID,
		CompletedAt:     p.CompletedAt,
		SourceScoreA:    p.SourceScoreA,
		SourceScoreB:    p.SourceScoreB,
		Status:          p.Status,
		SkillScores:     record.SkillScores(p.SkillScores),
		Achievements:    p.Achievements,
		DurationSeconds: p.DurationSeconds,
	}
	if p.OverallScore != nil {
		out.OverallScore = *p.OverallScore
	}
	if p.Identities != nil {
		ids := *p.Identities
		out.Identities = &ids
	}
	return out
}
