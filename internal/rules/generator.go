package rules

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"snowpilot/internal/logger"
	"snowpilot/internal/metrics"
	"snowpilot/internal/store"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Generator walks the current signal snapshot through the rule chain and
// publishes the resulting candidates as a complete versioned snapshot.
type Generator struct {
	store       store.Store
	chain       []Rule
	autoApprove []string
	log         logger.Logger
	now         func() time.Time
}

// NewGenerator builds the chain from the configured rulepacks plus the
// built-in rules and compiles every template up front.
func NewGenerator(st store.Store, cfg models.Rules, autoApprove []string, log logger.Logger) (*Generator, error) {
	chain, err := BuildChain(cfg.Packs, DefaultChain(cfg.Thresholds))
	if err != nil {
		return nil, err
	}
	return &Generator{
		store:       st,
		chain:       chain,
		autoApprove: autoApprove,
		log:         log.WithStage("generate"),
		now:         time.Now,
	}, nil
}

// Evaluate produces and publishes a new candidate snapshot from the current
// signals. First matching rule per entity wins. A matched rule whose
// template cannot be resolved withholds that entity's candidate; the rest
// of the evaluation is unaffected.
func (g *Generator) Evaluate(ctx context.Context) (*models.CandidateSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signals, err := g.store.CurrentSignals()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreReadFailed, "Failed to read signal snapshot")
	}

	now := g.now().UTC()
	set := &models.CandidateSet{ProducedAt: now}

	if signals == nil {
		g.log.Warn("No signal snapshot yet, publishing empty candidate set")
	} else {
		set.SignalVersion = signals.Version
		set.Candidates, set.Withheld = g.evaluateSignals(signals, now)
	}

	version, err := g.store.PublishCandidates(set)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreWriteFailed, "Failed to publish candidate snapshot")
	}

	for _, c := range set.Candidates {
		metrics.CandidatesTotal.WithLabelValues(c.Category, string(c.Disposition)).Inc()
	}
	if set.Withheld > 0 {
		metrics.CandidatesWithheldTotal.Add(float64(set.Withheld))
	}
	metrics.SnapshotVersion.WithLabelValues("candidates").Set(float64(version))
	metrics.SnapshotAge.WithLabelValues("candidates").Set(0)

	g.log.Info("Candidate snapshot published",
		logger.Uint64("version", version),
		logger.Int("candidates", len(set.Candidates)),
		logger.Int("withheld", set.Withheld))

	return set, nil
}

func (g *Generator) evaluateSignals(signals *models.SignalSet, now time.Time) ([]*models.Candidate, int) {
	keys := make([]string, 0, len(signals.Signals))
	for k := range signals.Signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var candidates []*models.Candidate
	withheld := 0

	for _, key := range keys {
		sig := signals.Signals[key]

		for i := range g.chain {
			rule := &g.chain[i]
			if !rule.Matches(sig) {
				continue
			}

			rationale, statement, params, err := rule.render(sig)
			if err != nil {
				withheld++
				g.log.Warn("Candidate withheld",
					logger.String("entity", sig.EntityKey),
					logger.String("rule", rule.Name),
					logger.Error(err))
				break
			}

			candidates = append(candidates, &models.Candidate{
				ID:            uuid.NewString(),
				EntityKey:     sig.EntityKey,
				Category:      rule.Category,
				Rationale:     rationale,
				Statement:     statement,
				Params:        params,
				Disposition:   ResolveDisposition(rule.Category, statement, g.autoApprove),
				RuleName:      rule.Name,
				SignalVersion: signals.Version,
				CreatedAt:     now,
			})
			break
		}
	}
	return candidates, withheld
}
