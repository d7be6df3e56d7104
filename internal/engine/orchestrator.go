package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sigepol/risk-engine/internal/engine/clusterstats"
	"github.com/sigepol/risk-engine/internal/store"
)

// Report aggregates one evaluation pass over the active policy book.
type Report struct {
	RunID                  string                 `json:"run_id"`
	AsOf                   time.Time              `json:"as_of"`
	StartedAt              time.Time              `json:"started_at"`
	FinishedAt             time.Time              `json:"finished_at"`
	PoliciesEvaluated      int                    `json:"policies_evaluated"`
	AlertsCreated          int                    `json:"alerts_created"`
	AlertsByCategory       map[string]int         `json:"alerts_by_category"`
	ClassificationsByLevel map[RiskLevel]int      `json:"classifications_by_level"`
	Classifications        []Classification       `json:"classifications"`
	ClusterStats           []clusterstats.Summary `json:"cluster_stats"`
	Errors                 int                    `json:"errors"`
}

// RunEvaluation runs the alert rule set and the risk classifier over every
// active policy, persisting new alerts as it goes. Policies are processed
// independently: a failure on one is logged and counted, the rest continue,
// and alerts already persisted stay persisted if the context is cancelled
// midway. The returned report carries whatever completed.
func (e *Engine) RunEvaluation(ctx context.Context) (*Report, error) {
	const component = "Orchestrator"

	report := &Report{
		RunID:                  uuid.NewString(),
		AsOf:                   e.clock.Now(),
		StartedAt:              e.clock.Now(),
		AlertsByCategory:       map[string]int{},
		ClassificationsByLevel: map[RiskLevel]int{},
	}
	e.appLogger.Info(component, "Starting evaluation pass: runID=%s asOf=%s", report.RunID, report.AsOf.Format(time.DateOnly))

	policies, err := e.storage.Policy.ListActive(ctx)
	if err != nil {
		return report, err
	}

	samples := make([]clusterstats.PolicySample, 0, len(policies))

	for i := range policies {
		select {
		case <-ctx.Done():
			e.appLogger.Warn(component, "Evaluation cancelled after %d of %d policies: runID=%s", report.PoliciesEvaluated, len(policies), report.RunID)
			report.FinishedAt = e.clock.Now()
			return report, ctx.Err()
		default:
		}

		policy := &policies[i]
		classification, created, err := e.evaluatePolicy(ctx, policy, report.AsOf)
		if err != nil {
			report.Errors++
			e.appLogger.Error(component, "Failed to evaluate policy %s (ID %d): %v", policy.Number, policy.ID, err)
			continue
		}

		report.PoliciesEvaluated++
		for _, alert := range created {
			report.AlertsCreated++
			report.AlertsByCategory[alert.Category]++
		}
		report.Classifications = append(report.Classifications, *classification)
		report.ClassificationsByLevel[classification.Level]++

		premium, _ := policy.PremiumUF.Float64()
		samples = append(samples, clusterstats.PolicySample{
			Cluster:    classification.ClusterID,
			PremiumUF:  premium,
			MoraRate:   classification.MoraRate,
			AlertCount: classification.AlertCount,
			RiskLevel:  string(classification.Level),
		})
	}

	report.ClusterStats = clusterstats.Compute(samples)
	report.FinishedAt = e.clock.Now()

	e.appLogger.Info(component, "Evaluation pass complete: runID=%s policies=%d alertsCreated=%d errors=%d",
		report.RunID, report.PoliciesEvaluated, report.AlertsCreated, report.Errors)
	return report, nil
}

// evaluatePolicy runs rules and classification for one policy. The open-alert
// count feeding the classifier includes alerts created in this same pass.
func (e *Engine) evaluatePolicy(ctx context.Context, policy *store.Policy, asOf time.Time) (*Classification, []store.Alert, error) {
	collections, err := e.storage.Collection.ListForPolicy(ctx, policy.ID)
	if err != nil {
		return nil, nil, err
	}

	snapshot := &policySnapshot{policy: policy, collections: collections, now: asOf}
	created, err := e.evaluatePolicyRules(ctx, snapshot)
	if err != nil {
		return nil, created, err
	}

	alertCount, err := e.storage.Alert.CountOpenForPolicy(ctx, policy.ID)
	if err != nil {
		return nil, created, err
	}

	cluster := -1
	if policy.Cluster != nil {
		cluster = *policy.Cluster
	}
	moraRate := MoraRate(collections, asOf)

	classification := &Classification{
		PolicyID:       policy.ID,
		PolicyNumber:   policy.Number,
		ClusterID:      cluster,
		ClusterProfile: ClusterProfile(cluster),
		MoraRate:       moraRate,
		AlertCount:     alertCount,
		Level:          Classify(moraRate, alertCount),
	}
	return classification, created, nil
}
