package engine

import (
	"context"
	"time"

	"github.com/sigepol/risk-engine/internal/store"
)

// RiskLevel is one of the four labels reported to the back office.
type RiskLevel string

const (
	RiskLow      RiskLevel = "BAJO"
	RiskMedium   RiskLevel = "MEDIO"
	RiskHigh     RiskLevel = "ALTO"
	RiskCritical RiskLevel = "CRÍTICO"
)

// riskThreshold is one ordered predicate→label rule. Rules are checked most
// severe first; the first match wins, so tie-breaks are a documented contract
// rather than incidental code order. Both bounds are strict: a mora rate of
// exactly 0.30 with no alerts classifies as MEDIO, not ALTO.
type riskThreshold struct {
	moraAbove   float64
	alertsAbove int
	level       RiskLevel
}

var riskThresholds = []riskThreshold{
	{moraAbove: 0.50, alertsAbove: 5, level: RiskCritical},
	{moraAbove: 0.30, alertsAbove: 2, level: RiskHigh},
	{moraAbove: 0.10, alertsAbove: 0, level: RiskMedium},
}

// Classify maps a mora rate and open-alert count to a risk level. Pure
// function: no clock, no storage, no cluster input. The cluster id is carried
// alongside classification results for profile labeling only; it never moves
// the level.
func Classify(moraRate float64, alertCount int) RiskLevel {
	for _, t := range riskThresholds {
		if moraRate > t.moraAbove || alertCount > t.alertsAbove {
			return t.level
		}
	}
	return RiskLow
}

// MoraRate returns the fraction of the policy's collections that are overdue:
// still unpaid past their due date. A policy with no collections has a mora
// rate of 0.
func MoraRate(collections []store.Collection, now time.Time) float64 {
	if len(collections) == 0 {
		return 0
	}
	overdue := 0
	for i := range collections {
		if IsOverdue(&collections[i], now) {
			overdue++
		}
	}
	return float64(overdue) / float64(len(collections))
}

// clusterProfiles are the human-readable labels the reporting panel shows for
// each cluster the external K-Means batch emits. The ids are opaque to the
// engine; an unmapped id gets the fallback label.
var clusterProfiles = map[int]string{
	0: "Producción baja",
	1: "Cartera estable",
	2: "Alto valor",
	3: "Atrasos recurrentes",
}

const clusterProfileUnknown = "Sin perfil"

// ClusterProfile returns the reporting label for a cluster id.
func ClusterProfile(clusterID int) string {
	if profile, ok := clusterProfiles[clusterID]; ok {
		return profile
	}
	return clusterProfileUnknown
}

// Classification is the per-policy risk result consumed by reporting. Not
// persisted by the engine.
type Classification struct {
	PolicyID       int64     `json:"policy_id"`
	PolicyNumber   string    `json:"policy_number"`
	ClusterID      int       `json:"cluster_id"`
	ClusterProfile string    `json:"cluster_profile"`
	MoraRate       float64   `json:"mora_rate"`
	AlertCount     int       `json:"alert_count"`
	Level          RiskLevel `json:"level"`
}

// ClassifyPolicy computes the risk classification for a single policy using
// its current collections and open-alert count. clusterID is the externally
// supplied assignment; pass a negative value when the policy has none.
func (e *Engine) ClassifyPolicy(ctx context.Context, policyID int64, clusterID int) (*Classification, error) {
	policy, err := e.storage.Policy.Get(ctx, policyID)
	if err != nil {
		return nil, mapStoreErr(err, "policy", policyID)
	}

	collections, err := e.storage.Collection.ListForPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	alertCount, err := e.storage.Alert.CountOpenForPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	moraRate := MoraRate(collections, now)

	return &Classification{
		PolicyID:       policy.ID,
		PolicyNumber:   policy.Number,
		ClusterID:      clusterID,
		ClusterProfile: ClusterProfile(clusterID),
		MoraRate:       moraRate,
		AlertCount:     alertCount,
		Level:          Classify(moraRate, alertCount),
	}, nil
}
