// Package clusterstats aggregates per-cluster statistics over classification
// results for the reporting panel.
package clusterstats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// PolicySample is one classified policy's contribution to its cluster.
type PolicySample struct {
	Cluster    int
	PremiumUF  float64
	MoraRate   float64
	AlertCount int
	RiskLevel  string
}

// Summary describes one cluster of the classified book. Policies the model
// has not assigned yet are grouped under cluster -1.
type Summary struct {
	Cluster         int     `json:"cluster"`
	Policies        int     `json:"policies"`
	Share           float64 `json:"share"`
	MeanPremiumUF   float64 `json:"mean_premium_uf"`
	StdDevPremiumUF float64 `json:"stddev_premium_uf"`
	MeanMoraRate    float64 `json:"mean_mora_rate"`
	TotalAlerts     int     `json:"total_alerts"`
	DominantLevel   string  `json:"dominant_level"`
}

// Compute groups samples by cluster and aggregates each group. Results are
// ordered by cluster id.
func Compute(samples []PolicySample) []Summary {
	if len(samples) == 0 {
		return []Summary{}
	}

	groups := map[int][]PolicySample{}
	for _, s := range samples {
		groups[s.Cluster] = append(groups[s.Cluster], s)
	}

	summaries := make([]Summary, 0, len(groups))
	for cluster, group := range groups {
		premiums := make([]float64, len(group))
		moraRates := make([]float64, len(group))
		totalAlerts := 0
		levels := map[string]int{}
		for i, s := range group {
			premiums[i] = s.PremiumUF
			moraRates[i] = s.MoraRate
			totalAlerts += s.AlertCount
			levels[s.RiskLevel]++
		}

		meanPremium, stdDevPremium := stat.MeanStdDev(premiums, nil)
		if len(group) < 2 {
			stdDevPremium = 0
		}

		summaries = append(summaries, Summary{
			Cluster:         cluster,
			Policies:        len(group),
			Share:           float64(len(group)) / float64(len(samples)),
			MeanPremiumUF:   meanPremium,
			StdDevPremiumUF: stdDevPremium,
			MeanMoraRate:    stat.Mean(moraRates, nil),
			TotalAlerts:     totalAlerts,
			DominantLevel:   dominantLevel(levels),
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Cluster < summaries[j].Cluster })
	return summaries
}

// dominantLevel picks the most frequent risk level, breaking ties toward the
// more severe label so a 50/50 cluster reads as the riskier profile.
func dominantLevel(counts map[string]int) string {
	severity := []string{"CRÍTICO", "ALTO", "MEDIO", "BAJO"}
	best := ""
	bestCount := -1
	for _, level := range severity {
		if counts[level] > bestCount {
			best = level
			bestCount = counts[level]
		}
	}
	return best
}
