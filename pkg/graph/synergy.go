package graph

import "sort"

// SynergyForecast is the outcome of forecasting collaboration potential
// between two agents.
type SynergyForecast struct {
	HistoricalCount          int
	SuccessRate              float64
	Compatibility            float64
	SynergyProbability       float64
	PredictedEconomicSurplus float64
	Confidence               float64
	Recommendation           string
}

const (
	RecommendationPromote = "PROMOTE_COLLABORATION"
	RecommendationMonitor = "MONITORED_COOPERATION"
)

// ForecastSynergy projects the collaboration outlook for pair (a,b).
func (g *Graph) ForecastSynergy(a, b string) SynergyForecast {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.forecastSynergyLocked(a, b)
}

func (g *Graph) forecastSynergyLocked(a, b string) SynergyForecast {
	key := pairKey(a, b)
	count := g.collab[key]

	successRate := 0.8
	if tally, ok := g.collabOutcomes[key]; ok && tally.total > 0 {
		successRate = float64(tally.success) / float64(tally.total)
	}

	compatibility := g.avgCooperation(a, b)

	synergyProbability := 0.6*successRate + 0.4*compatibility

	boost := 1.0
	switch {
	case count >= 5:
		boost = 1.25
	case count >= 1:
		boost = 1.1
	}
	avgPnlA := g.avgPnl(a)
	avgPnlB := g.avgPnl(b)
	surplus := (avgPnlA + avgPnlB) * boost

	confidence := 0.4
	if count > 0 {
		confidence = min95(0.5 + 0.1*float64(count))
	}

	recommendation := RecommendationMonitor
	if successRate*compatibility > 0.6 {
		recommendation = RecommendationPromote
	}

	return SynergyForecast{
		HistoricalCount:          count,
		SuccessRate:              successRate,
		Compatibility:            compatibility,
		SynergyProbability:       synergyProbability,
		PredictedEconomicSurplus: surplus,
		Confidence:               confidence,
		Recommendation:           recommendation,
	}
}

func min95(v float64) float64 {
	if v > 0.95 {
		return 0.95
	}
	return v
}

func (g *Graph) avgCooperation(a, b string) float64 {
	sum := 0.0
	count := 0
	for _, id := range []string{a, b} {
		if n, ok := g.nodes[id]; ok {
			sum += n.TrustProfile.Dimensions.Cooperation
			count++
			continue
		}
		sum += 0.5
		count++
	}
	if count == 0 {
		return 0.5
	}
	return sum / float64(count)
}

func (g *Graph) avgPnl(agentID string) float64 {
	n, ok := g.nodes[agentID]
	if !ok || n.Performance.Count == 0 {
		return 0
	}
	return n.Performance.PnL / float64(n.Performance.Count)
}

// SystemicRiskReport summarizes cross-cutting risk over the whole graph.
type SystemicRiskReport struct {
	GlobalRiskIndex        float64
	CriticalVulnerabilities []VulnerabilityEntry
	RiskClusterCount       int
}

// VulnerabilityEntry is one row of the critical-vulnerabilities ranking.
type VulnerabilityEntry struct {
	AgentID           string
	CentralityIndex   float64
	VulnerabilityScore float64
}

// ForecastSystemicRisk aggregates risk clusters and central-node exposure
// into a system-wide risk summary.
func (g *Graph) ForecastSystemicRisk() SystemicRiskReport {
	clusters := g.RiskClusters()
	centrals := g.CentralNodes()

	g.mu.RLock()
	defer g.mu.RUnlock()

	totalRisk := 0.0
	for _, c := range clusters {
		totalRisk += c.RiskLevel
	}
	nodeCount := len(g.nodes)
	globalRiskIndex := 0.0
	if nodeCount > 0 {
		globalRiskIndex = totalRisk / float64(nodeCount)
	}

	var vulnerable []VulnerabilityEntry
	for _, c := range centrals {
		if c.CentralityIndex <= 20 {
			continue
		}
		n := g.nodes[c.AgentID]
		score := (c.CentralityIndex / 100) * (1 - n.TrustScore)
		vulnerable = append(vulnerable, VulnerabilityEntry{
			AgentID:            c.AgentID,
			CentralityIndex:    c.CentralityIndex,
			VulnerabilityScore: score,
		})
	}
	sort.Slice(vulnerable, func(i, j int) bool {
		return vulnerable[i].VulnerabilityScore > vulnerable[j].VulnerabilityScore
	})
	if len(vulnerable) > 3 {
		vulnerable = vulnerable[:3]
	}

	return SystemicRiskReport{
		GlobalRiskIndex:         globalRiskIndex,
		CriticalVulnerabilities: vulnerable,
		RiskClusterCount:        len(clusters),
	}
}

// HiddenSynergy is a pair with no shared history but high forecasted
// synergy.
type HiddenSynergy struct {
	A, B               string
	SynergyProbability float64
}

// DiscoverOpportunities finds all pairs with zero historical collaboration
// and synergyProbability>0.75, returning the top K by probability.
func (g *Graph) DiscoverOpportunities(topK int) []HiddenSynergy {
	g.mu.RLock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	g.mu.RUnlock()

	var found []HiddenSynergy
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			g.mu.RLock()
			count := g.collab[pairKey(a, b)]
			var forecast SynergyForecast
			if count == 0 {
				forecast = g.forecastSynergyLocked(a, b)
			}
			g.mu.RUnlock()

			if count != 0 {
				continue
			}
			if forecast.SynergyProbability > 0.75 {
				found = append(found, HiddenSynergy{A: a, B: b, SynergyProbability: forecast.SynergyProbability})
			}
		}
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].SynergyProbability > found[j].SynergyProbability
	})
	if topK > 0 && len(found) > topK {
		found = found[:topK]
	}
	return found
}
