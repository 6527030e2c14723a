// Package market derives the strategic outputs from the scored keyword
// universe: a prioritized beachhead keyword set, nested TAM/SAM/SOM sizing,
// and multi-scenario traffic projections.
package market

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

// Beachhead qualification floors.
const (
	beachheadMinWinnability = 70.0
	beachheadMaxDifficulty  = 30.0
	beachheadMinRelevance   = 0.7
)

// SelectBeachheads picks the early-target keyword set: high winnability, low
// personalized difficulty, real volume, and strong business relevance.
// Selection clusters by topic and takes the top few per cluster so the
// output supports building topical authority rather than a scattershot of
// individually attractive keywords.
func SelectBeachheads(records []model.WinnabilityRecord, cfg *config.MarketConfig) []model.BeachheadKeyword {
	volumeFloor := cfg.BeachheadVolumeFloor
	if volumeFloor <= 0 {
		volumeFloor = 50
	}

	var qualified []model.WinnabilityRecord
	for _, rec := range records {
		if rec.WinnabilityScore >= beachheadMinWinnability &&
			rec.PersonalizedDifficulty <= beachheadMaxDifficulty &&
			rec.Keyword.SearchVolume >= volumeFloor &&
			rec.Keyword.BusinessRelevance >= beachheadMinRelevance {
			qualified = append(qualified, rec)
		}
	}

	// Cluster by topic, rank within each cluster, then interleave clusters
	// so every topic is represented before any is exhausted.
	clusters := make(map[string][]model.WinnabilityRecord)
	for _, rec := range qualified {
		topic := TopicOf(rec.Keyword.Normalized)
		clusters[topic] = append(clusters[topic], rec)
	}
	topics := make([]string, 0, len(clusters))
	for topic := range clusters {
		sort.SliceStable(clusters[topic], func(i, j int) bool {
			return clusterLess(clusters[topic][i], clusters[topic][j])
		})
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	perTopic := cfg.BeachheadPerTopic
	if perTopic <= 0 {
		perTopic = 3
	}
	limit := cfg.BeachheadLimit
	if limit <= 0 {
		limit = 25
	}

	var out []model.BeachheadKeyword
	for depth := 0; depth < perTopic && len(out) < limit; depth++ {
		for _, topic := range topics {
			if len(out) >= limit {
				break
			}
			if depth < len(clusters[topic]) {
				out = append(out, model.BeachheadKeyword{
					WinnabilityRecord: clusters[topic][depth],
					Topic:             topic,
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return clusterLess(out[i].WinnabilityRecord, out[j].WinnabilityRecord)
	})
	for i := range out {
		out[i].Priority = i + 1
	}

	zap.L().Info("beachhead keywords selected",
		zap.Int("qualified", len(qualified)),
		zap.Int("topics", len(topics)),
		zap.Int("selected", len(out)),
	)
	return out
}

// clusterLess orders by winnability descending, then volume descending, then
// keyword text for determinism.
func clusterLess(a, b model.WinnabilityRecord) bool {
	if a.WinnabilityScore != b.WinnabilityScore {
		return a.WinnabilityScore > b.WinnabilityScore
	}
	if a.Keyword.SearchVolume != b.Keyword.SearchVolume {
		return a.Keyword.SearchVolume > b.Keyword.SearchVolume
	}
	return a.Keyword.Normalized < b.Keyword.Normalized
}

// topicStopwords are modifier tokens that should not name a topic cluster.
var topicStopwords = map[string]bool{
	"best": true, "top": true, "free": true, "cheap": true, "online": true,
	"how": true, "what": true, "why": true, "for": true, "the": true,
	"and": true, "with": true, "near": true, "your": true, "you": true,
	"small": true, "new": true, "vs": true, "versus": true,
}

// TopicOf labels a keyword's topical cluster with its first two substantive
// tokens. Crude head-term clustering, but stable and cheap.
func TopicOf(normalized string) string {
	var head []string
	for _, tok := range strings.Fields(normalized) {
		if topicStopwords[tok] || len(tok) < 3 {
			continue
		}
		head = append(head, tok)
		if len(head) == 2 {
			break
		}
	}
	if len(head) == 0 {
		return normalized
	}
	return strings.Join(head, " ")
}
