// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"log"
	"strings"
	"sync"
)

// SignalCollector gathers the per-message routing signals: sentiment/risk
// classification, customer tier, and a local complexity score. The two
// remote lookups run concurrently; each has its own failure boundary and
// maps failure to a documented neutral default, so the collector always
// returns a complete AnalysisSignals, never an error and never a partial.
type SignalCollector struct {
	lookups         SignalLookups
	classifier      *ScenarioClassifier
	complexKeywords []string
	cache           *SignalsCache
}

// NewSignalCollector builds a collector. cache may be nil to disable
// prefetch-cache writes.
func NewSignalCollector(lookups SignalLookups, classifier *ScenarioClassifier, cfg RoutingConfig, cache *SignalsCache) *SignalCollector {
	return &SignalCollector{
		lookups:         lookups,
		classifier:      classifier,
		complexKeywords: cfg.ComplexKeywords,
		cache:           cache,
	}
}

// Neutral defaults substituted when a lookup fails. These are part of the
// routing contract: a broken sentiment service must not push conversations
// to a human.
var (
	defaultSentiment = SentimentReport{
		OverallSentiment: SentimentNeutral,
		RiskLevel:        RiskLow,
		Score:            0.7,
	}
	defaultCustomer = CustomerProfile{}
)

// Collect produces the signals for one message. It returns only after all
// branches settle, success or defaulted failure.
func (s *SignalCollector) Collect(ctx context.Context, msg InboundMessage) AnalysisSignals {
	var (
		wg        sync.WaitGroup
		sentiment SentimentReport
		profile   CustomerProfile
		tierKnown bool
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		report, err := s.lookups.AnalyzeSentiment(ctx, msg.ConversationID)
		if err != nil {
			log.Printf("[Signals] Sentiment lookup failed for %s, using neutral default: %v", msg.ConversationID, err)
			sentiment = defaultSentiment
			return
		}
		sentiment = report
	}()

	// Tier lookup is skipped entirely when there is no customer ID.
	if msg.CustomerID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.lookups.GetCustomerProfile(ctx, msg.CustomerID)
			if err != nil {
				log.Printf("[Signals] Customer lookup failed for %s, treating tier as unknown: %v", msg.CustomerID, err)
				profile = defaultCustomer
				return
			}
			profile = p
			tierKnown = true
		}()
	}

	complexity := s.ScoreComplexity(msg.Text)

	wg.Wait()

	signals := AnalysisSignals{
		Complexity: complexity,
		Sentiment:  sentiment.OverallSentiment,
		RiskLevel:  sentiment.RiskLevel,
		Customer: CustomerTier{
			IsVIP:    profile.VIP,
			RiskFlag: profile.RiskFlag,
			Known:    tierKnown,
		},
		Scenario: s.classifier.Classify(msg.Text),
	}

	if s.cache != nil {
		s.cache.Store(ctx, msg.ConversationID, signals)
	}

	return signals
}

// ScoreComplexity computes the local complexity score:
//
//	base          = min(1, words/240)
//	questionBonus = min(0.3, questionMarks*0.1)
//	keywordBonus  = min(0.2, complexKeywords*0.1)
//	complexity    = min(1, base+questionBonus+keywordBonus)
//
// Both ASCII and fullwidth question marks count.
func (s *SignalCollector) ScoreComplexity(text string) float64 {
	words := len(strings.Fields(text))
	base := minFloat(1.0, float64(words)/240.0)

	questions := strings.Count(text, "?") + strings.Count(text, "？")
	questionBonus := minFloat(0.3, float64(questions)*0.1)

	content := strings.ToLower(text)
	matched := 0
	for _, kw := range s.complexKeywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			matched++
		}
	}
	keywordBonus := minFloat(0.2, float64(matched)*0.1)

	return minFloat(1.0, base+questionBonus+keywordBonus)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
