// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import "strings"

// ScenarioClassifier maps message text to a conversation scenario using
// ordered keyword sets. It is a pure function of the text: no I/O, no
// scoring, first match wins. Identical text always yields the same scenario.
type ScenarioClassifier struct {
	faultKeywords     []string
	complaintKeywords []string
}

// NewScenarioClassifier builds a classifier from the configured keyword sets.
func NewScenarioClassifier(cfg RoutingConfig) *ScenarioClassifier {
	return &ScenarioClassifier{
		faultKeywords:     cfg.FaultKeywords,
		complaintKeywords: cfg.ComplaintKeywords,
	}
}

// Classify returns the scenario for a message. Priority order is
// fault > complaint > consultation; matching is case-insensitive substring.
func (c *ScenarioClassifier) Classify(text string) Scenario {
	content := strings.ToLower(text)

	if containsAny(content, c.faultKeywords) {
		return ScenarioFault
	}
	if containsAny(content, c.complaintKeywords) {
		return ScenarioComplaint
	}
	return ScenarioConsultation
}

func containsAny(content string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
