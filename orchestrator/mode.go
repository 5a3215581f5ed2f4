// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import "log"

// DecideExecutionMode maps routing signals to an execution mode.
//
// The rule order is a design contract: rules are evaluated 1 through 7 and
// the first match wins. A message that satisfies both rule 1 and rule 4
// resolves to HumanFirst. Later rules never override earlier ones.
//
//  1. High risk or negative sentiment  -> HumanFirst
//  2. VIP customer                     -> HumanFirst
//  3. Complaint scenario               -> HumanFirst
//  4. Fault scenario                   -> Parallel
//  5. Complexity > 0.7                 -> Supervised
//  6. Complexity < 0.4                 -> Simple
//  7. Everything else                  -> Supervised
//
// An explicit caller override (Simple, Supervised, HumanFirst) bypasses the
// rules entirely.
func DecideExecutionMode(signals AnalysisSignals, override ExecutionMode) ExecutionMode {
	if override == ModeSimple || override == ModeSupervised || override == ModeHumanFirst {
		log.Printf("[ModeDecider] Caller override in effect: %s", override)
		return override
	}

	// Rule 1: high-risk or negative conversations go to a human first.
	if signals.RiskLevel == RiskHigh || signals.Sentiment == SentimentNegative {
		return ModeHumanFirst
	}

	// Rule 2: VIP customers go to a human first.
	if signals.Customer.IsVIP {
		return ModeHumanFirst
	}

	// Rule 3: complaints go to a human first.
	if signals.Scenario == ScenarioComplaint {
		return ModeHumanFirst
	}

	// Rule 4: fault diagnosis fans out to the full worker set.
	if signals.Scenario == ScenarioFault {
		return ModeParallel
	}

	// Rule 5: high complexity gets supervision.
	if signals.Complexity > 0.7 {
		return ModeSupervised
	}

	// Rule 6: low complexity is answered directly.
	if signals.Complexity < 0.4 {
		return ModeSimple
	}

	// Rule 7: middle ground gets supervision.
	return ModeSupervised
}
