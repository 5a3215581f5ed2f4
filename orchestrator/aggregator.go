// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"encoding/json"
	"log"
)

// ResultAggregator merges the outputs of a parallel dispatch into one
// response. The merge is deterministic: precedence follows worker
// declaration order, never completion order, so identical inputs always
// produce identical output.
type ResultAggregator struct{}

// NewResultAggregator creates an aggregator.
func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{}
}

// Structured keys with special meaning during the merge.
const (
	keySuggestedReply = "suggested_reply"
	keyConfidence     = "confidence"
	keyEscalation     = "need_escalation"
	keyFaultDiagnosis = "fault_diagnosis"
)

// Aggregate combines successful worker results, given in declaration order.
// Rules:
//   - each worker's raw text is parsed as JSON; on failure the raw text
//     itself becomes the reply candidate
//   - a later worker's non-empty reply overrides an earlier one's
//   - aggregate confidence is the minimum across contributing workers
//   - every structured sub-payload is preserved in the merged metadata
//   - escalation flags from any worker are OR'd into the merge
//   - with no usable reply at all, a fixed degraded text is substituted and
//     confidence forced to zero
func (a *ResultAggregator) Aggregate(results []WorkerResult, msg InboundMessage) AggregatedResponse {
	merged := map[string]interface{}{
		"conversation_id": msg.ConversationID,
		"customer_id":     msg.CustomerID,
	}
	usedWorkers := make([]string, 0, len(results))
	finalReply := ""
	minConfidence := 1.0

	for _, result := range results {
		usedWorkers = append(usedWorkers, result.WorkerID)

		structured := result.Structured
		if structured == nil {
			structured = parseStructuredText(result.RawText)
		}

		candidate := result.RawText
		confidence := result.Confidence

		if structured != nil {
			// A structured result speaks only through its suggested reply;
			// the raw JSON text is never shown to a customer.
			candidate = ""
			if reply, ok := structured[keySuggestedReply].(string); ok {
				candidate = reply
			}
			if c, ok := structured[keyConfidence].(float64); ok {
				confidence = c
			}
			a.mergeStructured(merged, result.WorkerID, structured)
		} else {
			log.Printf("[Aggregator] Worker %s output is not structured, using raw text", result.WorkerID)
		}

		if candidate != "" {
			finalReply = candidate
		}
		if confidence < minConfidence {
			minConfidence = confidence
		}
	}

	if finalReply == "" {
		finalReply = DegradedFailureText
		minConfidence = 0
	}

	merged["agents_used"] = usedWorkers

	return AggregatedResponse{
		FinalText:      finalReply,
		MergedMetadata: merged,
		Confidence:     minConfidence,
		ExecutionMode:  ModeParallel,
		UsedWorkers:    usedWorkers,
	}
}

// mergeStructured copies a worker's structured sub-payloads into the merged
// metadata. Payload keys are kept side-by-side; a key already claimed by an
// earlier worker is preserved by prefixing the later worker's copy with its
// identity. Escalation flags are OR'd rather than overwritten.
func (a *ResultAggregator) mergeStructured(merged map[string]interface{}, workerID string, structured map[string]interface{}) {
	for key, value := range structured {
		switch key {
		case keySuggestedReply, keyConfidence:
			continue
		case keyEscalation:
			if flag, ok := value.(bool); ok && flag {
				merged[keyEscalation] = true
			}
			continue
		}

		if _, taken := merged[key]; taken {
			merged[workerID+"_"+key] = value
		} else {
			merged[key] = value
		}
	}

	// Diagnostic workers nest the escalation flag inside the diagnosis block.
	if diag, ok := structured[keyFaultDiagnosis].(map[string]interface{}); ok {
		if flag, ok := diag[keyEscalation].(bool); ok && flag {
			merged[keyEscalation] = true
		}
	}
}

// parseStructuredText attempts to interpret worker output as a JSON object.
func parseStructuredText(text string) map[string]interface{} {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil
	}
	return parsed
}
