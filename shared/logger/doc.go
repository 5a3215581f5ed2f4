// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides structured JSON logging for CareFlow components.

# Overview

The logger outputs one JSON object per line to stdout, making logs easily
consumable by CloudWatch, ELK, or any other log aggregation stack.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (orchestrator, backend, etc.)
  - Instance ID and container name (for distributed tracing)
  - Conversation ID (for per-conversation correlation)
  - Request ID (for request correlation)

# Usage

	svcLog := logger.New("orchestrator")
	svcLog.Info(conversationID, requestID, "dispatch completed", map[string]interface{}{
		"mode":       "parallel",
		"confidence": 0.82,
	})
*/
package logger
