// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the CareFlow conversation orchestrator.
//
// The orchestrator routes each inbound customer message to one of several
// processing strategies - direct automated reply, parallel multi-worker
// analysis, automated reply with operator audit, or human handoff - based on
// computed risk and complexity signals.
//
// Usage:
//
//	./orchestrator
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8082)
//	BACKEND_URL - backend tool API base URL
//	ROUTING_CONFIG - routing configuration YAML (optional)
//	REDIS_URL - signals prefetch cache (optional)
//	DATABASE_URL - PostgreSQL audit trail (optional)
//	JWT_SECRET - operator endpoint auth secret (optional)
package main

import (
	"careflow/platform/orchestrator"
)

func main() {
	orchestrator.Run()
}
