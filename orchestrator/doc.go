// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

/*
Package orchestrator provides the CareFlow conversation orchestrator - the
routing and coordination engine that decides how each customer message is
handled and by whom.

# Overview

Every inbound message runs through a fixed pipeline:

	Message → Signal Collector → Mode Decider → Worker Dispatcher → Aggregator

The Signal Collector gathers sentiment/risk classification, customer tier,
and a local complexity score concurrently, substituting neutral defaults for
any lookup that fails. The Mode Decider maps those signals plus the message
scenario to one of four execution modes:

  - simple: one worker answers directly
  - parallel: the full worker set runs under a shared deadline and the
    results are merged deterministically
  - agent_supervised: one worker answers; low-confidence drafts are
    escalated to a human operator for confirmation or correction
  - human_first: the conversation is handed straight to an operator, with
    knowledge-base suggestions pushed to their console

# Human Handoff

The HandoffBridge suspends a dispatch until operator input arrives for the
conversation, or the wait deadline expires. Its pending-slot registry is the
only mutable shared state in the core: one slot per conversation, resolved
exactly once. Operator input arrives out of band, through the websocket
operator hub or the operator input endpoint.

# Failure behavior

Lookup failures are defaulted, worker failures inside a parallel dispatch
are tolerated while at least one worker succeeds, and deadline overruns
degrade to canned handoff replies. The orchestrator never surfaces an
unstructured crash to a customer.
*/
package orchestrator
