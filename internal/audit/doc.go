// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

// Package audit records every authorization decision the filter and the
// cache revalidation path make.
//
// # Architecture
//
// The pipeline is a producer-consumer chain built on Watermill:
//
//	Recorder.RecordDecision() -> buffer (chan) -> gochannel topic -> router
//	                                 |                                 |
//	                            non-blocking              log / store / stream sinks
//
// The Recorder implements authz.DecisionRecorder and never blocks a
// request: when the buffer is full the event is dropped and counted.
// A Watermill message router fans each event out to three consumer
// handlers: a structured log sink, a persistent store sink, and a
// websocket broadcast sink for connected admin clients. Router
// middleware recovers handler panics and retries transient store
// failures with exponential backoff.
//
// # Stores
//
// Store is the persistence seam. MemoryStore keeps a bounded in-memory
// window for tests and single-node deployments; BadgerStore persists
// events to a Badger database with per-event TTL so retention is
// enforced by the storage engine itself. Queries filter by subject and
// time, newest first.
//
// # Stream
//
// Hub fans live events out to websocket clients. Registration,
// unregistration, and broadcast all go through the hub's run loop, so
// client state never races with delivery. A slow client loses events
// rather than slowing the pipeline.
//
// All exported types are safe for concurrent use.
package audit
