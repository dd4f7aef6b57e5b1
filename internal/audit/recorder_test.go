// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/tomtom215/gateward/internal/authz"
)

func counterValue(counter prometheus.Counter) float64 {
	var m io_prometheus_client.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// capturePublisher records published messages in memory.
type capturePublisher struct {
	mu       sync.Mutex
	messages []*message.Message
	err      error
}

func (p *capturePublisher) Publish(_ string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msgs...)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) published() []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*message.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestNewRecorderRequiresPublisher(t *testing.T) {
	if _, err := NewRecorder(nil, 8); !errors.Is(err, ErrNoPublisher) {
		t.Errorf("NewRecorder(nil) = %v, want ErrNoPublisher", err)
	}
}

func TestRecorderPublishesDecisions(t *testing.T) {
	publisher := &capturePublisher{}
	recorder, err := NewRecorder(publisher, 8)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = recorder.Serve(ctx)
	}()

	recorder.RecordDecision(context.Background(), authz.DecisionRecord{
		Subject:   "alice",
		Operation: "Reports|Export|GET",
		Allowed:   false,
		Status:    403,
		Phase:     authz.PhaseRequest,
	})

	waitFor(t, time.Second, func() bool { return len(publisher.published()) == 1 })
	cancel()
	<-done

	msg := publisher.published()[0]
	if msg.Metadata.Get(metadataOutcome) != "forbidden" {
		t.Errorf("outcome metadata = %q, want forbidden", msg.Metadata.Get(metadataOutcome))
	}
	if msg.Metadata.Get(metadataPhase) != string(authz.PhaseRequest) {
		t.Errorf("phase metadata = %q", msg.Metadata.Get(metadataPhase))
	}

	e, err := UnmarshalEvent(msg.Payload)
	if err != nil {
		t.Fatalf("UnmarshalEvent failed: %v", err)
	}
	if e.Subject != "alice" || e.Operation != "Reports|Export|GET" || e.Allowed || e.Status != 403 {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestRecorderDropsWhenBufferFull(t *testing.T) {
	// No Serve loop running: the buffer never drains.
	recorder, err := NewRecorder(&capturePublisher{}, 1)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	before := counterValue(droppedTotal)

	rec := authz.DecisionRecord{Subject: "alice", Operation: "op", Phase: authz.PhaseRequest}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			recorder.RecordDecision(context.Background(), rec)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordDecision blocked on a full buffer")
	}

	if got := counterValue(droppedTotal) - before; got != 2 {
		t.Errorf("dropped %v events, want 2", got)
	}
}

func TestRecorderSurvivesPublishFailure(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("broker gone")}
	recorder, err := NewRecorder(publisher, 8)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	before := counterValue(droppedTotal)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = recorder.Serve(ctx)
	}()

	recorder.RecordDecision(context.Background(), authz.DecisionRecord{
		Subject: "alice", Operation: "op", Phase: authz.PhaseRequest,
	})

	waitFor(t, time.Second, func() bool { return counterValue(droppedTotal)-before >= 1 })
	cancel()
	<-done
}
