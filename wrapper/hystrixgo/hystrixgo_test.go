package hystrixgo

/*
 * Copyright 2020-2026 Aldelo, LP
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// TestInitValidatesCommandName covers the one config knob store.Table relies
// on: a blank command name fails Init outright, since hystrix.ConfigureCommand
// keys circuits by that name.
func TestInitValidatesCommandName(t *testing.T) {
	cb := &CircuitBreaker{}

	if err := cb.Init(); err == nil {
		t.Fatal("Init should require a non-blank CommandName")
	} else if !strings.Contains(err.Error(), "Command Name is Required") {
		t.Errorf("unexpected Init error: %v", err)
	}
}

// TestInitAppliesDefaults covers §4.4's circuit breaker config defaults
// (Timeout 1000ms, MaxConcurrentRequests 10, RequestVolumeThreshold 20,
// SleepWindow 5000ms, ErrorPercentThreshold 50) when zero-valued.
func TestInitAppliesDefaults(t *testing.T) {
	cb := &CircuitBreaker{CommandName: "test-defaults"}

	if err := cb.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if cb.TimeOut != 1000 {
		t.Errorf("TimeOut default = %d, want 1000", cb.TimeOut)
	}
	if cb.MaxConcurrentRequests != 10 {
		t.Errorf("MaxConcurrentRequests default = %d, want 10", cb.MaxConcurrentRequests)
	}
	if cb.RequestVolumeThreshold != 20 {
		t.Errorf("RequestVolumeThreshold default = %d, want 20", cb.RequestVolumeThreshold)
	}
	if cb.SleepWindow != 5000 {
		t.Errorf("SleepWindow default = %d, want 5000", cb.SleepWindow)
	}
	if cb.ErrorPercentThreshold != 50 {
		t.Errorf("ErrorPercentThreshold default = %d, want 50", cb.ErrorPercentThreshold)
	}
}

// TestGoCRunsLogicAndReturnsResult covers the happy path store.Table depends
// on: GoC must hand back whatever the run func produces.
func TestGoCRunsLogicAndReturnsResult(t *testing.T) {
	cb := &CircuitBreaker{CommandName: "test-goc-success"}
	if err := cb.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	out, err := cb.GoC(context.Background(), func(dataIn interface{}, ctx ...context.Context) (interface{}, error) {
		return "ok", nil
	}, nil, nil)

	if err != nil {
		t.Fatalf("GoC returned error: %v", err)
	}
	if out != "ok" {
		t.Errorf("GoC result = %v, want \"ok\"", out)
	}
}

// TestGoCPropagatesRunError covers the failure path: when run returns an
// error and no fallback is set, GoC must surface it rather than swallow it.
func TestGoCPropagatesRunError(t *testing.T) {
	cb := &CircuitBreaker{CommandName: "test-goc-failure"}
	if err := cb.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	wantErr := errors.New("boom")
	_, err := cb.GoC(context.Background(), func(dataIn interface{}, ctx ...context.Context) (interface{}, error) {
		return nil, wantErr
	}, nil, nil)

	if err == nil {
		t.Fatal("GoC should propagate the run func's error")
	}
}

// TestGoCRequiresContext covers the nil-context guard GoC needs before it
// ever reaches hystrix.GoC, which panics on a nil context.
func TestGoCRequiresContext(t *testing.T) {
	cb := &CircuitBreaker{CommandName: "test-goc-nilctx"}
	if err := cb.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	_, err := cb.GoC(nil, func(dataIn interface{}, ctx ...context.Context) (interface{}, error) {
		return "unreached", nil
	}, nil, nil)

	if err == nil || !strings.Contains(err.Error(), "Context is Required") {
		t.Errorf("GoC with nil context = %v, want Context is Required error", err)
	}
}

// TestDisableCircuitBreakerBypassesHystrix covers the DisableCircuitBreaker
// pass-through mode, which runs run() directly.
func TestDisableCircuitBreakerBypassesHystrix(t *testing.T) {
	cb := &CircuitBreaker{CommandName: "test-goc-disabled", DisableCircuitBreaker: true}
	if err := cb.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	out, err := cb.GoC(context.Background(), func(dataIn interface{}, ctx ...context.Context) (interface{}, error) {
		return "direct", nil
	}, nil, nil)

	if err != nil {
		t.Fatalf("GoC returned error: %v", err)
	}
	if out != "direct" {
		t.Errorf("GoC result = %v, want \"direct\"", out)
	}
}

// TestIsOpenFalseBeforeTrip covers the OPTIONS/health surface: an
// uninitialized or freshly-initialized circuit must read closed.
func TestIsOpenFalseBeforeTrip(t *testing.T) {
	cb := &CircuitBreaker{CommandName: "test-isopen-unknown"}
	if cb.IsOpen() {
		t.Error("IsOpen should be false for a circuit that was never configured")
	}

	if err := cb.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if cb.IsOpen() {
		t.Error("IsOpen should be false immediately after Init")
	}
}
