package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordCommand("gui_interaction", "success", "fast_path")
	r.RecordFallback("low_confidence")
	r.RecordLockTimeout()
	r.RecordStage("classify", time.Millisecond)
	r.RecordDeferredTransition("idle", "preparing")
	r.RecordAudioDropped("low")
	r.CommandStarted()
	r.CommandFinished()
	if r.Registry() != nil {
		t.Error("nil recorder should expose nil registry")
	}
}

func TestRecorderExposesMetrics(t *testing.T) {
	r := NewRecorder(Config{})

	r.RecordCommand("question_answering", "success", "fast_path")
	r.RecordCommand("question_answering", "error", "slow_path")
	r.RecordFallback("low_confidence")
	r.RecordLockTimeout()
	r.RecordStage("execute", 120*time.Millisecond)
	r.RecordDeferredTransition("waiting", "executing")
	r.RecordAudioDropped("low")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`aura_commands_total{intent="question_answering",method="fast_path",status="success"} 1`,
		`aura_commands_total{intent="question_answering",method="slow_path",status="error"} 1`,
		`aura_fallback_total{reason="low_confidence"} 1`,
		"aura_lock_timeouts_total 1",
		`aura_deferred_transitions_total{from="waiting",to="executing"} 1`,
		`aura_audio_dropped_total{priority="low"} 1`,
		"aura_stage_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestInflightGauge(t *testing.T) {
	r := NewRecorder(Config{})
	r.CommandStarted()
	r.CommandStarted()
	r.CommandFinished()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "aura_commands_inflight 1") {
		t.Errorf("inflight gauge should read 1:\n%s", rec.Body.String())
	}
}
