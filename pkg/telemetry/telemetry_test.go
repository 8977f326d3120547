package telemetry

import (
	"bytes"
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	"github.com/blockfs-io/blockfs/pkg/block"
)

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	tel, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := tel.(*NoopTelemetry); !ok {
		t.Errorf("Expected a no-op instance when telemetry is disabled, got %T", tel)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.SampleRate = 2.0

	if _, err := New(cfg); err == nil {
		t.Errorf("Expected an error for an invalid config")
	}
}

func TestNoopIsSafeToUse(t *testing.T) {
	tel := NewForTesting()
	ctx := context.Background()

	tel.RecordCounter(ctx, "test.counter", 1)
	tel.RecordHistogram(ctx, "test.histogram", 0.5)

	spanCtx, span := tel.StartSpan(ctx, "test.span")
	if spanCtx == nil || span == nil {
		t.Errorf("No-op StartSpan returned nils")
	}
	span.End()

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("No-op Shutdown returned %v", err)
	}
}

func TestCodecMetricsObservesCodec(t *testing.T) {
	rec := &recordingTelemetry{counters: make(map[string]int64)}
	codec := block.NewCodec(block.WithObserver(NewCodecMetrics(rec)))

	b := block.NewBlockWithChecksum(1, 2, 3, []byte{1, 2, 3, 4})
	var buf bytes.Buffer
	if err := codec.WriteBlock(&buf, b); err != nil {
		t.Fatalf("Failed to write block: %v", err)
	}
	var out block.Block
	if err := codec.ReadBlock(&buf, &out); err != nil {
		t.Fatalf("Failed to read block: %v", err)
	}

	if rec.counters["blockfs.codec.writes"] != 1 {
		t.Errorf("codec.writes = %d, expected 1", rec.counters["blockfs.codec.writes"])
	}
	if rec.counters["blockfs.codec.reads"] != 1 {
		t.Errorf("codec.reads = %d, expected 1", rec.counters["blockfs.codec.reads"])
	}
	if rec.histogramObservations != 2 {
		t.Errorf("histogram observations = %d, expected 2", rec.histogramObservations)
	}
}

// recordingTelemetry counts recordings without an SDK behind it.
type recordingTelemetry struct {
	NoopTelemetry
	counters              map[string]int64
	histogramObservations int
}

func (r *recordingTelemetry) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	r.counters[name] += value
}

func (r *recordingTelemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	r.histogramObservations++
}
