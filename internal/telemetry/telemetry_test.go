package telemetry

import (
	"context"
	"testing"
)

func TestInitDisabledYieldsUsableNoopTracer(t *testing.T) {
	shutdown, err := Init(Config{Enabled: false})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer shutdown(context.Background())

	tracer := GetTracer()
	_, span := tracer.StartSpan(context.Background(), "test.span")
	span.End()
}

func TestInitEnabledInstallsRealProvider(t *testing.T) {
	shutdown, err := Init(Config{Enabled: true, ServiceName: "ctxmgr-test"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer shutdown(context.Background())

	tracer := GetTracer()
	_, span := tracer.StartSpan(context.Background(), "test.span")
	span.End()
}

func TestTruncateForLog(t *testing.T) {
	short := "hello"
	if TruncateForLog(short, 10) != short {
		t.Fatal("expected short strings to pass through unchanged")
	}
	long := "0123456789abcdef"
	got := TruncateForLog(long, 4)
	if got == long {
		t.Fatal("expected truncation to change the string")
	}
}
