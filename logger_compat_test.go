package workflow

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-logger/glog"
)

type glogCompatLogger struct {
	logger glog.Logger
}

func (l glogCompatLogger) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l glogCompatLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l glogCompatLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l glogCompatLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l glogCompatLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l glogCompatLogger) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l glogCompatLogger) WithContext(ctx context.Context) Logger {
	if l.logger == nil {
		return NewFmtLogger(nil).WithContext(ctx)
	}
	return glogCompatLogger{logger: l.logger.WithContext(ctx)}
}

func (l glogCompatLogger) WithFields(fields map[string]any) Logger {
	if l.logger == nil {
		return NewFmtLogger(nil).WithFields(fields)
	}
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogCompatLogger{logger: fl.WithFields(fields)}
	}
	return l
}

func TestGlogSatisfiesLoggerContract(t *testing.T) {
	buf := &bytes.Buffer{}
	base := glog.NewLogger(
		glog.WithWriter(buf),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel("trace"),
	)

	var logger Logger = glogCompatLogger{logger: base}
	logger = NormalizeLogger(logger)

	logger.Info("sync complete flow=%s", "flow-1")
	if !strings.Contains(buf.String(), "flow-1") {
		t.Fatalf("expected structured output, got %q", buf.String())
	}

	fielded := WithLoggerFields(logger, map[string]any{"workflow_id": "wf-1"})
	fielded.Debug("step finished")
	if !strings.Contains(buf.String(), "wf-1") {
		t.Fatalf("expected field output, got %q", buf.String())
	}
}

func TestFmtLoggerFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewFmtLogger(buf)

	fielded := WithLoggerFields(logger, map[string]any{"execution_id": "exec-9"})
	fielded.Warn("retrying step %s", "qualify")

	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "retrying step qualify") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "execution_id=exec-9") {
		t.Fatalf("fields missing from %q", out)
	}
}

func TestNormalizeLoggerNil(t *testing.T) {
	if NormalizeLogger(nil) == nil {
		t.Fatal("normalize must never return nil")
	}
}
