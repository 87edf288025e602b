package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(LevelWarn)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")
	l.Error("also visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("filtered levels leaked: %s", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "also visible") {
		t.Errorf("warn/error missing: %s", out)
	}
}

func TestFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.Info("msg", map[string]interface{}{"zebra": 1, "alpha": 2, "mid": 3})

	out := buf.String()
	a, m, z := strings.Index(out, "alpha="), strings.Index(out, "mid="), strings.Index(out, "zebra=")
	if a < 0 || m < 0 || z < 0 {
		t.Fatalf("fields missing: %s", out)
	}
	if !(a < m && m < z) {
		t.Errorf("fields not sorted: %s", out)
	}
}

func TestComponentInOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.WithComponent("tools").Info("dispatching")
	if !strings.Contains(buf.String(), "[tools]") {
		t.Errorf("component missing: %s", buf.String())
	}
}

func TestToolResultLogsFailureAsError(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.ToolResult("describe_table", 12*time.Millisecond, errors.New("no such table"))

	out := buf.String()
	if !strings.Contains(out, "ERROR") {
		t.Errorf("tool failure should log at error: %s", out)
	}
	if !strings.Contains(out, "no such table") {
		t.Errorf("error text missing: %s", out)
	}
}

func TestRoundStart(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.RoundStart(2, 3)
	out := buf.String()
	if !strings.Contains(out, "round=2") || !strings.Contains(out, "budget=3") {
		t.Errorf("round fields missing: %s", out)
	}
}
