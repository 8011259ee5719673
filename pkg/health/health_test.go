package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func static(s Status) Check {
	return func(ctx context.Context) ComponentHealth { return ComponentHealth{Status: s} }
}

func TestRunAggregates(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Status
		want   Status
	}{
		{"empty", nil, StatusUp},
		{"all up", map[string]Status{"a": StatusUp, "b": StatusUp}, StatusUp},
		{"degraded", map[string]Status{"a": StatusUp, "b": StatusDegraded}, StatusDegraded},
		{"down wins", map[string]Status{"a": StatusDegraded, "b": StatusDown, "c": StatusUp}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, s := range tt.checks {
				c.Register(name, static(s))
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.checks))
			}
		})
	}
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck(pingFunc(func(context.Context) error { return nil }), StatusDegraded)
	if got := ok(context.Background()).Status; got != StatusUp {
		t.Errorf("healthy ping = %s", got)
	}
	bad := PingCheck(pingFunc(func(context.Context) error { return errors.New("refused") }), StatusDegraded)
	res := bad(context.Background())
	if res.Status != StatusDegraded || res.Message != "refused" {
		t.Errorf("failing ping = %+v", res)
	}
	if got := PingCheck(nil, StatusDown)(context.Background()).Status; got != StatusDown {
		t.Errorf("nil pinger = %s", got)
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("index", static(StatusDown))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Components["index"].Status != StatusDown {
		t.Errorf("report = %+v", report)
	}

	rec = httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d", rec.Code)
	}
}
