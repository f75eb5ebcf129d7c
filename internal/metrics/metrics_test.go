package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestMetrics_RecordsRunsAndNotifications(t *testing.T) {
	m := New()
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.ObserveRun(core.RunResult{Outcome: core.OutcomeSuccess, Detected: 3, StartedAt: started, CompletedAt: started.Add(2 * time.Second)})
	m.ObserveRun(core.RunResult{Outcome: core.OutcomeFetchError})
	m.ObserveNotification("webhook", nil)
	m.ObserveNotification("webhook", errors.New("timeout"))
	m.ObserveRecordSkipped("missing id")

	body := scrape(t, m)
	for _, want := range []string{
		`salewatch_runs_total{outcome="success"} 1`,
		`salewatch_runs_total{outcome="fetch_error"} 1`,
		`salewatch_sales_detected_total 3`,
		`salewatch_notifications_total{result="sent",transport="webhook"} 1`,
		`salewatch_notifications_total{result="failed",transport="webhook"} 1`,
		`salewatch_records_skipped_total 1`,
		`salewatch_run_duration_seconds_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}

func TestMetrics_InstancesAreIndependent(t *testing.T) {
	a := New()
	b := New()
	a.ObserveRecordSkipped("x")
	if strings.Contains(scrape(t, b), "salewatch_records_skipped_total 1") {
		t.Fatalf("registries should not be shared")
	}
}
