package health

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{name: "default timeout", timeout: 0, expectedTimeout: 5 * time.Second},
		{name: "custom timeout", timeout: 10 * time.Second, expectedTimeout: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Errorf("expected 0 checks, got %d", len(checker.ListChecks()))
			}
		})
	}
}

func TestRegisterCheckKeepsOrder(t *testing.T) {
	checker := New(time.Second)
	for _, name := range []string{"policies", "opa", "evidence"} {
		checker.RegisterCheck(name, func(ctx context.Context) error { return nil })
	}
	checker.RegisterCheck("opa", func(ctx context.Context) error { return errors.New("replaced") })

	got := checker.ListChecks()
	want := []string{"policies", "opa", "evidence"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("ListChecks() = %v, want %v", got, want)
	}

	status := checker.CheckReadiness(context.Background())
	if status.Checks[1].Message != "replaced" {
		t.Errorf("opa check = %+v, want the replacement", status.Checks[1])
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		want       map[string]string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: StatusReady,
			want:       map[string]string{},
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"policies": func(ctx context.Context) error { return nil },
				"opa":      func(ctx context.Context) error { return nil },
			},
			wantStatus: StatusReady,
			want:       map[string]string{"policies": StatusOK, "opa": StatusOK},
		},
		{
			name: "skipped does not degrade",
			checks: map[string]CheckFunc{
				"policies": func(ctx context.Context) error { return nil },
				"pdf":      func(ctx context.Context) error { return Skip("pdf reports are not enabled") },
			},
			wantStatus: StatusReady,
			want:       map[string]string{"policies": StatusOK, "pdf": StatusSkipped},
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"policies": func(ctx context.Context) error { return nil },
				"opa":      func(ctx context.Context) error { return errors.New(`executable "opa" not found`) },
			},
			wantStatus: StatusDegraded,
			want:       map[string]string{"policies": StatusOK, "opa": StatusUnhealthy},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			if status.Ready() != (tt.wantStatus == StatusReady) {
				t.Errorf("Ready() = %v", status.Ready())
			}
			if len(status.Checks) != len(tt.want) {
				t.Fatalf("Checks = %d, want %d", len(status.Checks), len(tt.want))
			}
			for _, r := range status.Checks {
				if r.Status != tt.want[r.Name] {
					t.Errorf("check %q status = %q, want %q", r.Name, r.Status, tt.want[r.Name])
				}
			}
		})
	}
}

func TestCheckMessages(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("pdf", func(ctx context.Context) error { return Skip("pdf reports are not enabled") })
	checker.RegisterCheck("evidence", func(ctx context.Context) error { return fmt.Errorf("open: %w", errors.New("disk full")) })

	status := checker.CheckReadiness(context.Background())
	if got := status.Checks[0].Message; got != "pdf reports are not enabled" {
		t.Errorf("skip message = %q", got)
	}
	if got := status.Checks[1].Message; got != "open: disk full" {
		t.Errorf("failure message = %q", got)
	}
}

func TestCheckTimeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("scoring", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusDegraded {
		t.Errorf("Status = %q, want %q", status.Status, StatusDegraded)
	}
	r := status.Checks[0]
	if r.Status != StatusUnhealthy {
		t.Errorf("check status = %q, want %q", r.Status, StatusUnhealthy)
	}
	if r.Message != ErrCheckTimeout.Error() && r.Message != context.DeadlineExceeded.Error() {
		t.Errorf("message = %q, want a timeout", r.Message)
	}
}

func TestCheckReadinessTimestamp(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	checker := New(time.Second)
	checker.now = func() time.Time { return fixed }

	if got := checker.CheckReadiness(context.Background()).Timestamp; !got.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", got, fixed)
	}
}
