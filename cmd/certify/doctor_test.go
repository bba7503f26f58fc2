package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/certify/pkg/telemetry/health"
)

func resetDoctor(t *testing.T, binaries ...string) {
	t.Helper()
	oldFlags, oldLookPath := doctorFlags, lookPath
	t.Cleanup(func() { doctorFlags, lookPath = oldFlags, oldLookPath })
	doctorFlags.timeout = 2 * time.Second
	doctorFlags.format = "json"
	lookPath = func(file string) (string, error) {
		for _, b := range binaries {
			if b == file {
				return "/usr/local/bin/" + file, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func runDoctorJSON(t *testing.T) (health.HealthStatus, error) {
	t.Helper()
	cmd, buf := newTestCmd()
	err := runDoctor(cmd, nil)

	var status health.HealthStatus
	if jsonErr := json.Unmarshal(buf.Bytes(), &status); jsonErr != nil {
		t.Fatalf("output is not JSON: %v\n%s", jsonErr, buf.String())
	}
	return status, err
}

func checkStatuses(status health.HealthStatus) map[string]string {
	out := make(map[string]string, len(status.Checks))
	for _, c := range status.Checks {
		out[c.Name] = c.Status
	}
	return out
}

func TestDoctorReady(t *testing.T) {
	setupEnv(t)
	resetDoctor(t, "opa")

	status, err := runDoctorJSON(t)
	if err != nil {
		t.Fatalf("runDoctor() error = %v", err)
	}

	want := map[string]string{
		"policies": health.StatusOK,
		"opa":      health.StatusOK,
		"scoring":  health.StatusSkipped,
		"pdf":      health.StatusSkipped,
		"evidence": health.StatusOK,
	}
	got := checkStatuses(status)
	for name, s := range want {
		if got[name] != s {
			t.Errorf("check %q = %q, want %q", name, got[name], s)
		}
	}
	if status.Checks[0].Name != "policies" {
		t.Errorf("first check = %q, want policies", status.Checks[0].Name)
	}
}

func TestDoctorMissingBinaries(t *testing.T) {
	env := setupEnv(t)
	resetDoctor(t)
	writeFile(t, cfgFile, `policy:
  root: `+filepath.Join(env.dir, "empty")+`
report:
  formats: [markdown, pdf]
evidence:
  enabled: false
`)

	status, err := runDoctorJSON(t)
	if !errors.Is(err, errNotReady) {
		t.Fatalf("runDoctor() error = %v, want %v", err, errNotReady)
	}
	if status.Status != health.StatusDegraded {
		t.Errorf("Status = %q, want degraded", status.Status)
	}

	got := checkStatuses(status)
	for name, s := range map[string]string{
		"policies": health.StatusUnhealthy,
		"opa":      health.StatusUnhealthy,
		"pdf":      health.StatusUnhealthy,
		"evidence": health.StatusSkipped,
	} {
		if got[name] != s {
			t.Errorf("check %q = %q, want %q", name, got[name], s)
		}
	}
}

func TestDoctorServers(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	env := setupEnv(t)
	resetDoctor(t)
	writeFile(t, cfgFile, `policy:
  root: `+filepath.Join(env.dir, "policies")+`
  library_dirs: [common]
engine:
  mode: server
  server_url: `+healthy.URL+`/
scoring:
  backend: http
  url: `+broken.URL+`/score
evidence:
  backend: memory
`)

	status, err := runDoctorJSON(t)
	if err == nil {
		t.Fatal("runDoctor() error = nil, want failure for the scoring service")
	}

	got := checkStatuses(status)
	if got["opa"] != health.StatusOK {
		t.Errorf("opa = %q, want ok", got["opa"])
	}
	if got["scoring"] != health.StatusUnhealthy {
		t.Errorf("scoring = %q, want unhealthy", got["scoring"])
	}
	if got["evidence"] != health.StatusOK {
		t.Errorf("evidence = %q, want ok", got["evidence"])
	}
}

func TestDoctorText(t *testing.T) {
	setupEnv(t)
	resetDoctor(t, "opa")
	doctorFlags.format = "text"

	cmd, buf := newTestCmd()
	if err := runDoctor(cmd, nil); err != nil {
		t.Fatalf("runDoctor() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"policies   ok", "pdf        skipped", "Status: ready"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
