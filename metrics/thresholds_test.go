package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultThresholdTable(t *testing.T) {
	th := NewThresholds()

	cases := []struct {
		metric string
		max    float64
	}{
		{"api_response_time", 5000},
		{"api_error_count", 10},
		{"memory_usage", 85},
		{"auth_failure", 5},
	}
	for _, tc := range cases {
		got, ok := th.Lookup(tc.metric)
		if !ok {
			t.Errorf("Lookup(%q) missing", tc.metric)
			continue
		}
		if got.Max != tc.max {
			t.Errorf("Lookup(%q).Max = %g, want %g", tc.metric, got.Max, tc.max)
		}
	}

	if _, ok := th.Lookup("unknown_metric"); ok {
		t.Error("unknown metric should have no threshold")
	}
}

func TestEvaluate(t *testing.T) {
	th := NewThresholds()

	if _, _, breached := th.Evaluate("api_error_count", 10); breached {
		t.Error("value equal to the threshold must not breach")
	}
	sev, _, breached := th.Evaluate("api_error_count", 11)
	if !breached || sev != SeverityWarning {
		t.Errorf("Evaluate(11) = %v, %v; want warning breach", sev, breached)
	}
	sev, _, breached = th.Evaluate("api_error_count", 20)
	if !breached || sev != SeverityCritical {
		t.Errorf("Evaluate(20) = %v, %v; want critical breach", sev, breached)
	}
	if _, _, breached := th.Evaluate("untracked", 1e9); breached {
		t.Error("untracked metrics never breach")
	}
}

func TestLoadThresholdsMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	body := "api_error_count:\n  max: 25\ncustom_metric:\n  max: 3\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	th, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if got, _ := th.Lookup("api_error_count"); got.Max != 25 {
		t.Errorf("override not applied, Max = %g", got.Max)
	}
	if got, _ := th.Lookup("custom_metric"); got.Max != 3 {
		t.Errorf("new metric not loaded, Max = %g", got.Max)
	}
	// Defaults survive the merge.
	if got, _ := th.Lookup("memory_usage"); got.Max != 85 {
		t.Errorf("default lost, Max = %g", got.Max)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	if err := os.WriteFile(path, []byte("cpu:\n  max: 10\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	th, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if err := th.Watch(path, nil); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer th.Close()

	if err := os.WriteFile(path, []byte("cpu:\n  max: 99\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := th.Lookup("cpu"); got.Max == 99 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("threshold table was never reloaded after the file changed")
}
