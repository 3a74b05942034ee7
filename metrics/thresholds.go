package metrics

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Threshold is the static alerting rule for one metric: a sample whose value
// exceeds Max generates a threshold alert.
type Threshold struct {
	Max float64 `yaml:"max"`
}

// DefaultThresholds returns the built-in threshold table.
func DefaultThresholds() map[string]Threshold {
	return map[string]Threshold{
		"api_response_time": {Max: 5000},
		"api_error_count":   {Max: 10},
		"memory_usage":      {Max: 85},
		"auth_failure":      {Max: 5},
	}
}

// Thresholds holds the alerting table, optionally overridden from a YAML
// file and hot-reloaded when that file changes.
type Thresholds struct {
	mu    sync.RWMutex
	table map[string]Threshold

	watcher *fsnotify.Watcher
	log     *slog.Logger
}

// NewThresholds returns the built-in table.
func NewThresholds() *Thresholds {
	return &Thresholds{table: DefaultThresholds(), log: slog.Default()}
}

// LoadThresholds merges a YAML override file over the built-in table. The
// file maps metric names to {max: <value>}.
func LoadThresholds(path string) (*Thresholds, error) {
	t := NewThresholds()
	if err := t.loadFile(path); err != nil {
		return nil, err
	}
	return t, nil
}

// Lookup returns the threshold for a metric name.
func (t *Thresholds) Lookup(name string) (Threshold, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	th, ok := t.table[name]
	return th, ok
}

// Evaluate reports whether the value breaches the metric's threshold and, if
// so, the severity. Twice the threshold is considered critical.
func (t *Thresholds) Evaluate(name string, value float64) (Severity, Threshold, bool) {
	th, ok := t.Lookup(name)
	if !ok || value <= th.Max {
		return "", th, false
	}
	if value >= th.Max*2 {
		return SeverityCritical, th, true
	}
	return SeverityWarning, th, true
}

// Watch reloads the override file on every change until Close. Reload
// failures keep the previous table and are logged.
func (t *Thresholds) Watch(path string, log *slog.Logger) error {
	if log != nil {
		t.log = log
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("metrics: threshold watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return fmt.Errorf("metrics: watch %s: %w", path, err)
	}
	t.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
					if err := t.loadFile(path); err != nil {
						t.log.Error("threshold reload failed",
							slog.String("path", path), slog.String("error", err.Error()))
						continue
					}
					t.log.Info("threshold table reloaded", slog.String("path", path))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				t.log.Error("threshold watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running.
func (t *Thresholds) Close() error {
	if t.watcher != nil {
		return t.watcher.Close()
	}
	return nil
}

func (t *Thresholds) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("metrics: read thresholds %s: %w", path, err)
	}
	var overrides map[string]Threshold
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return fmt.Errorf("metrics: parse thresholds %s: %w", path, err)
	}

	merged := DefaultThresholds()
	for name, th := range overrides {
		merged[name] = th
	}

	t.mu.Lock()
	t.table = merged
	t.mu.Unlock()
	return nil
}
