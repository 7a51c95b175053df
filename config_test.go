package vardr

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vardr.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Workers != 10 {
		t.Errorf("default workers: got %d want 10", c.Workers)
	}
	if c.DeviceTimeout() != 60*time.Second {
		t.Errorf("default timeout: got %v want 60s", c.DeviceTimeout())
	}
	if c.CollectionInterval() != time.Hour {
		t.Errorf("default interval: got %v want 1h", c.CollectionInterval())
	}
	if c.ChangeThreshold != 0.1 {
		t.Errorf("default threshold: got %f want 0.1", c.ChangeThreshold)
	}
	if !c.DetectChanges {
		t.Errorf("change detection should be on by default")
	}
}

func TestParseFile(t *testing.T) {
	path := writeConfig(t, `workers: 3
timeout: 30
change_threshold: 0.25
database: /var/lib/vardr/vardr.db
inventory: /etc/vardr/hosts.yaml
`)
	c, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if c.Workers != 3 || c.Timeout != 30 || c.ChangeThreshold != 0.25 {
		t.Errorf("overrides not applied: %+v", c)
	}
	// Untouched keys keep their defaults.
	if c.Interval != 3600 || c.Community != "public" {
		t.Errorf("defaults lost on partial config: %+v", c)
	}
}

func TestParseFileRejectsBadValues(t *testing.T) {
	if _, err := ParseFile(writeConfig(t, "workers: 0\n")); err == nil {
		t.Errorf("expected error for zero workers")
	}
	if _, err := ParseFile(writeConfig(t, "change_threshold: -0.5\n")); err == nil {
		t.Errorf("expected error for negative threshold")
	}
	if _, err := ParseFile(writeConfig(t, "workers: [nope\n")); err == nil {
		t.Errorf("expected error for broken yaml")
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestBackoff(t *testing.T) {
	c := Default()
	c.RetryDelay = 2
	if got := c.Backoff(0); got != 2*time.Second {
		t.Errorf("first backoff: got %v want 2s", got)
	}
	if got := c.Backoff(1); got != 4*time.Second {
		t.Errorf("second backoff: got %v want 4s", got)
	}
}
