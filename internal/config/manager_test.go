package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"terminbot/pkg/logx"
)

const validYAML = `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
database:
  path: "/tmp/subs.db"
watch:
  min_interval: "15m"
  housekeeping_interval: "30m"
  probe_timeout: "2m"
metrics:
  enabled: true
  listen: ":9090"
health:
  ping_url: ""
logging:
  level: "info"
  console: true
  file:
    enabled: false
    path: ""
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Watch.MinInterval != "15m" || !cfg.Metrics.Enabled {
		t.Fatalf("cfg = %+v", cfg)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML+"\nsurprise: true\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestParseValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing token",
			yaml: "telegram:\n  token: \"\"\ndatabase:\n  path: \"/tmp/x.db\"\n",
			want: "telegram.token",
		},
		{
			name: "missing database path",
			yaml: "telegram:\n  token: \"123:abc\"\ndatabase:\n  path: \"\"\n",
			want: "database.path",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfig(t, "config.yaml", tt.yaml))
			_, err := m.Parse()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestParseJSONPassthrough(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"telegram": {"token": "123:abc"}, "database": {"path": "/tmp/x.db"}}`))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Database.Path != "/tmp/x.db" {
		t.Fatalf("path = %q", cfg.Database.Path)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("watch.min_interval", "45m", 15*time.Minute); err != nil || d != 45*time.Minute {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if d, err := ParseDurationOrDefault("watch.min_interval", "", 15*time.Minute); err != nil || d != 15*time.Minute {
		t.Fatalf("empty: got (%v, %v)", d, err)
	}
	if _, err := ParseDurationOrDefault("watch.min_interval", "soon", 15*time.Minute); err == nil {
		t.Fatal("expected error for malformed duration")
	}
	if _, err := ParseDurationField("watch.min_interval", "-5m"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestWatchPublishesReload(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	m.SetLogger(logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// give the watcher a moment to arm before writing
	time.Sleep(100 * time.Millisecond)
	updated := strings.Replace(validYAML, `min_interval: "15m"`, `min_interval: "20m"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-ch:
		if cfg.Watch.MinInterval != "20m" {
			t.Fatalf("published min_interval = %q, want 20m", cfg.Watch.MinInterval)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no config published after file change")
	}

	cancel()
	<-done
}
