package logger

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// captureStdout подменяет os.Stdout на время fn и возвращает вывод.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	_ = w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read pipe: %v", err)
	}
	return string(out)
}

func TestInit_StdBackendTextOutput(t *testing.T) {
	out := captureStdout(t, func() {
		Init(Config{
			Env:     EnvDev,
			Service: "collab-service",
			Version: "v0.0.0-test",
			Backend: BackendStd,
		})
		slog.Info("hello", "course", "course-42")
	})

	if !strings.Contains(out, "msg=hello") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "service=collab-service") {
		t.Errorf("output missing service attr: %q", out)
	}
	if !strings.Contains(out, "course=course-42") {
		t.Errorf("output missing custom attr: %q", out)
	}
}

func TestInit_ZapBackendJSONOutput(t *testing.T) {
	out := captureStdout(t, func() {
		Init(Config{
			Env:     EnvProd,
			Service: "collab-service",
			Backend: BackendZap,
		})
		slog.Info("hello")
	})

	line := strings.TrimSpace(out)
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("zap backend output is not JSON: %q", line)
	}
	if m["service"] != "collab-service" {
		t.Errorf("service attr: got %v", m["service"])
	}
}

func TestL_InitializesOnDemand(t *testing.T) {
	def = nil
	if L() == nil {
		t.Fatal("L() returned nil")
	}
}

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	if got := DetectEnv(); got != EnvProd {
		t.Errorf("APP_ENV=production: got %v", got)
	}

	t.Setenv("APP_ENV", "")
	if got := DetectEnv(); got != EnvDev {
		t.Errorf("empty APP_ENV: got %v", got)
	}
}
