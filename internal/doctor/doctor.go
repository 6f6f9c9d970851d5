// Package doctor runs readiness diagnostics for config, credentials, storage,
// the gateway and audio.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jdros15/Talking-LLM/internal/audio"
	"github.com/jdros15/Talking-LLM/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// Credentials reports where the API keys come from.
type Credentials interface {
	HasCredentials() bool
	KeySource() string
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, creds Credentials) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	}}

	checks = append(checks, checkCredentials(creds))
	if cfg.Config.Reply.Backend == "openai" {
		checks = append(checks, checkEnv("OPENAI_API_KEY", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "openai reply backend key present", "reply.backend is openai but OPENAI_API_KEY is empty"))
	}
	checks = append(checks, checkStorage(cfg.Config))
	checks = append(checks, checkGateway(ctx, cfg.Config))

	if cfg.Config.Playback.Backend == "command" {
		checks = append(checks, checkCommand(cfg.Config.Playback.Command.Argv, "playback.command"))
	}
	if cfg.Config.Indicator.Enable && strings.EqualFold(cfg.Config.Indicator.Backend, "desktop") {
		checks = append(checks, checkBinary("busctl", "desktop notifications use busctl"))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))

	return Report{Checks: checks}
}

func checkCredentials(creds Credentials) Check {
	if creds == nil || !creds.HasCredentials() {
		return Check{Name: "credentials", Pass: false, Message: "API keys missing; run `talkie keys set <gemini> <elevenlabs>`"}
	}
	return Check{Name: "credentials", Pass: true, Message: "API keys loaded from " + creds.KeySource()}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkStorage verifies the store directory accepts writes. The database file
// itself is left alone since a running chat session holds its lock.
func checkStorage(cfg config.Config) Check {
	if cfg.Storage.Backend == "memory" {
		return Check{Name: "storage", Pass: true, Message: "memory-only; nothing is persisted"}
	}
	path, err := config.ResolveStoragePath(cfg)
	if err != nil {
		return Check{Name: "storage", Pass: false, Message: err.Error()}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "storage", Pass: false, Message: fmt.Sprintf("create %s: %v", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Check{Name: "storage", Pass: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return Check{Name: "storage", Pass: true, Message: fmt.Sprintf("writable at %s", path)}
}

// checkGateway probes the gateway base URL. Any HTTP answer below 500 counts
// as reachable since the functions reject bare GETs.
func checkGateway(ctx context.Context, cfg config.Config) Check {
	base := strings.TrimRight(strings.TrimSpace(cfg.Gateway.BaseURL), "/")
	if base == "" {
		return Check{Name: "gateway", Pass: false, Message: "gateway.base_url is empty"}
	}

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	url := base + cfg.Gateway.VoicesPath
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: "gateway", Pass: false, Message: fmt.Sprintf("build request: %v", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "gateway", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Check{Name: "gateway", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: "gateway", Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", base, resp.StatusCode)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
