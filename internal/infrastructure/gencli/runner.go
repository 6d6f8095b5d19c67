// Package gencli is the shared transport for the generative CLI: subprocess
// invocation with a stdin fallback, plus a direct HTTP fallback against the
// generateContent endpoint when the subprocess transport fails entirely.
package gencli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const cmdEnv = "GEMINI_CLI_CMD"

// ErrCommandNotFound reports that no invocation transport could locate the
// CLI binary. The message carries remediation steps because this is the
// failure operators actually hit.
var ErrCommandNotFound = errors.New("generative CLI not found: install it (npm install -g @google/generative-ai), " +
	"make sure the command is on PATH or set an absolute path in the section config {\"cmd\": \"/path/to/gemini\"}, " +
	"and export GEMINI_API_KEY")

// Runner invokes the generative CLI as a subprocess.
type Runner struct {
	defaultCmd string
	apiKey     string
	logger     *slog.Logger
}

// NewRunner builds a runner with the configured default command and API key.
func NewRunner(defaultCmd, apiKey string, logger *slog.Logger) *Runner {
	return &Runner{defaultCmd: defaultCmd, apiKey: apiKey, logger: logger}
}

// ResolveCommand picks the executable: explicit override, then environment,
// then the configured default, then well-known binary names. Each candidate
// is resolved against PATH to an absolute path so later subprocess spawns do
// not depend on PATH drift. With nothing resolvable the first candidate is
// returned literally and invocation fails with a diagnostic.
func (r *Runner) ResolveCommand(override string) string {
	candidates := make([]string, 0, 6)
	for _, c := range []string{override, os.Getenv(cmdEnv), r.defaultCmd, "gemini", "gemini-cli", "gemini.cmd"} {
		if c != "" {
			candidates = append(candidates, c)
		}
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return "gemini"
}

// Run executes cmdPath with args, passing prompt as --prompt first and via
// stdin when that fails. Both transports exhausted returns an error; stdout
// of the first successful attempt is returned as-is.
func (r *Runner) Run(ctx context.Context, cmdPath string, args []string, prompt string, timeout time.Duration) (string, error) {
	out, err := r.runOnce(ctx, cmdPath, append(append([]string{}, args...), "--prompt", prompt), "", timeout)
	if err == nil {
		return out, nil
	}
	r.debug("--prompt invocation failed, retrying via stdin", "cmd", cmdPath, "error", err)

	out, err = r.runOnce(ctx, cmdPath, args, prompt, timeout)
	if err == nil {
		return out, nil
	}
	if isNotFound(err) {
		return "", fmt.Errorf("%w (tried %s)", ErrCommandNotFound, cmdPath)
	}
	return "", fmt.Errorf("generative CLI failed: %w", err)
}

func (r *Runner) runOnce(ctx context.Context, cmdPath string, args []string, stdin string, timeout time.Duration) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, cmdPath, args...)
	cmd.Env = r.environ()
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		r.debug("CLI stderr", "head", head(msg, 400))
	}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return "", err
	}
	return stdout.String(), nil
}

// environ propagates the credential into the subprocess, mirroring
// GEMINI_API_KEY into GOOGLE_API_KEY since CLI versions disagree on the name.
func (r *Runner) environ() []string {
	env := os.Environ()
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" && r.apiKey != "" {
		key = r.apiKey
		env = append(env, "GEMINI_API_KEY="+key)
	}
	if key != "" && os.Getenv("GOOGLE_API_KEY") == "" {
		env = append(env, "GOOGLE_API_KEY="+key)
	}
	return env
}

func isNotFound(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr) || errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

// LogLatestErrorReport looks for a recently written CLI error-report file and
// logs a short status/message summary. Purely observability; callers proceed
// to the fallback transport regardless.
func (r *Runner) LogLatestErrorReport() {
	path := latestErrorReport()
	if path == "" {
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		r.debug("cannot read error report", "path", path, "error", err)
		return
	}

	var report map[string]any
	if err := json.Unmarshal(raw, &report); err != nil {
		r.warn("CLI error report", "path", path, "head", head(string(raw), 300))
		return
	}

	status := firstString(report, "status", "code")
	message := firstString(report, "message", "error")
	if resp, ok := report["response"].(map[string]any); ok {
		if status == "" {
			status = firstString(resp, "status", "code")
		}
		if message == "" {
			message = firstString(resp, "message")
		}
	}
	if cause, ok := report["cause"].(map[string]any); ok && message == "" {
		message = firstString(cause, "message")
	}
	r.warn("CLI error report", "path", path, "status", status, "message", head(message, 300))
}

func latestErrorReport() string {
	var newest string
	var newestMod time.Time
	for _, dir := range []string{".", os.TempDir()} {
		matches, err := filepath.Glob(filepath.Join(dir, "gemini-client-error-*.json"))
		if err != nil {
			continue
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				continue
			}
			if newest == "" || info.ModTime().After(newestMod) {
				newest = m
				newestMod = info.ModTime()
			}
		}
	}
	return newest
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func head(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (r *Runner) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Runner) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
