// Package sidecar supervises the two long-lived companion services
// (orchestrator and operator) the desktop backend depends on. They are
// spawned at application start with their output redirected to log files,
// and terminated on the main exit path; if normal termination fails, a
// best-effort scan-and-kill of their well-known ports cleans up leftovers.
package sidecar

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Config describes the supervised services.
type Config struct {
	BinDir           string
	OrchestratorPort int
	OperatorPort     int

	// ReadyTimeout bounds how long Start waits for the orchestrator's
	// health endpoint before continuing anyway.
	ReadyTimeout time.Duration
}

// Supervisor owns the companion processes. Shutdown is invoked exactly once
// regardless of how many exit paths reach it.
type Supervisor struct {
	log *logging.Logger
	cfg Config

	mu       sync.Mutex
	children []*exec.Cmd

	shutdownOnce sync.Once
}

// New creates a supervisor. Nothing is spawned until Start.
func New(log *logging.Logger, cfg Config) *Supervisor {
	if log == nil {
		log = logging.NewNop()
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	return &Supervisor{log: log, cfg: cfg}
}

// Start spawns the orchestrator, waits for it to become reachable, then
// spawns the operator. A service that fails to spawn is logged and skipped;
// the backend still runs without it.
func (s *Supervisor) Start(ctx context.Context) {
	if err := s.spawn("orchestrator"); err != nil {
		s.log.Error("failed to start orchestrator", zap.Error(err))
	} else {
		s.waitReady(ctx, "orchestrator", s.cfg.OrchestratorPort)
	}

	if err := s.spawn("operator"); err != nil {
		s.log.Error("failed to start operator", zap.Error(err))
	}
}

func (s *Supervisor) spawn(service string) error {
	binary := BinaryPath(service, runtime.GOOS, runtime.GOARCH, s.cfg.BinDir)
	cmd := exec.Command(binary)

	logDir := LogDir(runtime.GOOS, homeDir(), configDir())
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		s.log.Warn("failed to create log directory", zap.String("dir", logDir), zap.Error(err))
	}

	stdout, err := os.Create(filepath.Join(logDir, service+".log"))
	if err != nil {
		return fmt.Errorf("create %s log: %w", service, err)
	}
	stderr, err := os.Create(filepath.Join(logDir, service+"-error.log"))
	if err != nil {
		stdout.Close()
		return fmt.Errorf("create %s error log: %w", service, err)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	env := os.Environ()
	widened := WidenPath(os.Getenv("PATH"), homeDir(), dirExists)
	env = append(env, "PATH="+widened)
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("spawn %s (%s): %w", service, binary, err)
	}

	s.log.Info("started companion service",
		zap.String("service", service),
		zap.String("binary", binary),
		zap.Int("pid", cmd.Process.Pid))

	s.mu.Lock()
	s.children = append(s.children, cmd)
	s.mu.Unlock()

	// reap on exit; log files stay open for the process lifetime
	go func() {
		err := cmd.Wait()
		stdout.Close()
		stderr.Close()
		if err != nil {
			s.log.Warn("companion service exited", zap.String("service", service), zap.Error(err))
		}
	}()

	return nil
}

// waitReady polls the service's health endpoint instead of sleeping a fixed
// ten seconds the way the previous implementation did.
func (s *Supervisor) waitReady(ctx context.Context, service string, port int) {
	client := retryablehttp.NewClient()
	client.RetryMax = 10
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.Logger = nil

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	req, err := retryablehttp.NewRequestWithContext(waitCtx, "GET", url, nil)
	if err != nil {
		return
	}

	resp, err := client.Do(req)
	if err != nil {
		s.log.Warn("companion service not reachable, continuing",
			zap.String("service", service), zap.Error(err))
		return
	}
	resp.Body.Close()
	s.log.Info("companion service ready", zap.String("service", service), zap.Int("port", port))
}

// Shutdown terminates the children and then sweeps their well-known ports.
// Idempotent; safe to call from multiple exit paths.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		children := s.children
		s.children = nil
		s.mu.Unlock()

		for _, cmd := range children {
			if cmd.Process == nil {
				continue
			}
			s.log.Info("terminating companion service", zap.Int("pid", cmd.Process.Pid))
			if err := cmd.Process.Kill(); err != nil {
				s.log.Warn("failed to kill companion service",
					zap.Int("pid", cmd.Process.Pid), zap.Error(err))
			}
		}

		// leftover listeners survive a failed kill; sweep the ports
		s.killByPort(s.cfg.OperatorPort)
		s.killByPort(s.cfg.OrchestratorPort)
	})
}

// killByPort is a best-effort OS-level cleanup of whatever still listens on
// port. Errors are ignored; the process may legitimately be gone already.
func (s *Supervisor) killByPort(port int) {
	if port == 0 {
		return
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		script := fmt.Sprintf(
			"Get-NetTCPConnection -LocalPort %d -State Listen -ErrorAction SilentlyContinue | ForEach-Object { Stop-Process -Id $_.OwningProcess -Force }",
			port)
		cmd = exec.Command("powershell", "-NoProfile", "-Command", script)
	} else {
		cmd = exec.Command("sh", "-c", fmt.Sprintf("lsof -ti:%d | xargs -r kill -9", port))
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		s.log.Debug("port sweep",
			zap.Int("port", port), zap.ByteString("output", out), zap.Error(err))
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return dir
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
