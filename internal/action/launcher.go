package action

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os/exec"
	"runtime"
	"strings"
)

var ErrEmptyTarget = errors.New("nothing to open")

// Launcher hands paths and URLs to the desktop's default opener. The child is
// started detached; Open returns once it has been spawned.
type Launcher struct {
	command []string
	start   func(name string, args ...string) error
}

// NewLauncher uses openCommand (split on whitespace) when set, otherwise the
// platform opener.
func NewLauncher(openCommand string) *Launcher {
	cmd := strings.Fields(openCommand)
	if len(cmd) == 0 {
		cmd = defaultOpener(runtime.GOOS)
	}
	return &Launcher{command: cmd, start: startDetached}
}

func defaultOpener(goos string) []string {
	switch goos {
	case "windows":
		// the target reaches the protocol handler without a shell in between
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	case "darwin":
		return []string{"open"}
	default:
		return []string{"xdg-open"}
	}
}

func (l *Launcher) Open(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(target) == "" {
		return ErrEmptyTarget
	}

	args := append(append([]string(nil), l.command[1:]...), target)
	log.Debug("Launching", "cmd", l.command[0], "args", args)

	if err := l.start(l.command[0], args...); err != nil {
		return fmt.Errorf("launch %s: %w", target, err)
	}
	return nil
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Warn("Opener exited", "cmd", name, "err", err)
		}
	}()
	return nil
}
