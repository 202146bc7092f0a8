// Package notify tells the user the microphone is open, with a short sound
// and a desktop notification.
package notify

import (
	"context"
	log "log/slog"
	"os/exec"
	"time"
)

type Player interface {
	PlayFile(ctx context.Context, path string) error
}

type Notifier struct {
	player  Player
	sound   string
	desktop bool

	send func(ctx context.Context, summary, body string) error
}

// New returns a Notifier that plays sound (when non-empty) through player and,
// when desktop is set, raises a notification via notify-send.
func New(player Player, sound string, desktop bool) *Notifier {
	return &Notifier{
		player:  player,
		sound:   sound,
		desktop: desktop,
		send:    notifySend,
	}
}

// Cue never fails; problems are logged.
func (n *Notifier) Cue(ctx context.Context) {
	if n.desktop {
		if err := n.send(ctx, "voxloop", "Listening..."); err != nil {
			log.Warn("Failed to notify", "err", err)
		}
	}

	if n.sound != "" && n.player != nil {
		if err := n.player.PlayFile(ctx, n.sound); err != nil {
			log.Warn("Failed to play cue", "sound", n.sound, "err", err)
		}
	}
}

func notifySend(ctx context.Context, summary, body string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "notify-send", "-a", "voxloop", "-t", "2000", summary, body).Run()
}
