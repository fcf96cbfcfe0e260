// Package systemd reports service state to the systemd service manager.
package systemd

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// notify is swapped in tests.
var notify = daemon.SdNotify

// Notifier sends readiness, stopping and watchdog notifications. Every call is a
// no-op when the process was not started with NOTIFY_SOCKET.
type Notifier struct {
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready tells systemd startup has finished and starts the watchdog pinger when
// WatchdogSec is set on the unit.
func (n *Notifier) Ready(ctx context.Context) {
	n.send(daemon.SdNotifyReady)

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Failed to read watchdog settings", "error", err)
		return
	}
	if interval == 0 {
		return
	}
	n.startWatchdog(ctx, interval/2)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// Stopping tells systemd shutdown has begun and stops the watchdog pinger.
func (n *Notifier) Stopping() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) startWatchdog(ctx context.Context, every time.Duration) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.logger.Info("Systemd watchdog enabled", "interval", every)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.send(daemon.SdNotifyWatchdog)
			}
		}
	}()
}

func (n *Notifier) send(state string) {
	sent, err := notify(false, state)
	switch {
	case err != nil:
		n.logger.Warn("Systemd notify failed", "state", state, "error", err)
	case sent:
		n.logger.Debug("Systemd notified", "state", state)
	}
}
