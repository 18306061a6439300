//go:build !windows
// +build !windows

package dynload

import (
	"os"
	"os/signal"
	"syscall"
)

// WatchReloadSignal arranges for SIGUSR1 to mark l's update-available
// flag (§5 "cooperative reload", scenario S6): firmware staging a new
// image over an OTA channel can signal the running process instead of
// calling MarkUpdateAvailable directly from inside a signal handler,
// where taking l's mutex would be unsafe. The returned func stops
// watching and releases the signal channel.
func WatchReloadSignal(l *Loader) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				tracef("SIGUSR1 received, marking update available")
				l.MarkUpdateAvailable()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
