//go:build windows
// +build windows

package dynload

// WatchReloadSignal has no Windows equivalent of SIGUSR1; callers on this
// platform drive cooperative reload entirely through MarkUpdateAvailable
// themselves. The returned stop func is a no-op for interface symmetry
// with the Unix build.
func WatchReloadSignal(l *Loader) (stop func()) {
	return func() {}
}
