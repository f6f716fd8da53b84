//go:build !windows

package attach

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// watchResize calls fn on every SIGWINCH until the returned stop is called.
func watchResize(fn func()) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGWINCH)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigs:
				fn()
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
