//go:build windows

package attach

func watchResize(fn func()) (stop func()) {
	return func() {}
}
