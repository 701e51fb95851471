//go:build !linux && !windows

package enforce

// Platforms without interval timers or injection support fall back to the
// cooperative worker abort, which is universally available.
func probe() Strategy { //nolint:ireturn
	return NewPoolStrategy()
}
