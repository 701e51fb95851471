//go:build windows

package enforce

// Windows lacks interval timers but supports asynchronous cancellation
// injection into a live worker context.
func probe() Strategy { //nolint:ireturn
	return NewInjectStrategy()
}
