//go:build linux

package enforce

// Linux exposes alarm-style interval timers with signal delivery, the
// preferred enforcement mechanism.
func probe() Strategy { //nolint:ireturn
	return NewAlarmStrategy()
}
