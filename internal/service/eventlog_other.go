//go:build !windows

package service

// ReportStartupError is a no-op: the Event Log exists only on Windows and
// systemd captures the process's stderr.
func ReportStartupError(source string, err error) {}
