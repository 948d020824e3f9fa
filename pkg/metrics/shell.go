package metrics

import "time"

// ShellMetrics records shell server activity. A nil ShellMetrics disables
// collection; callers go through the package helpers or check for nil.
type ShellMetrics interface {
	// Connection lifecycle. These also satisfy adapter.MetricsRecorder.
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)

	// RecordAuthAttempt counts one login attempt.
	// result is "verified", "registered", "certificate", "rejected" or "error".
	RecordAuthAttempt(method, result string)

	// RecordRequest times one handled request. command is the shell verb for
	// command requests and empty otherwise.
	RecordRequest(msgType, command string, duration time.Duration, success bool)

	// RecordDecodeError counts frames that could not be decoded.
	RecordDecodeError()

	// RecordSessionClosed counts sessions by close reason and records how long
	// they lasted.
	RecordSessionClosed(reason string, duration time.Duration)

	// RecordBytes counts framed bytes; direction is "in" or "out".
	RecordBytes(direction string, n int)
}
