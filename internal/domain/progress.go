package domain

// ProgressSink receives progress updates from a running analysis. Calls are
// synchronous; implementations must return promptly.
type ProgressSink interface {
	Progress(percent int, message string)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(percent int, message string)

func (f ProgressFunc) Progress(percent int, message string) {
	f(percent, message)
}

// NopProgress discards progress updates.
var NopProgress ProgressSink = ProgressFunc(func(int, string) {})
