package gpu

import "errors"

// Common errors shared by all backends.
var (
	// ErrFutureConsumed is returned when a future is passed to a
	// second chaining call after already being consumed.
	ErrFutureConsumed = errors.New("gpu: future already consumed")

	// ErrFormatMismatch is returned by CreateFramebuffer when the
	// target view's format differs from the render pass attachment.
	ErrFormatMismatch = errors.New("gpu: image view format does not match render pass attachment")

	// ErrRecordingSealed is returned when recording into a command
	// buffer that has been ended.
	ErrRecordingSealed = errors.New("gpu: command buffer already sealed")

	// ErrNotRecording is returned when a recording call arrives before
	// Begin or outside the required render pass scope.
	ErrNotRecording = errors.New("gpu: command buffer is not recording")

	// ErrOutOfDate is returned by Acquire or Present when the
	// swapchain no longer matches the surface and must be recreated.
	ErrOutOfDate = errors.New("gpu: swapchain out of date")
)
