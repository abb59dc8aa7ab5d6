// Package gpu defines the explicit graphics API the renderer is written
// against. It models the small slice of a modern GPU interface the
// frame core needs: immutable pipelines compiled against a render pass,
// per-frame framebuffers, primary/secondary command buffers, and
// consume-once futures for CPU/GPU submission ordering.
//
// Backends live in subpackages: gpu/vulkan drives a real device,
// gpu/softpipe is a CPU reference implementation used by tests and
// headless runs.
package gpu

// Device creates the long-lived GPU objects a renderer owns.
type Device interface {
	// CreateShaderModule compiles a shader stage from SPIR-V code.
	CreateShaderModule(code []byte) (ShaderModule, error)
	// CreateRenderPass creates a single-subpass render pass with one
	// color attachment described by cfg.
	CreateRenderPass(cfg RenderPassConfig) (RenderPass, error)
	// CreateFramebuffer binds a render pass to a concrete target image
	// view. The view's format must match the pass's attachment format;
	// a mismatch fails with ErrFormatMismatch.
	CreateFramebuffer(pass RenderPass, target ImageView) (Framebuffer, error)
	// CreateGraphicsPipeline compiles shader stages and fixed-function
	// state into an immutable pipeline bound to cfg.Subpass.
	CreateGraphicsPipeline(cfg PipelineConfig) (Pipeline, error)
	// NewCommandAllocator creates an allocator that hands out recycled
	// primary and secondary command buffers. Allocators are not safe
	// for concurrent use; they are mutated from the render thread only.
	NewCommandAllocator() (CommandAllocator, error)
}

// Allocator performs device memory allocations for buffer objects.
type Allocator interface {
	// CreateVertexBuffer allocates a device buffer usable as vertex
	// input and uploads data into it once. The buffer is immutable
	// after creation.
	CreateVertexBuffer(data []byte) (Buffer, error)
}

// Queue accepts finalized primary command buffers for execution.
type Queue interface {
	// Submit schedules cmd on the queue, ordered after the point in GPU
	// execution that the after future represents. The future is
	// consumed; passing it to a second chaining call fails with
	// ErrFutureConsumed. A nil after submits without a wait.
	//
	// The returned future represents completion of cmd and everything
	// ordered before it.
	Submit(cmd PrimaryCommandBuffer, after Future) (Future, error)
	// WaitIdle blocks until all submitted work has completed.
	// Teardown only; never part of the per-frame path.
	WaitIdle() error
}

// Future is an ordering token for a point in GPU execution. Each future
// is consumed exactly once, by the chaining call it is passed to, and
// replaced by the future that call returns. A future that is read twice
// or dropped breaks the submission ordering guarantee.
type Future interface {
	// Consume marks the token spent. Chaining calls (Queue.Submit,
	// Swapchain.Present) invoke it; the second invocation returns
	// ErrFutureConsumed.
	Consume() error
}

// ImageView is a view into an image owned elsewhere, typically the
// swapchain's currently writable image.
type ImageView interface {
	Format() Format
	Extent() Extent
}

// RenderPass describes attachment usage and load/store behavior that
// pipelines and framebuffers are compiled against.
type RenderPass interface {
	Config() RenderPassConfig
}

// Subpass identifies one subpass of a render pass. Pipelines bind to a
// subpass; secondary command buffers inherit one.
type Subpass struct {
	Pass  RenderPass
	Index uint32
}

// Framebuffer binds a render pass to one target image view for the
// duration of a frame.
type Framebuffer interface {
	Extent() Extent
}

// ShaderModule is an opaque compiled shader stage handle.
type ShaderModule interface{}

// Pipeline is an opaque compiled graphics pipeline handle.
type Pipeline interface{}

// Buffer is a device-resident buffer object.
type Buffer interface {
	// Size is the buffer length in bytes.
	Size() int
}

// Swapchain is the presentation surface collaborator. The renderer core
// never owns one; the frame loop acquires targets from it and presents
// through it.
type Swapchain interface {
	// Format is the pixel format of the swapchain images.
	Format() Format
	// Extent is the current swapchain image size.
	Extent() Extent
	// Acquire obtains the next writable image view and a future that
	// signals when the image is safe to write. Acquire is the only
	// step of a frame that may block.
	Acquire() (ImageView, Future, error)
	// Present queues the last acquired image for presentation, gated
	// on the given future. The future is consumed.
	Present(after Future) error
}

// VertexSourcer provides vertex data as raw bytes together with the
// input layout that describes them.
type VertexSourcer interface {
	Bytes() []byte
	Layout() VertexInputConfig
}
