package gpu

// SubpassContents declares where a subpass's commands come from.
type SubpassContents int32

const (
	ContentsInline SubpassContents = iota
	ContentsSecondaryBuffers
)

// Inheritance is the metadata a secondary command buffer is recorded
// against. It must name the subpass that will be active in the primary
// buffer the secondary executes inside of.
type Inheritance struct {
	Subpass Subpass
}

// CommandAllocator hands out command buffers and recycles them once the
// GPU is done with them. Not safe for concurrent use.
type CommandAllocator interface {
	// Primary returns a fresh or recycled primary command buffer in
	// the initial state.
	Primary() (PrimaryCommandBuffer, error)
	// Secondary returns a fresh or recycled secondary command buffer
	// in the initial state.
	Secondary() (SecondaryCommandBuffer, error)
	// Destroy releases the allocator and every buffer it owns.
	Destroy()
}

// PrimaryCommandBuffer is a one-time-submit command sequence recorded
// fresh each frame and discarded after submission. Recording calls fail
// with ErrRecordingSealed once End has been called and with
// ErrNotRecording before Begin.
type PrimaryCommandBuffer interface {
	// Begin starts recording in one-time-submit mode.
	Begin() error
	// BeginRenderPass begins the framebuffer's render pass, clearing
	// the color attachment to clear. With ContentsSecondaryBuffers the
	// subpass accepts only ExecuteCommands, no inline draws.
	BeginRenderPass(fb Framebuffer, clear ClearColor, contents SubpassContents) error
	// ExecuteCommands runs a recorded secondary buffer inside the
	// active render pass. The secondary's inheritance subpass must
	// match the active one.
	ExecuteCommands(cb SecondaryCommandBuffer) error
	// EndRenderPass ends the active render pass.
	EndRenderPass() error
	// End seals the buffer. No further recording is permitted.
	End() error
}

// SecondaryCommandBuffer is a pre-recorded draw command list executed
// from within a primary buffer that has begun the matching subpass.
type SecondaryCommandBuffer interface {
	// Begin starts recording against the inherited subpass.
	Begin(inherit Inheritance) error
	// SetViewport records the dynamic viewport state.
	SetViewport(v Viewport) error
	// BindPipeline records a graphics pipeline bind.
	BindPipeline(p Pipeline) error
	// BindVertexBuffer records a vertex buffer bind at the given
	// binding slot.
	BindVertexBuffer(binding uint32, b Buffer) error
	// Draw records a non-indexed draw call.
	Draw(vertexCount, instanceCount uint32) error
	// End seals the buffer for execution.
	End() error
}
