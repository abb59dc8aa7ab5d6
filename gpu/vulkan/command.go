package vulkan

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/serxka/voxel/gpu"
)

type recState int

const (
	stateInitial recState = iota
	stateRecording
	stateInPass
	stateSealed
)

// commandAllocator owns one command pool and recycles finished buffers.
// Buffers come back through the queue once their submission's fence has
// signaled. Not safe for concurrent use.
type commandAllocator struct {
	device        *Device
	pool          vk.CommandPool
	freePrimary   []vk.CommandBuffer
	freeSecondary []vk.CommandBuffer
}

func (d *Device) NewCommandAllocator() (gpu.CommandAllocator, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(d.handle, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.graphicsFamily,
		// ResetCommandBufferBit allows buffers to be reset individually,
		// which Begin does implicitly on recycled ones.
		Flags: vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if isError(ret) {
		return nil, newError(ret)
	}
	return &commandAllocator{device: d, pool: pool}, nil
}

func (a *commandAllocator) allocate(level vk.CommandBufferLevel) (vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(a.device.handle, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        a.pool,
		Level:              level,
		CommandBufferCount: 1,
	}, buffers)
	if isError(ret) {
		return nil, newError(ret)
	}
	return buffers[0], nil
}

func (a *commandAllocator) Primary() (gpu.PrimaryCommandBuffer, error) {
	if n := len(a.freePrimary); n > 0 {
		cmd := a.freePrimary[n-1]
		a.freePrimary = a.freePrimary[:n-1]
		return &primaryBuffer{alloc: a, cmd: cmd}, nil
	}
	cmd, err := a.allocate(vk.CommandBufferLevelPrimary)
	if err != nil {
		return nil, err
	}
	return &primaryBuffer{alloc: a, cmd: cmd}, nil
}

func (a *commandAllocator) Secondary() (gpu.SecondaryCommandBuffer, error) {
	if n := len(a.freeSecondary); n > 0 {
		cmd := a.freeSecondary[n-1]
		a.freeSecondary = a.freeSecondary[:n-1]
		return &secondaryBuffer{alloc: a, cmd: cmd}, nil
	}
	cmd, err := a.allocate(vk.CommandBufferLevelSecondary)
	if err != nil {
		return nil, err
	}
	return &secondaryBuffer{alloc: a, cmd: cmd}, nil
}

func (a *commandAllocator) Destroy() {
	vk.DestroyCommandPool(a.device.handle, a.pool, nil)
	a.freePrimary = nil
	a.freeSecondary = nil
}

// primaryBuffer records a one-time-submit command sequence. It keeps
// the framebuffer and executed secondaries alive until the queue
// retires the submission. A recording abandoned before Submit holds
// its framebuffer until allocator Destroy or device teardown; the
// only paths that abandon one are frame-fatal.
type primaryBuffer struct {
	alloc       *commandAllocator
	cmd         vk.CommandBuffer
	state       recState
	fb          *framebuffer
	secondaries []*secondaryBuffer
}

func (b *primaryBuffer) Begin() error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateInitial {
		return fmt.Errorf("vulkan: primary buffer Begin called twice")
	}
	ret := vk.BeginCommandBuffer(b.cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if isError(ret) {
		return newError(ret)
	}
	b.state = stateRecording
	b.fb = nil
	b.secondaries = b.secondaries[:0]
	return nil
}

func (b *primaryBuffer) BeginRenderPass(fb gpu.Framebuffer, clear gpu.ClearColor, contents gpu.SubpassContents) error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateRecording {
		return gpu.ErrNotRecording
	}
	f, ok := fb.(*framebuffer)
	if !ok {
		return fmt.Errorf("vulkan: framebuffer belongs to a different backend")
	}
	clearValues := []vk.ClearValue{
		vk.NewClearValue([]float32{clear[0], clear[1], clear[2], clear[3]}),
	}
	vk.CmdBeginRenderPass(b.cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  f.pass.handle,
		Framebuffer: f.handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{},
			Extent: vk.Extent2D{Width: f.extent.Width, Height: f.extent.Height},
		},
		ClearValueCount: 1,
		PClearValues:    clearValues,
	}, vk.SubpassContents(contents))
	b.state = stateInPass
	b.fb = f
	return nil
}

func (b *primaryBuffer) ExecuteCommands(cb gpu.SecondaryCommandBuffer) error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateInPass {
		return gpu.ErrNotRecording
	}
	sb, ok := cb.(*secondaryBuffer)
	if !ok {
		return fmt.Errorf("vulkan: secondary buffer belongs to a different backend")
	}
	if sb.state != stateSealed {
		return fmt.Errorf("vulkan: secondary buffer executed before End")
	}
	vk.CmdExecuteCommands(b.cmd, 1, []vk.CommandBuffer{sb.cmd})
	b.secondaries = append(b.secondaries, sb)
	return nil
}

func (b *primaryBuffer) EndRenderPass() error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateInPass {
		return gpu.ErrNotRecording
	}
	vk.CmdEndRenderPass(b.cmd)
	b.state = stateRecording
	return nil
}

func (b *primaryBuffer) End() error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateRecording {
		return gpu.ErrNotRecording
	}
	ret := vk.EndCommandBuffer(b.cmd)
	if isError(ret) {
		return newError(ret)
	}
	b.state = stateSealed
	return nil
}

// retire is called by the queue once the submission's fence signaled:
// the per-frame framebuffer dies here and the buffers go back to their
// allocators.
func (b *primaryBuffer) retire() {
	if b.fb != nil {
		b.fb.destroy()
		b.fb = nil
	}
	for _, sb := range b.secondaries {
		sb.state = stateInitial
		sb.alloc.freeSecondary = append(sb.alloc.freeSecondary, sb.cmd)
	}
	b.secondaries = nil
	b.state = stateInitial
	b.alloc.freePrimary = append(b.alloc.freePrimary, b.cmd)
}

// secondaryBuffer records draw state for execution inside a primary
// buffer that has begun the inherited subpass.
type secondaryBuffer struct {
	alloc *commandAllocator
	cmd   vk.CommandBuffer
	state recState
}

func (b *secondaryBuffer) Begin(inherit gpu.Inheritance) error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateInitial {
		return fmt.Errorf("vulkan: secondary buffer Begin called twice")
	}
	rp, ok := inherit.Subpass.Pass.(*renderPass)
	if !ok {
		return fmt.Errorf("vulkan: inherited render pass belongs to a different backend")
	}
	ret := vk.BeginCommandBuffer(b.cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit |
			vk.CommandBufferUsageRenderPassContinueBit),
		PInheritanceInfo: []vk.CommandBufferInheritanceInfo{{
			SType:      vk.StructureTypeCommandBufferInheritanceInfo,
			RenderPass: rp.handle,
			Subpass:    inherit.Subpass.Index,
		}},
	})
	if isError(ret) {
		return newError(ret)
	}
	b.state = stateRecording
	return nil
}

// SetViewport records the dynamic viewport; the scissor follows the
// viewport rectangle since both are dynamic in this backend's
// pipelines.
func (b *secondaryBuffer) SetViewport(v gpu.Viewport) error {
	if b.state != stateRecording {
		return b.recordErr()
	}
	vk.CmdSetViewport(b.cmd, 0, 1, []vk.Viewport{{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}})
	vk.CmdSetScissor(b.cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: int32(v.X), Y: int32(v.Y)},
		Extent: vk.Extent2D{Width: uint32(v.Width), Height: uint32(v.Height)},
	}})
	return nil
}

func (b *secondaryBuffer) BindPipeline(p gpu.Pipeline) error {
	if b.state != stateRecording {
		return b.recordErr()
	}
	pl, ok := p.(*pipeline)
	if !ok {
		return fmt.Errorf("vulkan: pipeline belongs to a different backend")
	}
	vk.CmdBindPipeline(b.cmd, vk.PipelineBindPointGraphics, pl.handle)
	return nil
}

func (b *secondaryBuffer) BindVertexBuffer(binding uint32, buf gpu.Buffer) error {
	if b.state != stateRecording {
		return b.recordErr()
	}
	db, ok := buf.(*deviceBuffer)
	if !ok {
		return fmt.Errorf("vulkan: buffer belongs to a different backend")
	}
	vk.CmdBindVertexBuffers(b.cmd, binding, 1,
		[]vk.Buffer{db.handle}, []vk.DeviceSize{0})
	return nil
}

func (b *secondaryBuffer) Draw(vertexCount, instanceCount uint32) error {
	if b.state != stateRecording {
		return b.recordErr()
	}
	vk.CmdDraw(b.cmd, vertexCount, instanceCount, 0, 0)
	return nil
}

func (b *secondaryBuffer) End() error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateRecording {
		return gpu.ErrNotRecording
	}
	ret := vk.EndCommandBuffer(b.cmd)
	if isError(ret) {
		return newError(ret)
	}
	b.state = stateSealed
	return nil
}

func (b *secondaryBuffer) recordErr() error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	return gpu.ErrNotRecording
}
