package render

import (
	"fmt"

	"github.com/serxka/voxel/gpu"
)

// clearValue is fully transparent black. The swapchain presents with
// opaque composite alpha, so the alpha channel is ignored at present
// time.
var clearValue = gpu.ClearColor{0, 0, 0, 0}

// Renderer orchestrates one frame: framebuffer for the supplied target,
// render pass, secondary draw execution, submission chained after the
// incoming future. It keeps no state across frames beyond the objects
// it owns.
type Renderer struct {
	device   gpu.Device
	queue    gpu.Queue
	commands gpu.CommandAllocator
	pass     gpu.RenderPass
	triangle *TrianglePipeline
}

// NewRenderer builds the render pass for the given target format and
// the triangle pipeline against its only subpass. format must match
// the image views later passed to Render.
func NewRenderer(device gpu.Device, alloc gpu.Allocator, queue gpu.Queue,
	format gpu.Format, shaders ShaderSource) (*Renderer, error) {

	pass, err := device.CreateRenderPass(gpu.RenderPassConfig{
		ColorAttachment: gpu.AttachmentConfig{
			Format:      format,
			Samples:     1,
			LoadOp:      gpu.LoadOpClear,
			StoreOp:     gpu.StoreOpStore,
			FinalLayout: gpu.LayoutPresentSrc,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("render: render pass: %w", err)
	}

	triangle, err := NewTrianglePipeline(device, alloc, queue,
		gpu.Subpass{Pass: pass, Index: 0}, shaders)
	if err != nil {
		return nil, err
	}

	commands, err := device.NewCommandAllocator()
	if err != nil {
		return nil, fmt.Errorf("render: command allocator: %w", err)
	}

	return &Renderer{
		device:   device,
		queue:    queue,
		commands: commands,
		pass:     pass,
		triangle: triangle,
	}, nil
}

// Render draws one frame into target, ordered after the point in GPU
// execution that before represents, and returns the future for this
// frame's completion. The framebuffer is built fresh: the target view
// belongs to the swapchain and changes every frame.
//
// A failure before submission aborts the frame with nothing submitted;
// the caller skips presentation and retries next iteration. A
// submission failure is propagated for the caller to decide.
func (r *Renderer) Render(before gpu.Future, target gpu.ImageView) (gpu.Future, error) {
	framebuffer, err := r.device.CreateFramebuffer(r.pass, target)
	if err != nil {
		return nil, fmt.Errorf("render: framebuffer: %w", err)
	}

	cmd, err := r.commands.Primary()
	if err != nil {
		return nil, fmt.Errorf("render: primary buffer: %w", err)
	}
	if err := cmd.Begin(); err != nil {
		return nil, err
	}
	if err := cmd.BeginRenderPass(framebuffer, clearValue, gpu.ContentsSecondaryBuffers); err != nil {
		return nil, err
	}
	draw, err := r.triangle.Draw(target.Extent())
	if err != nil {
		return nil, err
	}
	if err := cmd.ExecuteCommands(draw); err != nil {
		return nil, err
	}
	if err := cmd.EndRenderPass(); err != nil {
		return nil, err
	}
	if err := cmd.End(); err != nil {
		return nil, err
	}

	after, err := r.queue.Submit(cmd, before)
	if err != nil {
		return nil, fmt.Errorf("render: submit: %w", err)
	}
	return after, nil
}

// Frame runs one frame-loop iteration against the swapchain: acquire,
// render, present. An acquire failure skips the frame before any
// rendering state is touched; every error is returned for the loop to
// log, never retried here.
func (r *Renderer) Frame(swapchain gpu.Swapchain) error {
	target, acquired, err := swapchain.Acquire()
	if err != nil {
		return fmt.Errorf("render: acquire: %w", err)
	}
	after, err := r.Render(acquired, target)
	if err != nil {
		return err
	}
	if err := swapchain.Present(after); err != nil {
		return fmt.Errorf("render: present: %w", err)
	}
	return nil
}
