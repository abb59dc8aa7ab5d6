package render_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serxka/voxel/gpu"
	"github.com/serxka/voxel/gpu/softpipe"
	"github.com/serxka/voxel/render"
)

// testShaders stands in for compiled SPIR-V; the softpipe backend
// retains shader bytes without interpreting them.
var testShaders = render.ShaderSource{
	Vertex:   []byte{0x03, 0x02, 0x23, 0x07},
	Fragment: []byte{0x03, 0x02, 0x23, 0x07},
}

func newTestRenderer(t *testing.T, format gpu.Format) (*softpipe.Device, *softpipe.Queue, *render.Renderer) {
	t.Helper()
	dev := softpipe.NewDevice()
	queue := softpipe.NewQueue(dev)
	r, err := render.NewRenderer(dev, dev, queue, format, testShaders)
	require.NoError(t, err)
	return dev, queue, r
}

func TestRenderDrawsTriangle(t *testing.T) {
	dev, queue, r := newTestRenderer(t, gpu.FormatR8G8B8A8Unorm)
	target := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 100, Height: 100})

	future, err := r.Render(queue.Now(), target)
	require.NoError(t, err)
	require.NoError(t, future.Consume())

	red := [4]float32{1, 0, 0, 1}
	clear := [4]float32{0, 0, 0, 0}

	// The triangle spans (50,25), (75,75), (25,75) in pixels.
	assert.Equal(t, red, target.At(50, 60), "inside the triangle")
	assert.Equal(t, red, target.At(50, 30), "below the apex")
	assert.Equal(t, clear, target.At(10, 10), "top left corner")
	assert.Equal(t, clear, target.At(50, 10), "above the apex")
	assert.Equal(t, clear, target.At(90, 90), "below the base")
	assert.Equal(t, clear, target.At(0, 99), "bottom left corner")
}

func TestRenderClearsPreviousContents(t *testing.T) {
	dev, queue, r := newTestRenderer(t, gpu.FormatR8G8B8A8Unorm)
	target := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 16, Height: 16})

	f1, err := r.Render(queue.Now(), target)
	require.NoError(t, err)
	f2, err := r.Render(f1, target)
	require.NoError(t, err)
	require.NoError(t, f2.Consume())

	// Outside pixels hold the clear color, not stale frame data.
	assert.Equal(t, [4]float32{0, 0, 0, 0}, target.At(0, 0))
}

func TestRenderChainsSubmissions(t *testing.T) {
	dev, queue, r := newTestRenderer(t, gpu.FormatR8G8B8A8Unorm)
	target := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 8, Height: 8})

	f := queue.Now()
	var err error
	for i := 0; i < 3; i++ {
		f, err = r.Render(f, target)
		require.NoError(t, err)
	}
	require.NoError(t, f.Consume())

	subs := queue.Submissions()
	require.Len(t, subs, 3)
	assert.Equal(t, uint64(0), subs[0].After, "first frame waits on the seed")
	for i := 1; i < len(subs); i++ {
		assert.Equal(t, subs[i-1].Seq, subs[i].After, "frame %d must wait on frame %d", i, i-1)
	}
}

func TestRenderConsumesFutureOnce(t *testing.T) {
	dev, queue, r := newTestRenderer(t, gpu.FormatR8G8B8A8Unorm)
	target := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 8, Height: 8})

	f := queue.Now()
	first, err := r.Render(f, target)
	require.NoError(t, err)
	require.NoError(t, first.Consume())

	_, err = r.Render(f, target)
	assert.ErrorIs(t, err, gpu.ErrFutureConsumed)
}

func TestRenderRejectsFormatMismatch(t *testing.T) {
	dev, queue, r := newTestRenderer(t, gpu.FormatR8G8B8A8Unorm)
	target := dev.NewImage(gpu.FormatB8G8R8A8Unorm, gpu.Extent{Width: 8, Height: 8})

	_, err := r.Render(queue.Now(), target)
	assert.ErrorIs(t, err, gpu.ErrFormatMismatch)
	assert.Empty(t, queue.Submissions(), "nothing may reach the queue")
}

func TestFrameAcquireRenderPresent(t *testing.T) {
	dev := softpipe.NewDevice()
	queue := softpipe.NewQueue(dev)
	swapchain := softpipe.NewSwapchain(dev, queue, gpu.FormatB8G8R8A8Unorm,
		gpu.Extent{Width: 64, Height: 64}, 2)
	r, err := render.NewRenderer(dev, dev, queue, swapchain.Format(), testShaders)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Frame(swapchain))
	}

	subs := queue.Submissions()
	acquires := swapchain.AcquireSeqs()
	presents := swapchain.PresentedSeqs()
	require.Len(t, subs, 3)
	require.Len(t, acquires, 3)
	require.Len(t, presents, 3)
	for i := range subs {
		assert.Equal(t, acquires[i], subs[i].After, "frame %d renders after its acquire", i)
		assert.Equal(t, subs[i].Seq, presents[i], "frame %d presents after its render", i)
	}

	// Both swapchain slots saw a frame; each holds a red triangle.
	red := [4]float32{1, 0, 0, 1}
	assert.Equal(t, red, swapchain.Image(0).At(32, 40))
	assert.Equal(t, red, swapchain.Image(1).At(32, 40))
}

func TestFrameSkipsOnAcquireFailure(t *testing.T) {
	dev := softpipe.NewDevice()
	queue := softpipe.NewQueue(dev)
	swapchain := softpipe.NewSwapchain(dev, queue, gpu.FormatB8G8R8A8Unorm,
		gpu.Extent{Width: 16, Height: 16}, 2)
	r, err := render.NewRenderer(dev, dev, queue, swapchain.Format(), testShaders)
	require.NoError(t, err)

	before := dev.Stats()
	boom := errors.New("surface lost")
	swapchain.FailNextAcquire(boom)

	err = r.Frame(swapchain)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, queue.Submissions(), "failed acquire must not submit")
	assert.Empty(t, swapchain.PresentedSeqs(), "failed acquire must not present")
	assert.Equal(t, before.Framebuffers, dev.Stats().Framebuffers,
		"failed acquire must not touch rendering state")

	// The loop recovers on the next iteration.
	require.NoError(t, r.Frame(swapchain))
}

func TestDrawRecordsViewportForExtent(t *testing.T) {
	dev := softpipe.NewDevice()
	queue := softpipe.NewQueue(dev)
	pass, err := dev.CreateRenderPass(gpu.RenderPassConfig{
		ColorAttachment: gpu.AttachmentConfig{
			Format:      gpu.FormatR8G8B8A8Unorm,
			Samples:     1,
			LoadOp:      gpu.LoadOpClear,
			StoreOp:     gpu.StoreOpStore,
			FinalLayout: gpu.LayoutPresentSrc,
		},
	})
	require.NoError(t, err)

	p, err := render.NewTrianglePipeline(dev, dev, queue,
		gpu.Subpass{Pass: pass, Index: 0}, testShaders)
	require.NoError(t, err)

	for _, extent := range []gpu.Extent{
		{Width: 640, Height: 480},
		{Width: 1, Height: 1},
		{Width: 3840, Height: 2160},
	} {
		cb, err := p.Draw(extent)
		require.NoError(t, err)

		sb := cb.(*softpipe.SecondaryBuffer)
		vp, ok := sb.RecordedViewport()
		require.True(t, ok)
		assert.Equal(t, gpu.Viewport{
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MaxDepth: 1,
		}, vp)

		cmds := sb.Commands()
		require.Len(t, cmds, 4)
		assert.Equal(t, softpipe.OpSetViewport, cmds[0].Op)
		assert.Equal(t, softpipe.OpBindPipeline, cmds[1].Op)
		assert.Equal(t, softpipe.OpBindVertexBuffer, cmds[2].Op)
		assert.Equal(t, softpipe.OpDraw, cmds[3].Op)
		assert.Equal(t, uint32(3), cmds[3].VertexCount)
		assert.Equal(t, uint32(1), cmds[3].InstanceCount)
	}

	// One vertex buffer upload total: three 2D float32 positions.
	assert.Equal(t, 1, dev.Stats().VertexBuffers)
}

func TestDrawSameExtentRecordsIdenticalState(t *testing.T) {
	dev := softpipe.NewDevice()
	queue := softpipe.NewQueue(dev)
	pass, err := dev.CreateRenderPass(gpu.RenderPassConfig{
		ColorAttachment: gpu.AttachmentConfig{
			Format:      gpu.FormatR8G8B8A8Unorm,
			Samples:     1,
			LoadOp:      gpu.LoadOpClear,
			StoreOp:     gpu.StoreOpStore,
			FinalLayout: gpu.LayoutPresentSrc,
		},
	})
	require.NoError(t, err)

	p, err := render.NewTrianglePipeline(dev, dev, queue,
		gpu.Subpass{Pass: pass, Index: 0}, testShaders)
	require.NoError(t, err)

	extent := gpu.Extent{Width: 800, Height: 600}
	first, err := p.Draw(extent)
	require.NoError(t, err)
	second, err := p.Draw(extent)
	require.NoError(t, err)

	assert.Equal(t,
		first.(*softpipe.SecondaryBuffer).Commands(),
		second.(*softpipe.SecondaryBuffer).Commands(),
		"recording carries no frame-to-frame state")
}
