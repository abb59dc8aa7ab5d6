package softpipe

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serxka/voxel/gpu"
)

func encodePositions(coords ...float32) []byte {
	out := make([]byte, len(coords)*4)
	for i, c := range coords {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(c))
	}
	return out
}

func positionLayout() gpu.VertexInputConfig {
	return gpu.VertexInputConfig{
		Stride: 8,
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.FormatR32G32Sfloat, Offset: 0},
		},
	}
}

func testPipeline(t *testing.T, dev *Device) *pipeline {
	t.Helper()
	vs, err := dev.CreateShaderModule([]byte{1})
	require.NoError(t, err)
	fs, err := dev.CreateShaderModule([]byte{2})
	require.NoError(t, err)
	pass, err := dev.CreateRenderPass(gpu.RenderPassConfig{
		ColorAttachment: gpu.AttachmentConfig{Format: gpu.FormatR8G8B8A8Unorm, Samples: 1},
	})
	require.NoError(t, err)
	pl, err := dev.CreateGraphicsPipeline(gpu.PipelineConfig{
		VertexShader:    vs,
		FragmentShader:  fs,
		VertexInput:     positionLayout(),
		ColorBlend:      gpu.ColorBlendConfig{WriteMask: gpu.ColorComponentsAll},
		DynamicViewport: true,
		Subpass:         gpu.Subpass{Pass: pass},
	})
	require.NoError(t, err)
	return pl.(*pipeline)
}

func TestRasterizeFillsInterior(t *testing.T) {
	dev := NewDevice()
	img := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 10, Height: 10})
	pl := testPipeline(t, dev)
	// Full-extent right triangle covering the lower left half.
	vb := &buffer{data: encodePositions(-1, -1, -1, 1, 1, 1)}
	vp := gpu.Viewport{Width: 10, Height: 10, MaxDepth: 1}

	require.NoError(t, rasterize(img, vp, pl, vb, 3, 1))

	assert.Equal(t, [4]float32{1, 0, 0, 1}, img.At(2, 7), "lower left half is covered")
	assert.Equal(t, [4]float32{0, 0, 0, 0}, img.At(7, 2), "upper right half is not")
}

func TestRasterizeBothWindings(t *testing.T) {
	dev := NewDevice()
	pl := testPipeline(t, dev)
	vp := gpu.Viewport{Width: 10, Height: 10, MaxDepth: 1}

	for name, coords := range map[string][]float32{
		"clockwise":        {0, -1, 1, 1, -1, 1},
		"counterclockwise": {0, -1, -1, 1, 1, 1},
	} {
		img := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 10, Height: 10})
		vb := &buffer{data: encodePositions(coords...)}
		require.NoError(t, rasterize(img, vp, pl, vb, 3, 1))
		assert.Equal(t, [4]float32{1, 0, 0, 1}, img.At(5, 5), "%s winding must fill", name)
	}
}

func TestRasterizeClampsToImage(t *testing.T) {
	dev := NewDevice()
	img := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 4, Height: 4})
	pl := testPipeline(t, dev)
	// Vertices far outside clip space still fill the whole image
	// without indexing out of bounds.
	vb := &buffer{data: encodePositions(-8, -8, 8, -8, 0, 8)}
	vp := gpu.Viewport{Width: 4, Height: 4, MaxDepth: 1}

	require.NoError(t, rasterize(img, vp, pl, vb, 3, 1))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, [4]float32{1, 0, 0, 1}, img.At(x, y))
		}
	}
}

func TestRasterizeHonorsWriteMask(t *testing.T) {
	dev := NewDevice()
	img := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 4, Height: 4})
	pl := testPipeline(t, dev)
	pl.cfg.ColorBlend.WriteMask = gpu.ColorComponentG | gpu.ColorComponentA
	vb := &buffer{data: encodePositions(-8, -8, 8, -8, 0, 8)}
	vp := gpu.Viewport{Width: 4, Height: 4, MaxDepth: 1}

	require.NoError(t, rasterize(img, vp, pl, vb, 3, 1))
	// Red is masked off; only green and alpha channels were written.
	assert.Equal(t, [4]float32{0, 0, 0, 1}, img.At(1, 1))
}

func TestDecodePositionsErrors(t *testing.T) {
	data := encodePositions(0, 0, 1, 0, 0, 1)

	_, err := decodePositions(gpu.VertexInputConfig{Stride: 8}, data, 3)
	assert.Error(t, err, "no attribute at location 0")

	badFormat := positionLayout()
	badFormat.Attributes[0].Format = gpu.FormatR8G8B8A8Unorm
	_, err = decodePositions(badFormat, data, 3)
	assert.Error(t, err, "unsupported position format")

	_, err = decodePositions(positionLayout(), data[:16], 3)
	assert.Error(t, err, "buffer too small for the draw")

	_, err = decodePositions(positionLayout(), data, 0)
	assert.Error(t, err, "zero vertices")
}

func TestSecondaryRecordingStateMachine(t *testing.T) {
	dev := NewDevice()
	alloc, err := dev.NewCommandAllocator()
	require.NoError(t, err)
	pass, err := dev.CreateRenderPass(gpu.RenderPassConfig{
		ColorAttachment: gpu.AttachmentConfig{Format: gpu.FormatR8G8B8A8Unorm, Samples: 1},
	})
	require.NoError(t, err)

	cb, err := alloc.Secondary()
	require.NoError(t, err)

	assert.ErrorIs(t, cb.Draw(3, 1), gpu.ErrNotRecording)
	assert.ErrorIs(t, cb.End(), gpu.ErrNotRecording)

	require.NoError(t, cb.Begin(gpu.Inheritance{Subpass: gpu.Subpass{Pass: pass}}))
	require.NoError(t, cb.Draw(3, 1))
	require.NoError(t, cb.End())

	assert.ErrorIs(t, cb.Draw(3, 1), gpu.ErrRecordingSealed)
	assert.ErrorIs(t, cb.End(), gpu.ErrRecordingSealed)
}

func TestPrimaryRejectsInlineSecondaries(t *testing.T) {
	dev := NewDevice()
	alloc, err := dev.NewCommandAllocator()
	require.NoError(t, err)
	pass, err := dev.CreateRenderPass(gpu.RenderPassConfig{
		ColorAttachment: gpu.AttachmentConfig{Format: gpu.FormatR8G8B8A8Unorm, Samples: 1},
	})
	require.NoError(t, err)
	img := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 4, Height: 4})
	fb, err := dev.CreateFramebuffer(pass, img)
	require.NoError(t, err)

	sb, err := alloc.Secondary()
	require.NoError(t, err)
	require.NoError(t, sb.Begin(gpu.Inheritance{Subpass: gpu.Subpass{Pass: pass}}))
	require.NoError(t, sb.End())

	pb, err := alloc.Primary()
	require.NoError(t, err)
	require.NoError(t, pb.Begin())
	require.NoError(t, pb.BeginRenderPass(fb, gpu.ClearColor{}, gpu.ContentsInline))
	assert.Error(t, pb.ExecuteCommands(sb), "inline pass must reject secondary execution")
}

func TestPrimaryRejectsUnsealedSecondary(t *testing.T) {
	dev := NewDevice()
	alloc, err := dev.NewCommandAllocator()
	require.NoError(t, err)
	pass, err := dev.CreateRenderPass(gpu.RenderPassConfig{
		ColorAttachment: gpu.AttachmentConfig{Format: gpu.FormatR8G8B8A8Unorm, Samples: 1},
	})
	require.NoError(t, err)
	img := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 4, Height: 4})
	fb, err := dev.CreateFramebuffer(pass, img)
	require.NoError(t, err)

	sb, err := alloc.Secondary()
	require.NoError(t, err)
	require.NoError(t, sb.Begin(gpu.Inheritance{Subpass: gpu.Subpass{Pass: pass}}))

	pb, err := alloc.Primary()
	require.NoError(t, err)
	require.NoError(t, pb.Begin())
	require.NoError(t, pb.BeginRenderPass(fb, gpu.ClearColor{}, gpu.ContentsSecondaryBuffers))
	assert.Error(t, pb.ExecuteCommands(sb), "secondary must be sealed before execution")
}

func TestQueueRecyclesCommandBuffers(t *testing.T) {
	dev := NewDevice()
	queue := NewQueue(dev)
	alloc, err := dev.NewCommandAllocator()
	require.NoError(t, err)
	pass, err := dev.CreateRenderPass(gpu.RenderPassConfig{
		ColorAttachment: gpu.AttachmentConfig{Format: gpu.FormatR8G8B8A8Unorm, Samples: 1},
	})
	require.NoError(t, err)
	img := dev.NewImage(gpu.FormatR8G8B8A8Unorm, gpu.Extent{Width: 4, Height: 4})

	submitOnce := func() {
		fb, err := dev.CreateFramebuffer(pass, img)
		require.NoError(t, err)
		pb, err := alloc.Primary()
		require.NoError(t, err)
		require.NoError(t, pb.Begin())
		require.NoError(t, pb.BeginRenderPass(fb, gpu.ClearColor{}, gpu.ContentsSecondaryBuffers))
		require.NoError(t, pb.EndRenderPass())
		require.NoError(t, pb.End())
		f, err := queue.Submit(pb, nil)
		require.NoError(t, err)
		require.NoError(t, f.Consume())
	}

	submitOnce()
	after := dev.Stats().CommandBuffers
	submitOnce()
	submitOnce()
	assert.Equal(t, after, dev.Stats().CommandBuffers,
		"later frames must reuse the recycled primary buffer")
}
