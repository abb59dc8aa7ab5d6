// Package softpipe is a CPU implementation of the gpu interfaces.
//
// It serves two purposes: unit tests exercise the frame core against it
// without a Vulkan driver, and headless runs can produce real pixels.
// Command buffers retain their recorded state in inspectable form, the
// queue executes submissions synchronously in submission order, and
// futures carry sequence numbers so tests can verify the chain.
//
// The shader model is fixed to the pipeline this project ships: the
// vertex stage passes 2D positions through to clip space with z=0, w=1
// and the fragment stage writes constant opaque red. Shader module code
// bytes are accepted and retained but not interpreted.
package softpipe

import (
	"fmt"

	"github.com/serxka/voxel/gpu"
)

// Device implements gpu.Device and gpu.Allocator on the CPU.
type Device struct {
	stats Stats
}

// Stats counts object constructions, for test assertions.
type Stats struct {
	Framebuffers   int
	Pipelines      int
	RenderPasses   int
	VertexBuffers  int
	CommandBuffers int
}

func NewDevice() *Device {
	return &Device{}
}

// Stats returns construction counters accumulated so far.
func (d *Device) Stats() Stats {
	return d.stats
}

// Image is a CPU image that doubles as its own gpu.ImageView.
type Image struct {
	format gpu.Format
	extent gpu.Extent
	// pix holds RGBA float32 values, row-major.
	pix []float32
}

// NewImage creates a CPU image view with the given format and extent.
func (d *Device) NewImage(format gpu.Format, extent gpu.Extent) *Image {
	return &Image{
		format: format,
		extent: extent,
		pix:    make([]float32, int(extent.Width)*int(extent.Height)*4),
	}
}

func (img *Image) Format() gpu.Format { return img.format }
func (img *Image) Extent() gpu.Extent { return img.extent }

// At returns the RGBA value stored at pixel (x, y).
func (img *Image) At(x, y int) [4]float32 {
	i := (y*int(img.extent.Width) + x) * 4
	return [4]float32{img.pix[i], img.pix[i+1], img.pix[i+2], img.pix[i+3]}
}

func (img *Image) set(x, y int, c [4]float32) {
	i := (y*int(img.extent.Width) + x) * 4
	img.pix[i], img.pix[i+1], img.pix[i+2], img.pix[i+3] = c[0], c[1], c[2], c[3]
}

func (img *Image) clear(c gpu.ClearColor) {
	for i := 0; i < len(img.pix); i += 4 {
		img.pix[i], img.pix[i+1], img.pix[i+2], img.pix[i+3] = c[0], c[1], c[2], c[3]
	}
}

type shaderModule struct {
	code []byte
}

type renderPass struct {
	cfg gpu.RenderPassConfig
}

func (r *renderPass) Config() gpu.RenderPassConfig { return r.cfg }

type framebuffer struct {
	pass   *renderPass
	target *Image
}

func (f *framebuffer) Extent() gpu.Extent { return f.target.extent }

type pipeline struct {
	cfg gpu.PipelineConfig
}

type buffer struct {
	data []byte
}

func (b *buffer) Size() int { return len(b.data) }

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	return &shaderModule{code: code}, nil
}

func (d *Device) CreateRenderPass(cfg gpu.RenderPassConfig) (gpu.RenderPass, error) {
	if cfg.ColorAttachment.Format == gpu.FormatUndefined {
		return nil, fmt.Errorf("softpipe: render pass attachment format is undefined")
	}
	d.stats.RenderPasses++
	return &renderPass{cfg: cfg}, nil
}

func (d *Device) CreateFramebuffer(pass gpu.RenderPass, target gpu.ImageView) (gpu.Framebuffer, error) {
	rp, ok := pass.(*renderPass)
	if !ok {
		return nil, fmt.Errorf("softpipe: render pass belongs to a different backend")
	}
	img, ok := target.(*Image)
	if !ok {
		return nil, fmt.Errorf("softpipe: image view belongs to a different backend")
	}
	if img.format != rp.cfg.ColorAttachment.Format {
		return nil, fmt.Errorf("softpipe: framebuffer target %d vs attachment %d: %w",
			img.format, rp.cfg.ColorAttachment.Format, gpu.ErrFormatMismatch)
	}
	d.stats.Framebuffers++
	return &framebuffer{pass: rp, target: img}, nil
}

func (d *Device) CreateGraphicsPipeline(cfg gpu.PipelineConfig) (gpu.Pipeline, error) {
	if cfg.VertexShader == nil || cfg.FragmentShader == nil {
		return nil, fmt.Errorf("softpipe: pipeline requires both shader stages")
	}
	if _, ok := cfg.Subpass.Pass.(*renderPass); !ok {
		return nil, fmt.Errorf("softpipe: pipeline subpass belongs to a different backend")
	}
	if cfg.VertexInput.Stride == 0 {
		return nil, fmt.Errorf("softpipe: pipeline vertex input has zero stride")
	}
	d.stats.Pipelines++
	return &pipeline{cfg: cfg}, nil
}

func (d *Device) CreateVertexBuffer(data []byte) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("softpipe: vertex buffer data is empty")
	}
	b := &buffer{data: make([]byte, len(data))}
	copy(b.data, data)
	d.stats.VertexBuffers++
	return b, nil
}

func (d *Device) NewCommandAllocator() (gpu.CommandAllocator, error) {
	return &commandAllocator{dev: d}, nil
}
