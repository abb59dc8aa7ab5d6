// Package render draws a single flat-shaded triangle into a target
// image once per frame. It owns the render pass, the compiled pipeline
// and the fixed vertex buffer; the windowing layer supplies a device,
// a graphics queue, the target format and, per frame, a writable image
// view plus the future gating it.
package render

import (
	"fmt"

	"github.com/xlab/linmath"

	"github.com/serxka/voxel/gpu"
)

// ShaderSource carries the SPIR-V code for the two pipeline stages.
type ShaderSource struct {
	Vertex   []byte
	Fragment []byte
}

// triangleMesh is the fixed vertex set, 2D positions only. The vertex
// data never changes with window size; the viewport transform does.
type triangleMesh struct {
	data linmath.ArrayFloat32
}

func newTriangleMesh() triangleMesh {
	return triangleMesh{data: linmath.ArrayFloat32([]float32{
		0.0, -0.5,
		0.5, 0.5,
		-0.5, 0.5,
	})}
}

func (m triangleMesh) Bytes() []byte { return m.data.Data() }

func (m triangleMesh) Count() uint32 { return uint32(len(m.data) / 2) }

func (m triangleMesh) Layout() gpu.VertexInputConfig {
	return gpu.VertexInputConfig{
		Stride: 2 * 4,
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.FormatR32G32Sfloat, Offset: 0},
		},
	}
}

// TrianglePipeline is the compiled draw program: shader stages, vertex
// buffer and fixed-function state bound to one subpass. It is built
// once at startup and produces a ready-to-execute secondary command
// buffer for the current viewport size on each request.
type TrianglePipeline struct {
	queue       gpu.Queue
	commands    gpu.CommandAllocator
	pipeline    gpu.Pipeline
	subpass     gpu.Subpass
	vertices    gpu.Buffer
	vertexCount uint32
}

// NewTrianglePipeline uploads the fixed vertex buffer, compiles both
// shader stages and builds the pipeline against the given subpass.
// Every failure here is a startup invariant violation; callers abort.
func NewTrianglePipeline(device gpu.Device, alloc gpu.Allocator, queue gpu.Queue,
	subpass gpu.Subpass, shaders ShaderSource) (*TrianglePipeline, error) {

	mesh := newTriangleMesh()
	vertices, err := alloc.CreateVertexBuffer(mesh.Bytes())
	if err != nil {
		return nil, fmt.Errorf("render: vertex buffer: %w", err)
	}
	vs, err := device.CreateShaderModule(shaders.Vertex)
	if err != nil {
		return nil, fmt.Errorf("render: vertex shader: %w", err)
	}
	fs, err := device.CreateShaderModule(shaders.Fragment)
	if err != nil {
		return nil, fmt.Errorf("render: fragment shader: %w", err)
	}

	pipeline, err := device.CreateGraphicsPipeline(gpu.PipelineConfig{
		VertexShader:   vs,
		FragmentShader: fs,
		VertexInput:    mesh.Layout(),
		InputAssembly: gpu.InputAssemblyConfig{
			Topology:         gpu.TopologyTriangleList,
			PrimitiveRestart: false,
		},
		Rasterization: gpu.RasterizationConfig{
			DepthClamp:        false,
			RasterizerDiscard: false,
			PolygonMode:       gpu.PolygonModeFill,
			CullMode:          gpu.CullModeNone,
			FrontFace:         gpu.FrontFaceClockwise,
			LineWidth:         1.0,
		},
		Multisample: gpu.MultisampleConfig{
			Samples: 1,
		},
		ColorBlend: gpu.ColorBlendConfig{
			BlendEnable: false,
			WriteMask:   gpu.ColorComponentsAll,
		},
		// Viewport is the only dynamic state, so the pipeline survives
		// window resizes without a rebuild.
		DynamicViewport: true,
		Subpass:         subpass,
	})
	if err != nil {
		return nil, fmt.Errorf("render: pipeline: %w", err)
	}

	commands, err := device.NewCommandAllocator()
	if err != nil {
		return nil, fmt.Errorf("render: command allocator: %w", err)
	}

	return &TrianglePipeline{
		queue:       queue,
		commands:    commands,
		pipeline:    pipeline,
		subpass:     subpass,
		vertices:    vertices,
		vertexCount: mesh.Count(),
	}, nil
}

// Draw records a secondary command buffer for the given viewport size,
// ready for one-time execution inside a primary buffer that has begun
// the matching subpass. Recording carries no frame-to-frame state: the
// same extent yields the same recorded commands.
func (p *TrianglePipeline) Draw(extent gpu.Extent) (gpu.SecondaryCommandBuffer, error) {
	cb, err := p.commands.Secondary()
	if err != nil {
		return nil, fmt.Errorf("render: secondary buffer: %w", err)
	}
	if err := cb.Begin(gpu.Inheritance{Subpass: p.subpass}); err != nil {
		return nil, err
	}
	if err := cb.SetViewport(gpu.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}); err != nil {
		return nil, err
	}
	if err := cb.BindPipeline(p.pipeline); err != nil {
		return nil, err
	}
	if err := cb.BindVertexBuffer(0, p.vertices); err != nil {
		return nil, err
	}
	if err := cb.Draw(p.vertexCount, 1); err != nil {
		return nil, err
	}
	if err := cb.End(); err != nil {
		return nil, err
	}
	return cb, nil
}
