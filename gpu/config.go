package gpu

// Config structs are plain literals with every field meaningful at its
// zero value or set explicitly by the caller. There are no builders and
// no hidden defaults; what the caller writes is the whole contract.

// AttachmentConfig describes a single color attachment.
type AttachmentConfig struct {
	Format      Format
	Samples     uint32
	LoadOp      LoadOp
	StoreOp     StoreOp
	FinalLayout Layout
}

// RenderPassConfig describes a single-subpass render pass with one
// color attachment and no depth/stencil.
type RenderPassConfig struct {
	ColorAttachment AttachmentConfig
}

// VertexAttribute describes one vertex input attribute.
type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// VertexInputConfig describes the layout of a single vertex buffer
// binding.
type VertexInputConfig struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// InputAssemblyConfig is the primitive assembly state.
type InputAssemblyConfig struct {
	Topology         Topology
	PrimitiveRestart bool
}

// RasterizationConfig is the fixed-function rasterizer state.
type RasterizationConfig struct {
	DepthClamp        bool
	RasterizerDiscard bool
	PolygonMode       PolygonMode
	CullMode          CullMode
	FrontFace         FrontFace
	LineWidth         float32
}

// MultisampleConfig is the sample count state.
type MultisampleConfig struct {
	Samples uint32
}

// ColorBlendConfig is the blend state for the sole color attachment.
type ColorBlendConfig struct {
	BlendEnable bool
	WriteMask   ColorComponents
}

// PipelineConfig gathers everything a graphics pipeline is compiled
// from. The pipeline layout is implicit and empty: no descriptor sets,
// no push constants.
type PipelineConfig struct {
	VertexShader   ShaderModule
	FragmentShader ShaderModule

	VertexInput   VertexInputConfig
	InputAssembly InputAssemblyConfig
	Rasterization RasterizationConfig
	Multisample   MultisampleConfig
	ColorBlend    ColorBlendConfig

	// DynamicViewport leaves the viewport out of the compiled state so
	// the pipeline survives window resizes; the viewport is then set
	// per command buffer.
	DynamicViewport bool

	Subpass Subpass
}
