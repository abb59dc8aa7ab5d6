package gpu

// Format is a pixel or vertex attribute format. Values match the Vulkan
// VkFormat numbering so the vulkan backend can cast directly.
type Format int32

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8Unorm Format = 37
	FormatR8G8B8A8Srgb  Format = 43
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8Srgb  Format = 50
	FormatR32G32Sfloat  Format = 103
)

// Extent is a 2D size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Viewport is the dynamic viewport transform state.
type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// ClearColor is an RGBA clear value for a color attachment.
type ClearColor [4]float32

// LoadOp selects attachment behavior at render pass begin.
type LoadOp int32

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

// StoreOp selects attachment behavior at render pass end.
type StoreOp int32

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// Layout is the image layout an attachment is left in after the pass.
type Layout int32

const (
	LayoutUndefined       Layout = 0
	LayoutColorAttachment Layout = 2
	LayoutPresentSrc      Layout = 1000001002
)

// Topology is the primitive assembly mode.
type Topology int32

const TopologyTriangleList Topology = 3

// PolygonMode selects fill or wireframe rasterization.
type PolygonMode int32

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
)

// CullMode selects which triangle faces are discarded.
type CullMode int32

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// FrontFace selects the winding considered front-facing.
type FrontFace int32

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

// ColorComponents is a bitmask of writable color channels.
type ColorComponents uint32

const (
	ColorComponentR ColorComponents = 1 << iota
	ColorComponentG
	ColorComponentB
	ColorComponentA

	ColorComponentsAll = ColorComponentR | ColorComponentG | ColorComponentB | ColorComponentA
)
