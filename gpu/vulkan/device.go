package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/serxka/voxel/gpu"
)

// Device wraps the logical device and implements gpu.Device plus
// gpu.Allocator.
type Device struct {
	handle         vk.Device
	gpu            vk.PhysicalDevice
	memProperties  vk.PhysicalDeviceMemoryProperties
	graphicsFamily uint32
}

// Handle exposes the raw vk.Device for collaborators in this package's
// test harness.
func (d *Device) Handle() vk.Device { return d.handle }

type shaderModule struct {
	handle vk.ShaderModule
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("vulkan: shader code length %d is not valid SPIR-V", len(code))
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(d.handle, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module)
	if isError(ret) {
		return nil, newError(ret)
	}
	return &shaderModule{handle: module}, nil
}

type renderPass struct {
	handle vk.RenderPass
	cfg    gpu.RenderPassConfig
}

func (r *renderPass) Config() gpu.RenderPassConfig { return r.cfg }

func (d *Device) CreateRenderPass(cfg gpu.RenderPassConfig) (gpu.RenderPass, error) {
	if cfg.ColorAttachment.Samples != 1 {
		return nil, fmt.Errorf("vulkan: unsupported sample count %d", cfg.ColorAttachment.Samples)
	}
	attachments := []vk.AttachmentDescription{{
		Flags:          vk.AttachmentDescriptionFlags(0),
		Format:         vk.Format(cfg.ColorAttachment.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOp(cfg.ColorAttachment.LoadOp),
		StoreOp:        vk.AttachmentStoreOp(cfg.ColorAttachment.StoreOp),
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayout(cfg.ColorAttachment.FinalLayout),
	}}

	colorReferences := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	subpasses := []vk.SubpassDescription{{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorReferences,
	}}

	dependencies := []vk.SubpassDependency{{
		SrcSubpass:      vk.MaxUint32,
		DstSubpass:      0,
		SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask:   vk.AccessFlags(0),
		DstAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
	}}

	var pass vk.RenderPass
	ret := vk.CreateRenderPass(d.handle, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}, nil, &pass)
	if isError(ret) {
		return nil, newError(ret)
	}
	return &renderPass{handle: pass, cfg: cfg}, nil
}

type imageView struct {
	handle vk.ImageView
	format gpu.Format
	extent gpu.Extent
}

func (v *imageView) Format() gpu.Format { return v.format }
func (v *imageView) Extent() gpu.Extent { return v.extent }

type framebuffer struct {
	handle vk.Framebuffer
	device vk.Device
	pass   *renderPass
	extent gpu.Extent
}

func (f *framebuffer) Extent() gpu.Extent { return f.extent }

func (f *framebuffer) destroy() {
	vk.DestroyFramebuffer(f.device, f.handle, nil)
}

func (d *Device) CreateFramebuffer(pass gpu.RenderPass, target gpu.ImageView) (gpu.Framebuffer, error) {
	rp, ok := pass.(*renderPass)
	if !ok {
		return nil, fmt.Errorf("vulkan: render pass belongs to a different backend")
	}
	view, ok := target.(*imageView)
	if !ok {
		return nil, fmt.Errorf("vulkan: image view belongs to a different backend")
	}
	// Checked host-side so the mismatch fails deterministically instead
	// of through a validation layer.
	if view.format != rp.cfg.ColorAttachment.Format {
		return nil, fmt.Errorf("vulkan: framebuffer target %d vs attachment %d: %w",
			view.format, rp.cfg.ColorAttachment.Format, gpu.ErrFormatMismatch)
	}

	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(d.handle, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.handle,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{view.handle},
		Width:           view.extent.Width,
		Height:          view.extent.Height,
		Layers:          1,
	}, nil, &fb)
	if isError(ret) {
		return nil, newError(ret)
	}
	return &framebuffer{handle: fb, device: d.handle, pass: rp, extent: view.extent}, nil
}

// sliceUint32 reinterprets SPIR-V bytes as the uint32 words the API
// expects.
func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
