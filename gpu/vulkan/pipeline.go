package vulkan

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/serxka/voxel/gpu"
)

type pipeline struct {
	handle vk.Pipeline
	layout vk.PipelineLayout
}

// CreateGraphicsPipeline compiles the two shader stages and the
// fixed-function state into an immutable pipeline. The layout is empty:
// no descriptor sets, no push constants. When cfg.DynamicViewport is
// set the viewport state is compiled as dynamic and a placeholder
// viewport count of one is declared.
func (d *Device) CreateGraphicsPipeline(cfg gpu.PipelineConfig) (gpu.Pipeline, error) {
	vs, ok := cfg.VertexShader.(*shaderModule)
	if !ok {
		return nil, fmt.Errorf("vulkan: vertex shader belongs to a different backend")
	}
	fs, ok := cfg.FragmentShader.(*shaderModule)
	if !ok {
		return nil, fmt.Errorf("vulkan: fragment shader belongs to a different backend")
	}
	rp, ok := cfg.Subpass.Pass.(*renderPass)
	if !ok {
		return nil, fmt.Errorf("vulkan: subpass render pass belongs to a different backend")
	}

	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: vs.handle,
		PName:  safeString("main"),
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: fs.handle,
		PName:  safeString("main"),
	}}

	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    cfg.VertexInput.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}
	attributes := make([]vk.VertexInputAttributeDescription, len(cfg.VertexInput.Attributes))
	for i, a := range cfg.VertexInput.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(cfg.InputAssembly.Topology),
		PrimitiveRestartEnable: vkBool(cfg.InputAssembly.PrimitiveRestart),
	}

	// With the viewport dynamic, only the count is baked in here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vkBool(cfg.Rasterization.DepthClamp),
		RasterizerDiscardEnable: vkBool(cfg.Rasterization.RasterizerDiscard),
		PolygonMode:             vk.PolygonMode(cfg.Rasterization.PolygonMode),
		CullMode:                vk.CullModeFlags(cfg.Rasterization.CullMode),
		FrontFace:               vk.FrontFace(cfg.Rasterization.FrontFace),
		DepthBiasEnable:         vk.False,
		DepthBiasConstantFactor: 0.0,
		DepthBiasClamp:          0.0,
		DepthBiasSlopeFactor:    0.0,
		LineWidth:               cfg.Rasterization.LineWidth,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  vk.SampleCount1Bit,
		SampleShadingEnable:   vk.False,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	blendAttachments := []vk.PipelineColorBlendAttachmentState{{
		BlendEnable:    vkBool(cfg.ColorBlend.BlendEnable),
		ColorWriteMask: vk.ColorComponentFlags(cfg.ColorBlend.WriteMask),
	}}
	blendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    blendAttachments,
	}

	var dynamicState *vk.PipelineDynamicStateCreateInfo
	if cfg.DynamicViewport {
		dynamicStates := []vk.DynamicState{
			vk.DynamicStateViewport,
			vk.DynamicStateScissor,
		}
		dynamicState = &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		}
	}

	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(d.handle, &vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}, nil, &layout)
	if isError(ret) {
		return nil, newError(ret)
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PColorBlendState:    &blendState,
		PDynamicState:       dynamicState,
		Layout:              layout,
		RenderPass:          rp.handle,
		Subpass:             cfg.Subpass.Index,
	}

	pipelines := []vk.Pipeline{vk.NullPipeline}
	ret = vk.CreateGraphicsPipelines(d.handle, nil, 1,
		[]vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if isError(ret) {
		vk.DestroyPipelineLayout(d.handle, layout, nil)
		return nil, newError(ret)
	}
	return &pipeline{handle: pipelines[0], layout: layout}, nil
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
