package softpipe

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/serxka/voxel/gpu"
)

// flatColor is the constant the fragment stage writes, matching the
// fragment shader this project ships.
var flatColor = [4]float32{1, 0, 0, 1}

type point struct {
	x, y float32
}

// executeSecondary replays a recorded secondary buffer against the
// framebuffer's target image.
func executeSecondary(fb *framebuffer, sb *SecondaryBuffer) error {
	var (
		vp    gpu.Viewport
		hasVP bool
		pl    *pipeline
		vb    *buffer
	)
	for _, c := range sb.cmds {
		switch c.Op {
		case OpSetViewport:
			vp = c.Viewport
			hasVP = true
		case OpBindPipeline:
			pl = c.Pipeline.(*pipeline)
		case OpBindVertexBuffer:
			vb = c.Buffer.(*buffer)
		case OpDraw:
			if pl == nil || vb == nil {
				return fmt.Errorf("softpipe: draw without bound pipeline or vertex buffer")
			}
			if !hasVP {
				if !pl.cfg.DynamicViewport {
					return fmt.Errorf("softpipe: pipeline has static viewport state, which this backend does not carry")
				}
				return fmt.Errorf("softpipe: draw with dynamic viewport but no SetViewport recorded")
			}
			if err := rasterize(fb.target, vp, pl, vb, c.VertexCount, c.InstanceCount); err != nil {
				return err
			}
		}
	}
	return nil
}

// rasterize runs the fixed vertex stage (2D position passthrough, z=0,
// w=1), the viewport transform and an edge-function fill per triangle.
func rasterize(img *Image, vp gpu.Viewport, pl *pipeline, vb *buffer, vertexCount, instanceCount uint32) error {
	positions, err := decodePositions(pl.cfg.VertexInput, vb.data, vertexCount)
	if err != nil {
		return err
	}

	// Clip space to framebuffer space. Vulkan's clip origin is top
	// left, so no Y flip happens here.
	screen := make([]point, len(positions))
	for i, p := range positions {
		screen[i] = point{
			x: vp.X + (p.x+1)*0.5*vp.Width,
			y: vp.Y + (p.y+1)*0.5*vp.Height,
		}
	}

	for inst := uint32(0); inst < instanceCount; inst++ {
		for tri := 0; tri+2 < len(screen); tri += 3 {
			fillTriangle(img, pl.cfg.ColorBlend.WriteMask, screen[tri], screen[tri+1], screen[tri+2])
		}
	}
	return nil
}

func decodePositions(layout gpu.VertexInputConfig, data []byte, count uint32) ([]point, error) {
	var attr *gpu.VertexAttribute
	for i := range layout.Attributes {
		if layout.Attributes[i].Location == 0 {
			attr = &layout.Attributes[i]
			break
		}
	}
	if attr == nil {
		return nil, fmt.Errorf("softpipe: vertex input has no attribute at location 0")
	}
	if attr.Format != gpu.FormatR32G32Sfloat {
		return nil, fmt.Errorf("softpipe: unsupported position format %d", attr.Format)
	}
	need := int(count-1)*int(layout.Stride) + int(attr.Offset) + 8
	if count == 0 || len(data) < need {
		return nil, fmt.Errorf("softpipe: vertex buffer too small: have %d bytes, draw needs %d", len(data), need)
	}
	out := make([]point, count)
	for i := uint32(0); i < count; i++ {
		base := int(i)*int(layout.Stride) + int(attr.Offset)
		out[i] = point{
			x: math.Float32frombits(binary.LittleEndian.Uint32(data[base:])),
			y: math.Float32frombits(binary.LittleEndian.Uint32(data[base+4:])),
		}
	}
	return out, nil
}

func edge(a, b, p point) float32 {
	return (b.x-a.x)*(p.y-a.y) - (b.y-a.y)*(p.x-a.x)
}

func fillTriangle(img *Image, mask gpu.ColorComponents, a, b, c point) {
	area := edge(a, b, c)
	if area == 0 {
		return
	}
	// Cull mode is none: accept both windings by normalizing the sign.
	sign := float32(1)
	if area < 0 {
		sign = -1
	}

	w, h := float32(img.extent.Width), float32(img.extent.Height)
	x0 := int(math32.Max(math32.Floor(math32.Min(a.x, math32.Min(b.x, c.x))), 0))
	y0 := int(math32.Max(math32.Floor(math32.Min(a.y, math32.Min(b.y, c.y))), 0))
	x1 := int(math32.Min(math32.Ceil(math32.Max(a.x, math32.Max(b.x, c.x))), w))
	y1 := int(math32.Min(math32.Ceil(math32.Max(a.y, math32.Max(b.y, c.y))), h))

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			p := point{x: float32(x) + 0.5, y: float32(y) + 0.5}
			if sign*edge(a, b, p) < 0 || sign*edge(b, c, p) < 0 || sign*edge(c, a, p) < 0 {
				continue
			}
			out := img.At(x, y)
			if mask&gpu.ColorComponentR != 0 {
				out[0] = flatColor[0]
			}
			if mask&gpu.ColorComponentG != 0 {
				out[1] = flatColor[1]
			}
			if mask&gpu.ColorComponentB != 0 {
				out[2] = flatColor[2]
			}
			if mask&gpu.ColorComponentA != 0 {
				out[3] = flatColor[3]
			}
			img.set(x, y, out)
		}
	}
}
