package softpipe

import (
	"fmt"

	"github.com/serxka/voxel/gpu"
)

type recState int

const (
	stateInitial recState = iota
	stateRecording
	stateInPass
	stateSealed
)

type commandAllocator struct {
	dev           *Device
	freePrimary   []*PrimaryBuffer
	freeSecondary []*SecondaryBuffer
}

func (a *commandAllocator) Primary() (gpu.PrimaryCommandBuffer, error) {
	if n := len(a.freePrimary); n > 0 {
		b := a.freePrimary[n-1]
		a.freePrimary = a.freePrimary[:n-1]
		*b = PrimaryBuffer{alloc: a}
		return b, nil
	}
	a.dev.stats.CommandBuffers++
	return &PrimaryBuffer{alloc: a}, nil
}

func (a *commandAllocator) Secondary() (gpu.SecondaryCommandBuffer, error) {
	if n := len(a.freeSecondary); n > 0 {
		b := a.freeSecondary[n-1]
		a.freeSecondary = a.freeSecondary[:n-1]
		*b = SecondaryBuffer{alloc: a}
		return b, nil
	}
	a.dev.stats.CommandBuffers++
	return &SecondaryBuffer{alloc: a}, nil
}

func (a *commandAllocator) Destroy() {
	a.freePrimary = nil
	a.freeSecondary = nil
}

// Op identifies a recorded secondary-buffer command.
type Op int

const (
	OpSetViewport Op = iota
	OpBindPipeline
	OpBindVertexBuffer
	OpDraw
)

// Command is one recorded secondary-buffer command. Only the fields
// relevant to the Op are set.
type Command struct {
	Op Op

	Viewport gpu.Viewport
	Pipeline gpu.Pipeline
	Binding  uint32
	Buffer   gpu.Buffer

	VertexCount   uint32
	InstanceCount uint32
}

// SecondaryBuffer retains its recorded commands for inspection.
type SecondaryBuffer struct {
	alloc   *commandAllocator
	state   recState
	inherit gpu.Inheritance
	cmds    []Command
}

// Commands returns the recorded command list in recording order.
func (b *SecondaryBuffer) Commands() []Command { return b.cmds }

// RecordedViewport returns the last recorded viewport, if any.
func (b *SecondaryBuffer) RecordedViewport() (gpu.Viewport, bool) {
	for i := len(b.cmds) - 1; i >= 0; i-- {
		if b.cmds[i].Op == OpSetViewport {
			return b.cmds[i].Viewport, true
		}
	}
	return gpu.Viewport{}, false
}

func (b *SecondaryBuffer) Begin(inherit gpu.Inheritance) error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateInitial {
		return fmt.Errorf("softpipe: secondary buffer Begin called twice")
	}
	if inherit.Subpass.Pass == nil {
		return fmt.Errorf("softpipe: secondary buffer inheritance names no subpass")
	}
	b.state = stateRecording
	b.inherit = inherit
	b.cmds = b.cmds[:0]
	return nil
}

func (b *SecondaryBuffer) record(c Command) error {
	switch b.state {
	case stateSealed:
		return gpu.ErrRecordingSealed
	case stateRecording:
		b.cmds = append(b.cmds, c)
		return nil
	default:
		return gpu.ErrNotRecording
	}
}

func (b *SecondaryBuffer) SetViewport(v gpu.Viewport) error {
	return b.record(Command{Op: OpSetViewport, Viewport: v})
}

func (b *SecondaryBuffer) BindPipeline(p gpu.Pipeline) error {
	if _, ok := p.(*pipeline); !ok {
		return fmt.Errorf("softpipe: pipeline belongs to a different backend")
	}
	return b.record(Command{Op: OpBindPipeline, Pipeline: p})
}

func (b *SecondaryBuffer) BindVertexBuffer(binding uint32, buf gpu.Buffer) error {
	if _, ok := buf.(*buffer); !ok {
		return fmt.Errorf("softpipe: buffer belongs to a different backend")
	}
	return b.record(Command{Op: OpBindVertexBuffer, Binding: binding, Buffer: buf})
}

func (b *SecondaryBuffer) Draw(vertexCount, instanceCount uint32) error {
	return b.record(Command{Op: OpDraw, VertexCount: vertexCount, InstanceCount: instanceCount})
}

func (b *SecondaryBuffer) End() error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateRecording {
		return gpu.ErrNotRecording
	}
	b.state = stateSealed
	return nil
}

// PrimaryBuffer is a one-time-submit command sequence. Execution
// happens when the buffer reaches the queue.
type PrimaryBuffer struct {
	alloc    *commandAllocator
	state    recState
	fb       *framebuffer
	clear    gpu.ClearColor
	contents gpu.SubpassContents
	execs    []*SecondaryBuffer
}

func (b *PrimaryBuffer) Begin() error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateInitial {
		return fmt.Errorf("softpipe: primary buffer Begin called twice")
	}
	b.state = stateRecording
	b.execs = b.execs[:0]
	return nil
}

func (b *PrimaryBuffer) BeginRenderPass(fb gpu.Framebuffer, clear gpu.ClearColor, contents gpu.SubpassContents) error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateRecording {
		return gpu.ErrNotRecording
	}
	f, ok := fb.(*framebuffer)
	if !ok {
		return fmt.Errorf("softpipe: framebuffer belongs to a different backend")
	}
	b.state = stateInPass
	b.fb = f
	b.clear = clear
	b.contents = contents
	return nil
}

func (b *PrimaryBuffer) ExecuteCommands(cb gpu.SecondaryCommandBuffer) error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateInPass {
		return gpu.ErrNotRecording
	}
	if b.contents != gpu.ContentsSecondaryBuffers {
		return fmt.Errorf("softpipe: subpass contents are inline, secondary execution not permitted")
	}
	sb, ok := cb.(*SecondaryBuffer)
	if !ok {
		return fmt.Errorf("softpipe: secondary buffer belongs to a different backend")
	}
	if sb.state != stateSealed {
		return fmt.Errorf("softpipe: secondary buffer executed before End")
	}
	if sb.inherit.Subpass.Pass != b.fb.pass {
		return fmt.Errorf("softpipe: secondary buffer inherits a different render pass")
	}
	b.execs = append(b.execs, sb)
	return nil
}

func (b *PrimaryBuffer) EndRenderPass() error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateInPass {
		return gpu.ErrNotRecording
	}
	b.state = stateRecording
	return nil
}

func (b *PrimaryBuffer) End() error {
	if b.state == stateSealed {
		return gpu.ErrRecordingSealed
	}
	if b.state != stateRecording {
		return gpu.ErrNotRecording
	}
	b.state = stateSealed
	return nil
}

// execute runs the recorded sequence and recycles the buffers involved.
func (b *PrimaryBuffer) execute() error {
	if b.state != stateSealed {
		return fmt.Errorf("softpipe: primary buffer submitted before End")
	}
	b.fb.target.clear(b.clear)
	for _, sb := range b.execs {
		if err := executeSecondary(b.fb, sb); err != nil {
			return err
		}
	}
	for _, sb := range b.execs {
		if sb.alloc != nil {
			sb.state = stateInitial
			sb.alloc.freeSecondary = append(sb.alloc.freeSecondary, sb)
		}
	}
	if b.alloc != nil {
		b.state = stateInitial
		b.alloc.freePrimary = append(b.alloc.freePrimary, b)
	}
	return nil
}
