package vulkan

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"

	"github.com/serxka/voxel/gpu"
)

// newTestPlatform skips the test when no Vulkan loader or device is
// available, so the suite still passes on headless CI machines.
func newTestPlatform(t *testing.T) *Platform {
	t.Helper()
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		t.Skipf("no vulkan loader: %v", err)
	}
	if err := vk.Init(); err != nil {
		t.Skipf("vulkan init failed: %v", err)
	}
	p, err := NewPlatform(Config{AppName: "voxel-test"})
	if err != nil {
		t.Skipf("no usable vulkan device: %v", err)
	}
	return p
}

func TestPlatformHeadless(t *testing.T) {
	p := newTestPlatform(t)
	defer p.Destroy()

	if p.Device() == nil || p.Queue() == nil {
		t.Fatal("platform came up without device or queue")
	}
}

func TestSubmitEmptyPrimary(t *testing.T) {
	p := newTestPlatform(t)
	defer p.Destroy()

	alloc, err := p.Device().NewCommandAllocator()
	if err != nil {
		t.Fatalf("command allocator: %v", err)
	}
	defer alloc.Destroy()

	cmd, err := alloc.Primary()
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	if err := cmd.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := cmd.End(); err != nil {
		t.Fatalf("end: %v", err)
	}

	future, err := p.Queue().Submit(cmd, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := p.Queue().WaitIdle(); err != nil {
		t.Fatalf("wait idle: %v", err)
	}
	if err := future.Consume(); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := future.Consume(); err != gpu.ErrFutureConsumed {
		t.Fatalf("second consume: got %v, want ErrFutureConsumed", err)
	}
}

func TestVertexBufferUpload(t *testing.T) {
	p := newTestPlatform(t)
	defer p.Destroy()

	data := []byte{0, 0, 0, 0, 0, 0, 0, 63}
	buf, err := p.Device().CreateVertexBuffer(data)
	if err != nil {
		t.Fatalf("vertex buffer: %v", err)
	}
	if buf.Size() != len(data) {
		t.Fatalf("size: got %d, want %d", buf.Size(), len(data))
	}
}

func TestSecondaryRecordingInheritance(t *testing.T) {
	p := newTestPlatform(t)
	defer p.Destroy()

	pass, err := p.Device().CreateRenderPass(gpu.RenderPassConfig{
		ColorAttachment: gpu.AttachmentConfig{
			Format:      gpu.FormatB8G8R8A8Unorm,
			Samples:     1,
			LoadOp:      gpu.LoadOpClear,
			StoreOp:     gpu.StoreOpStore,
			FinalLayout: gpu.LayoutPresentSrc,
		},
	})
	if err != nil {
		t.Fatalf("render pass: %v", err)
	}

	alloc, err := p.Device().NewCommandAllocator()
	if err != nil {
		t.Fatalf("command allocator: %v", err)
	}
	defer alloc.Destroy()

	cb, err := alloc.Secondary()
	if err != nil {
		t.Fatalf("secondary: %v", err)
	}
	if err := cb.Begin(gpu.Inheritance{Subpass: gpu.Subpass{Pass: pass, Index: 0}}); err != nil {
		t.Fatalf("begin with inheritance: %v", err)
	}
	if err := cb.SetViewport(gpu.Viewport{Width: 64, Height: 64, MaxDepth: 1}); err != nil {
		t.Fatalf("set viewport: %v", err)
	}
	if err := cb.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
}

func TestSubmitUnsealedBuffer(t *testing.T) {
	p := newTestPlatform(t)
	defer p.Destroy()

	alloc, err := p.Device().NewCommandAllocator()
	if err != nil {
		t.Fatalf("command allocator: %v", err)
	}
	defer alloc.Destroy()

	cmd, err := alloc.Primary()
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	if err := cmd.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := p.Queue().Submit(cmd, nil); err == nil {
		t.Fatal("submit of unsealed buffer succeeded")
	}
}
