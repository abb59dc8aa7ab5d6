package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/serxka/voxel/gpu"
)

// frameSlot carries the per-frame semaphore pair. acquire is signaled
// by AcquireNextImage, release by the submission that renders into the
// acquired image and waited on by Present. Slots are reused in order;
// the queue throttle keeps a slot's previous frame retired before the
// slot comes around again.
type frameSlot struct {
	acquire vk.Semaphore
	release vk.Semaphore
}

// Swapchain presents rendered frames to the platform surface with FIFO
// vertical sync. Acquire and Present pair up one to one per frame.
type Swapchain struct {
	platform *Platform
	handle   vk.Swapchain
	format   gpu.Format
	extent   gpu.Extent
	views    []*imageView
	slots    []frameSlot

	frame      uint64
	imageIndex uint32
}

// NewSwapchain builds a swapchain on the platform surface with roughly
// depth images (the surface may force more or fewer). The surface's
// first reported pixel format wins.
func NewSwapchain(p *Platform, depth uint32) (s *Swapchain, err error) {
	defer checkErr(&err)

	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(p.gpu, p.surface, &caps)
	orPanic(newError(ret))
	caps.Deref()
	caps.CurrentExtent.Deref()
	if caps.CurrentExtent.Width == vk.MaxUint32 {
		return nil, errors.New("vulkan error: surface reports no current extent")
	}

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(p.gpu, p.surface, &formatCount, nil)
	if formatCount == 0 {
		return nil, errors.New("vulkan error: surface reports no pixel formats")
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(p.gpu, p.surface, &formatCount, formats)
	formats[0].Deref()
	surfaceFormat := formats[0]
	if surfaceFormat.Format == vk.FormatUndefined {
		surfaceFormat.Format = vk.FormatB8g8r8a8Unorm
	}

	imageCount := depth
	if imageCount < caps.MinImageCount {
		imageCount = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	preTransform := caps.CurrentTransform
	if caps.SupportedTransforms&vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit) != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	var handle vk.Swapchain
	ret = vk.CreateSwapchain(p.device.handle, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          p.surface,
		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      caps.CurrentExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		// FIFO is the one present mode the implementation must support.
		PresentMode: vk.PresentModeFifo,
		Clipped:     vk.True,
	}, nil, &handle)
	orPanic(newError(ret))

	s = &Swapchain{
		platform: p,
		handle:   handle,
		format:   gpu.Format(surfaceFormat.Format),
		extent: gpu.Extent{
			Width:  caps.CurrentExtent.Width,
			Height: caps.CurrentExtent.Height,
		},
	}
	orPanic(s.createViews(surfaceFormat.Format), func() {
		vk.DestroySwapchain(p.device.handle, handle, nil)
	})
	orPanic(s.createSlots(), func() { s.Destroy() })
	return s, nil
}

func (s *Swapchain) createViews(format vk.Format) error {
	dev := s.platform.device.handle
	var count uint32
	ret := vk.GetSwapchainImages(dev, s.handle, &count, nil)
	if isError(ret) {
		return newError(ret)
	}
	images := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(dev, s.handle, &count, images)
	if isError(ret) {
		return newError(ret)
	}

	s.views = make([]*imageView, count)
	for i, img := range images {
		var view vk.ImageView
		ret = vk.CreateImageView(dev, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleR,
				G: vk.ComponentSwizzleG,
				B: vk.ComponentSwizzleB,
				A: vk.ComponentSwizzleA,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &view)
		if isError(ret) {
			return newError(ret)
		}
		s.views[i] = &imageView{handle: view, format: s.format, extent: s.extent}
	}
	return nil
}

func (s *Swapchain) createSlots() error {
	dev := s.platform.device.handle
	s.slots = make([]frameSlot, len(s.views))
	for i := range s.slots {
		for _, sem := range []*vk.Semaphore{&s.slots[i].acquire, &s.slots[i].release} {
			ret := vk.CreateSemaphore(dev, &vk.SemaphoreCreateInfo{
				SType: vk.StructureTypeSemaphoreCreateInfo,
			}, nil, sem)
			if isError(ret) {
				return newError(ret)
			}
		}
	}
	return nil
}

// Format returns the pixel format of the swapchain images.
func (s *Swapchain) Format() gpu.Format { return s.format }

// Extent returns the size of the swapchain images.
func (s *Swapchain) Extent() gpu.Extent { return s.extent }

// Acquire hands out the next presentable image. The returned future
// must gate the work that writes the image; it also routes that work's
// completion semaphore to the following Present. Acquire blocks while
// too many frames are in flight.
func (s *Swapchain) Acquire() (gpu.ImageView, gpu.Future, error) {
	// Leave one slot's worth of headroom so a slot's semaphores are
	// idle by the time it is reused.
	if err := s.platform.queue.throttle(len(s.slots) - 1); err != nil {
		return nil, nil, err
	}

	slot := &s.slots[s.frame%uint64(len(s.slots))]
	var index uint32
	ret := vk.AcquireNextImage(s.platform.device.handle, s.handle, vk.MaxUint64,
		slot.acquire, nil, &index)
	switch ret {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		return nil, nil, fmt.Errorf("vulkan: acquire: %w", gpu.ErrOutOfDate)
	default:
		return nil, nil, newError(ret)
	}
	s.frame++
	s.imageIndex = index

	future := &Future{
		queue:      s.platform.queue,
		waitSems:   []vk.Semaphore{slot.acquire},
		signalHint: slot.release,
	}
	return s.views[index], future, nil
}

// Present queues the last acquired image for display once the given
// future's work completes. The future is consumed.
func (s *Swapchain) Present(after gpu.Future) error {
	af, ok := after.(*Future)
	if !ok {
		return fmt.Errorf("vulkan: future belongs to a different backend")
	}
	if err := af.Consume(); err != nil {
		return err
	}
	ret := vk.QueuePresent(s.platform.queue.handle, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(af.waitSems)),
		PWaitSemaphores:    af.waitSems,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{s.imageIndex},
	})
	switch ret {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return fmt.Errorf("vulkan: present: %w", gpu.ErrOutOfDate)
	default:
		return newError(ret)
	}
}

// Destroy releases the swapchain and its views and semaphores. All
// queue work must have completed.
func (s *Swapchain) Destroy() {
	dev := s.platform.device.handle
	for _, slot := range s.slots {
		if slot.acquire != vk.NullSemaphore {
			vk.DestroySemaphore(dev, slot.acquire, nil)
		}
		if slot.release != vk.NullSemaphore {
			vk.DestroySemaphore(dev, slot.release, nil)
		}
	}
	s.slots = nil
	for _, v := range s.views {
		vk.DestroyImageView(dev, v.handle, nil)
	}
	s.views = nil
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(dev, s.handle, nil)
		s.handle = vk.NullSwapchain
	}
}
