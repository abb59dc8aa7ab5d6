package vulkan

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/serxka/voxel/gpu"
)

// Queue wraps the single graphics queue. Submissions chain through
// semaphores carried by futures and retire through fences: every
// Submit sweeps finished work so command buffers and per-frame
// framebuffers come back without ever blocking on the GPU.
type Queue struct {
	device *Device
	handle vk.Queue

	inFlight   []*submission
	freeFences []vk.Fence
}

// submission is one primary buffer in flight. doneSems are semaphores
// this submission took ownership of by waiting on them; they are safe
// to destroy once the fence signals.
type submission struct {
	fence    vk.Fence
	buffer   *primaryBuffer
	doneSems []vk.Semaphore
}

// Future is the handle to pending queue or swapchain work. It is
// consumed exactly once, by the next Submit or Present that waits on
// it. ownedSems lists semaphores the consumer must dispose of;
// swapchain-owned semaphores are not listed.
type Future struct {
	queue     *Queue
	waitSems  []vk.Semaphore
	ownedSems []vk.Semaphore
	// signalHint, when set, is a caller-owned semaphore the producing
	// submission should signal instead of allocating a fresh one. The
	// swapchain sets it so Present can wait on a per-slot semaphore.
	signalHint vk.Semaphore
	consumed   bool
}

// Consume marks the future as used. Work that waits on the future's
// semaphores calls this through Submit or Present; callers only call
// it directly to discard a future they will not chain.
func (f *Future) Consume() error {
	if f.consumed {
		return gpu.ErrFutureConsumed
	}
	f.consumed = true
	return nil
}

func newQueue(device *Device, handle vk.Queue) *Queue {
	return &Queue{device: device, handle: handle}
}

func (q *Queue) fence() (vk.Fence, error) {
	if n := len(q.freeFences); n > 0 {
		f := q.freeFences[n-1]
		q.freeFences = q.freeFences[:n-1]
		return f, nil
	}
	var f vk.Fence
	ret := vk.CreateFence(q.device.handle, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &f)
	if isError(ret) {
		return vk.NullFence, newError(ret)
	}
	return f, nil
}

// sweep retires every submission whose fence has signaled.
func (q *Queue) sweep() {
	kept := q.inFlight[:0]
	for _, s := range q.inFlight {
		if vk.GetFenceStatus(q.device.handle, s.fence) != vk.Success {
			kept = append(kept, s)
			continue
		}
		q.retire(s)
	}
	q.inFlight = kept
}

// throttle blocks until at most max submissions remain in flight.
func (q *Queue) throttle(max int) error {
	q.sweep()
	for len(q.inFlight) > max {
		s := q.inFlight[0]
		ret := vk.WaitForFences(q.device.handle, 1, []vk.Fence{s.fence}, vk.True, vk.MaxUint64)
		if isError(ret) {
			return newError(ret)
		}
		q.retire(s)
		q.inFlight = q.inFlight[1:]
	}
	return nil
}

func (q *Queue) retire(s *submission) {
	s.buffer.retire()
	for _, sem := range s.doneSems {
		vk.DestroySemaphore(q.device.handle, sem, nil)
	}
	vk.ResetFences(q.device.handle, 1, []vk.Fence{s.fence})
	q.freeFences = append(q.freeFences, s.fence)
}

// Submit executes the sealed primary buffer after the given future's
// work completes. after may be nil for work with no dependency. The
// returned future must be consumed by a following Submit or Present.
func (q *Queue) Submit(cmd gpu.PrimaryCommandBuffer, after gpu.Future) (gpu.Future, error) {
	pb, ok := cmd.(*primaryBuffer)
	if !ok {
		return nil, fmt.Errorf("vulkan: command buffer belongs to a different backend")
	}
	if pb.state != stateSealed {
		return nil, fmt.Errorf("vulkan: command buffer submitted before End")
	}
	q.sweep()

	var waitSems []vk.Semaphore
	var ownedSems []vk.Semaphore
	var signalHint vk.Semaphore
	if after != nil {
		af, ok := after.(*Future)
		if !ok {
			return nil, fmt.Errorf("vulkan: future belongs to a different backend")
		}
		if err := af.Consume(); err != nil {
			return nil, err
		}
		waitSems = af.waitSems
		ownedSems = af.ownedSems
		signalHint = af.signalHint
	}

	signal := signalHint
	var signalOwned []vk.Semaphore
	if signal == vk.NullSemaphore {
		ret := vk.CreateSemaphore(q.device.handle, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &signal)
		if isError(ret) {
			return nil, newError(ret)
		}
		signalOwned = []vk.Semaphore{signal}
	}

	fence, err := q.fence()
	if err != nil {
		return nil, err
	}

	// Wait at color attachment output: the render pass writes nothing
	// earlier, so vertex work overlaps the dependency.
	waitStages := make([]vk.PipelineStageFlags, len(waitSems))
	for i := range waitStages {
		waitStages[i] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}
	ret := vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waitSems)),
		PWaitSemaphores:      waitSems,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{pb.cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal},
	}}, fence)
	if isError(ret) {
		vk.ResetFences(q.device.handle, 1, []vk.Fence{fence})
		q.freeFences = append(q.freeFences, fence)
		for _, sem := range signalOwned {
			vk.DestroySemaphore(q.device.handle, sem, nil)
		}
		return nil, newError(ret)
	}

	q.inFlight = append(q.inFlight, &submission{
		fence:    fence,
		buffer:   pb,
		doneSems: ownedSems,
	})
	return &Future{
		queue:     q,
		waitSems:  []vk.Semaphore{signal},
		ownedSems: signalOwned,
	}, nil
}

// WaitIdle blocks until all submitted work finishes, then retires it.
func (q *Queue) WaitIdle() error {
	ret := vk.QueueWaitIdle(q.handle)
	if isError(ret) {
		return newError(ret)
	}
	for _, s := range q.inFlight {
		q.retire(s)
	}
	q.inFlight = q.inFlight[:0]
	return nil
}

// destroy releases pooled fences. Call after WaitIdle.
func (q *Queue) destroy() {
	for _, f := range q.freeFences {
		vk.DestroyFence(q.device.handle, f, nil)
	}
	q.freeFences = nil
}
