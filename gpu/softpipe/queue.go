package softpipe

import (
	"fmt"

	"github.com/serxka/voxel/gpu"
)

// Future is a sequence-numbered ordering token. The queue's clock
// assigns a number to every signal point (image acquisition, submission
// completion); chaining records which point each submission waited on.
type Future struct {
	queue    *Queue
	seq      uint64
	consumed bool
}

func (f *Future) Consume() error {
	if f.consumed {
		return gpu.ErrFutureConsumed
	}
	f.consumed = true
	return nil
}

// Seq returns the signal point this future represents.
func (f *Future) Seq() uint64 { return f.seq }

// Submission records one queue submission for test inspection.
type Submission struct {
	// Seq is the signal point of this submission's completion.
	Seq uint64
	// After is the signal point the submission waited on, 0 for none.
	After uint64
}

// Queue executes submissions synchronously in submission order.
type Queue struct {
	dev         *Device
	clock       uint64
	submissions []Submission
}

func NewQueue(dev *Device) *Queue {
	return &Queue{dev: dev}
}

// Now returns a future for the current point in the queue's timeline,
// for seeding the first frame of a chain.
func (q *Queue) Now() gpu.Future {
	return &Future{queue: q, seq: q.clock}
}

// Submissions returns every submission seen so far, in order.
func (q *Queue) Submissions() []Submission { return q.submissions }

func (q *Queue) Submit(cmd gpu.PrimaryCommandBuffer, after gpu.Future) (gpu.Future, error) {
	pb, ok := cmd.(*PrimaryBuffer)
	if !ok {
		return nil, fmt.Errorf("softpipe: command buffer belongs to a different backend")
	}
	var waited uint64
	if after != nil {
		f, ok := after.(*Future)
		if !ok {
			return nil, fmt.Errorf("softpipe: future belongs to a different backend")
		}
		if err := f.Consume(); err != nil {
			return nil, err
		}
		waited = f.seq
	}
	if err := pb.execute(); err != nil {
		return nil, err
	}
	q.clock++
	q.submissions = append(q.submissions, Submission{Seq: q.clock, After: waited})
	return &Future{queue: q, seq: q.clock}, nil
}

func (q *Queue) WaitIdle() error { return nil }

// Swapchain is a fixed-extent headless swapchain over CPU images.
type Swapchain struct {
	dev       *Device
	queue     *Queue
	images    []*Image
	next      int
	acquired  []uint64
	presented []uint64
	failNext  error
}

func NewSwapchain(dev *Device, q *Queue, format gpu.Format, extent gpu.Extent, depth int) *Swapchain {
	s := &Swapchain{dev: dev, queue: q}
	for i := 0; i < depth; i++ {
		s.images = append(s.images, dev.NewImage(format, extent))
	}
	return s
}

func (s *Swapchain) Format() gpu.Format { return s.images[0].format }
func (s *Swapchain) Extent() gpu.Extent { return s.images[0].extent }

// Image returns the swapchain image at slot i, for pixel assertions.
func (s *Swapchain) Image(i int) *Image { return s.images[i] }

// AcquireSeqs returns the signal point of every acquisition so far.
func (s *Swapchain) AcquireSeqs() []uint64 { return s.acquired }

// PresentedSeqs returns the signal point every presented frame was
// gated on.
func (s *Swapchain) PresentedSeqs() []uint64 { return s.presented }

// FailNextAcquire primes the next Acquire call to fail with err.
func (s *Swapchain) FailNextAcquire(err error) { s.failNext = err }

func (s *Swapchain) Acquire() (gpu.ImageView, gpu.Future, error) {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return nil, nil, err
	}
	img := s.images[s.next]
	s.next = (s.next + 1) % len(s.images)
	s.queue.clock++
	s.acquired = append(s.acquired, s.queue.clock)
	return img, &Future{queue: s.queue, seq: s.queue.clock}, nil
}

func (s *Swapchain) Present(after gpu.Future) error {
	f, ok := after.(*Future)
	if !ok {
		return fmt.Errorf("softpipe: future belongs to a different backend")
	}
	if err := f.Consume(); err != nil {
		return err
	}
	s.presented = append(s.presented, f.seq)
	return nil
}
