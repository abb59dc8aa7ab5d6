package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/serxka/voxel/gpu"
)

type deviceBuffer struct {
	device vk.Device
	handle vk.Buffer
	memory vk.DeviceMemory
	size   int
}

func (b *deviceBuffer) Size() int { return b.size }

func (b *deviceBuffer) destroy() {
	vk.FreeMemory(b.device, b.memory, nil)
	vk.DestroyBuffer(b.device, b.handle, nil)
}

// CreateVertexBuffer allocates a host-visible, host-coherent buffer and
// uploads data once. The triangle's vertex data is written exactly once
// at startup, so a staging copy to device-local memory buys nothing.
func (d *Device) CreateVertexBuffer(data []byte) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("vulkan: vertex buffer data is empty")
	}

	var buffer vk.Buffer
	ret := vk.CreateBuffer(d.handle, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(len(data)),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if isError(ret) {
		return nil, newError(ret)
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, buffer, &memReqs)
	memReqs.Deref()

	memType, ok := findRequiredMemoryType(d.memProperties,
		vk.MemoryPropertyFlagBits(memReqs.MemoryTypeBits),
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if !ok {
		vk.DestroyBuffer(d.handle, buffer, nil)
		return nil, fmt.Errorf("vulkan: no host-visible memory type for vertex buffer")
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(d.handle, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &memory)
	if isError(ret) {
		vk.DestroyBuffer(d.handle, buffer, nil)
		return nil, newError(ret)
	}
	ret = vk.BindBufferMemory(d.handle, buffer, memory, 0)
	if isError(ret) {
		vk.FreeMemory(d.handle, memory, nil)
		vk.DestroyBuffer(d.handle, buffer, nil)
		return nil, newError(ret)
	}

	// Map the memory and dump data in there.
	var pData unsafe.Pointer
	ret = vk.MapMemory(d.handle, memory, 0, vk.DeviceSize(len(data)), 0, &pData)
	if isError(ret) {
		vk.FreeMemory(d.handle, memory, nil)
		vk.DestroyBuffer(d.handle, buffer, nil)
		return nil, newError(ret)
	}
	n := vk.Memcopy(pData, data)
	vk.UnmapMemory(d.handle, memory)
	if n != len(data) {
		vk.FreeMemory(d.handle, memory, nil)
		vk.DestroyBuffer(d.handle, buffer, nil)
		return nil, fmt.Errorf("vulkan: short vertex buffer upload, %d != %d", n, len(data))
	}

	return &deviceBuffer{
		device: d.handle,
		handle: buffer,
		memory: memory,
		size:   len(data),
	}, nil
}

func findRequiredMemoryType(props vk.PhysicalDeviceMemoryProperties,
	deviceRequirements, hostRequirements vk.MemoryPropertyFlagBits) (uint32, bool) {

	for i := uint32(0); i < vk.MaxMemoryTypes; i++ {
		if deviceRequirements&(vk.MemoryPropertyFlagBits(1)<<i) != 0 {
			props.MemoryTypes[i].Deref()
			flags := props.MemoryTypes[i].PropertyFlags
			if flags&vk.MemoryPropertyFlags(hostRequirements) == vk.MemoryPropertyFlags(hostRequirements) {
				return i, true
			}
		}
	}
	return 0, false
}
