package vulkan

import (
	"errors"
	"log"

	vk "github.com/vulkan-go/vulkan"
)

// Config selects what the platform is built with. Extensions normally
// comes from the windowing layer (window.GetRequiredInstanceExtensions)
// and CreateSurface from the window itself.
type Config struct {
	AppName       string
	APIVersion    vk.Version
	AppVersion    vk.Version
	Extensions    []string
	Layers        []string
	CreateSurface func(vk.Instance) (vk.Surface, error)
}

// Platform owns the Vulkan instance, the selected physical device, the
// logical device and the graphics/present queue. One platform per
// process; everything else hangs off it.
type Platform struct {
	instance vk.Instance
	surface  vk.Surface

	gpu           vk.PhysicalDevice
	gpuProperties vk.PhysicalDeviceProperties
	memProperties vk.PhysicalDeviceMemoryProperties

	graphicsFamily uint32

	device *Device
	queue  *Queue
}

// NewPlatform creates the instance with whatever required extensions
// and validation layers are actually present, selects the first
// suitable physical device and builds the logical device. Every
// failure here is startup-fatal for the caller.
func NewPlatform(cfg Config) (p *Platform, err error) {
	defer checkErr(&err)
	p = &Platform{}

	if cfg.APIVersion == 0 {
		cfg.APIVersion = vk.Version(vk.MakeVersion(1, 1, 0))
	}
	if cfg.AppVersion == 0 {
		cfg.AppVersion = vk.Version(vk.MakeVersion(1, 0, 0))
	}

	// Select instance extensions.
	requiredExtensions := safeStrings(cfg.Extensions)
	actualExtensions, err := InstanceExtensions()
	orPanic(err)
	instanceExtensions, missing := checkExisting(actualExtensions, requiredExtensions)
	if missing > 0 {
		log.Println("vulkan warning: missing", missing, "required instance extensions during init")
	}
	log.Printf("vulkan: enabling %d instance extensions", len(instanceExtensions))

	// Select validation layers.
	requiredLayers := safeStrings(cfg.Layers)
	actualLayers, err := ValidationLayers()
	orPanic(err)
	validationLayers, missing := checkExisting(actualLayers, requiredLayers)
	if missing > 0 {
		log.Println("vulkan warning: missing", missing, "requested validation layers during init")
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(cfg.APIVersion),
			ApplicationVersion: uint32(cfg.AppVersion),
			PApplicationName:   safeString(cfg.AppName),
			PEngineName:        "voxel\x00",
		},
		EnabledExtensionCount:   uint32(len(instanceExtensions)),
		PpEnabledExtensionNames: instanceExtensions,
		EnabledLayerCount:       uint32(len(validationLayers)),
		PpEnabledLayerNames:     validationLayers,
	}, nil, &instance)
	orPanic(newError(ret))
	p.instance = instance
	vk.InitInstance(instance)

	if cfg.CreateSurface != nil {
		surface, err := cfg.CreateSurface(instance)
		orPanic(err)
		p.surface = surface
	}

	// Find a suitable GPU.
	var gpuCount uint32
	ret = vk.EnumeratePhysicalDevices(p.instance, &gpuCount, nil)
	orPanic(newError(ret))
	if gpuCount == 0 {
		return nil, errors.New("vulkan error: no GPU devices found")
	}
	gpus := make([]vk.PhysicalDevice, gpuCount)
	ret = vk.EnumeratePhysicalDevices(p.instance, &gpuCount, gpus)
	orPanic(newError(ret))
	p.gpu = gpus[0]
	vk.GetPhysicalDeviceProperties(p.gpu, &p.gpuProperties)
	p.gpuProperties.Deref()
	vk.GetPhysicalDeviceMemoryProperties(p.gpu, &p.memProperties)
	p.memProperties.Deref()

	family, found := p.findGraphicsFamily()
	if !found {
		return nil, errors.New("vulkan error: no graphics+present queue family found")
	}
	p.graphicsFamily = family

	// Create the logical device with a single graphics queue.
	queuePriorities := []float32{1.0}
	deviceExtensions := safeStrings([]string{"VK_KHR_swapchain"})
	var device vk.Device
	ret = vk.CreateDevice(p.gpu, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: p.graphicsFamily,
			QueueCount:       1,
			PQueuePriorities: queuePriorities,
		}},
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
	}, nil, &device)
	orPanic(newError(ret))

	var queue vk.Queue
	vk.GetDeviceQueue(device, p.graphicsFamily, 0, &queue)

	p.device = &Device{
		handle:         device,
		gpu:            p.gpu,
		memProperties:  p.memProperties,
		graphicsFamily: p.graphicsFamily,
	}
	p.queue = newQueue(p.device, queue)
	return p, nil
}

// findGraphicsFamily returns the first queue family with graphics
// support that can also present to the surface, when one exists.
func (p *Platform) findGraphicsFamily() (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(p.gpu, &count, nil)
	properties := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(p.gpu, &count, properties)

	for i := uint32(0); i < count; i++ {
		properties[i].Deref()
		flags := properties[i].QueueFlags & vk.QueueFlags(vk.QueueGraphicsBit)
		if flags != vk.QueueFlags(vk.QueueGraphicsBit) {
			continue
		}
		if p.surface != vk.NullSurface {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(p.gpu, i, p.surface, &supported)
			if supported != vk.True {
				continue
			}
		}
		return i, true
	}
	return 0, false
}

// Device returns the logical device wrapper.
func (p *Platform) Device() *Device { return p.device }

// Queue returns the graphics queue wrapper.
func (p *Platform) Queue() *Queue { return p.queue }

// Surface returns the Vulkan surface handle, when one was created.
func (p *Platform) Surface() vk.Surface { return p.surface }

// Destroy tears the platform down. All queue work must have completed.
func (p *Platform) Destroy() {
	if p.queue != nil {
		p.queue.destroy()
		p.queue = nil
	}
	if p.device != nil {
		vk.DestroyDevice(p.device.handle, nil)
		p.device = nil
	}
	if p.surface != vk.NullSurface {
		vk.DestroySurface(p.instance, p.surface, nil)
		p.surface = vk.NullSurface
	}
	if p.instance != nil {
		vk.DestroyInstance(p.instance, nil)
		p.instance = nil
	}
}

// InstanceExtensions gets a list of instance extensions available on
// the platform.
func InstanceExtensions() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	orPanic(newError(ret))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	orPanic(newError(ret))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

// ValidationLayers gets a list of validation layers available on the
// platform.
func ValidationLayers() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	orPanic(newError(ret))
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	orPanic(newError(ret))
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, err
}

func safeString(s string) string {
	if len(s) == 0 {
		return "\x00"
	}
	if s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	for i := range list {
		list[i] = safeString(list[i])
	}
	return list
}

// checkExisting keeps the required names that are actually present and
// reports how many are missing.
func checkExisting(actual, required []string) (existing []string, missing int) {
	for _, req := range required {
		found := false
		for _, have := range actual {
			if have+"\x00" == req || have == req {
				found = true
				break
			}
		}
		if found {
			existing = append(existing, req)
		} else {
			missing++
		}
	}
	return existing, missing
}
