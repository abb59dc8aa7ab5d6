package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/serxka/voxel/gpu"
	"github.com/serxka/voxel/gpu/vulkan"
	"github.com/serxka/voxel/render"
)

func init() {
	// GLFW event handling must run on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "voxel.toml", "path to the config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalln(err)
	}

	if err := glfw.Init(); err != nil {
		log.Fatalln("glfw init:", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		log.Fatalln("glfw window:", err)
	}

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		log.Fatalln("vulkan init:", err)
	}

	var layers []string
	if cfg.Validation {
		layers = []string{"VK_LAYER_KHRONOS_validation"}
	}
	platform, err := vulkan.NewPlatform(vulkan.Config{
		AppName:    cfg.Title,
		Extensions: window.GetRequiredInstanceExtensions(),
		Layers:     layers,
		CreateSurface: func(instance vk.Instance) (vk.Surface, error) {
			surface, err := window.CreateWindowSurface(instance, nil)
			if err != nil {
				return vk.NullSurface, err
			}
			return vk.SurfaceFromPointer(surface), nil
		},
	})
	if err != nil {
		log.Fatalln("vulkan platform:", err)
	}
	defer platform.Destroy()

	swapchain, err := vulkan.NewSwapchain(platform, cfg.SwapchainDepth)
	if err != nil {
		log.Fatalln("swapchain:", err)
	}
	defer swapchain.Destroy()

	shaders, err := loadShaders(cfg.ShaderDir)
	if err != nil {
		log.Fatalln(err)
	}

	device := platform.Device()
	renderer, err := render.NewRenderer(device, device, platform.Queue(),
		swapchain.Format(), shaders)
	if err != nil {
		log.Fatalln("renderer:", err)
	}

	for !window.ShouldClose() {
		glfw.PollEvents()
		if err := renderer.Frame(swapchain); err != nil {
			if errors.Is(err, gpu.ErrOutOfDate) {
				log.Println("frame dropped:", err)
				continue
			}
			log.Fatalln(err)
		}
	}

	if err := platform.Queue().WaitIdle(); err != nil {
		log.Fatalln("wait idle:", err)
	}
}

func loadShaders(dir string) (render.ShaderSource, error) {
	var shaders render.ShaderSource
	vert, err := os.ReadFile(filepath.Join(dir, "triangle.vert.spv"))
	if err != nil {
		return shaders, err
	}
	frag, err := os.ReadFile(filepath.Join(dir, "triangle.frag.spv"))
	if err != nil {
		return shaders, err
	}
	shaders.Vertex = vert
	shaders.Fragment = frag
	return shaders, nil
}
