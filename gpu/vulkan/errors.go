// Package vulkan implements the gpu interfaces on a Vulkan device via
// github.com/vulkan-go/vulkan.
package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

func newError(ret vk.Result) error {
	if ret != vk.Success {
		pc, _, _, ok := runtime.Caller(1)
		if !ok {
			return fmt.Errorf("vulkan error: %s (%d)",
				vk.Error(ret).Error(), ret)
		}
		frame := newStackFrame(pc)
		return fmt.Errorf("vulkan error: %s (%d) on %s",
			vk.Error(ret).Error(), ret, frame.String())
	}
	return nil
}

type stackFrame struct {
	function string
	file     string
	line     int
}

func newStackFrame(pc uintptr) stackFrame {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return stackFrame{function: "unknown"}
	}
	file, line := fn.FileLine(pc)
	return stackFrame{function: fn.Name(), file: file, line: line}
}

func (f stackFrame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.function, f.file, f.line)
}

func orPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		*err = fmt.Errorf("%+v", v)
	}
}
