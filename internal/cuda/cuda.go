//go:build nvenc

package cuda

/*
#cgo LDFLAGS: -lcuda
#include <cuda.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

func check(op string, res C.CUresult) error {
	if res == C.CUDA_SUCCESS {
		return nil
	}
	var cstr *C.char
	C.cuGetErrorString(res, &cstr)
	if cstr == nil {
		return fmt.Errorf("%s: CUDA error %d", op, int(res))
	}
	return fmt.Errorf("%s: %s", op, C.GoString(cstr))
}

// Init initializes the CUDA driver. Call once before any other entry point.
func Init() error {
	return check("cuInit", C.cuInit(0))
}

// DeviceCount returns the number of CUDA devices present.
func DeviceCount() (int, error) {
	var n C.int
	if err := check("cuDeviceGetCount", C.cuDeviceGetCount(&n)); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Device is a CUDA device handle.
type Device struct {
	dev     C.CUdevice
	ordinal int
}

// GetDevice resolves a GPU ordinal to a device handle, range-checking the
// ordinal against the installed device count.
func GetDevice(ordinal int) (Device, error) {
	n, err := DeviceCount()
	if err != nil {
		return Device{}, err
	}
	if ordinal < 0 || ordinal >= n {
		return Device{}, fmt.Errorf("GPU ordinal %d out of range [0, %d]", ordinal, n-1)
	}
	var dev C.CUdevice
	if err := check("cuDeviceGet", C.cuDeviceGet(&dev, C.int(ordinal))); err != nil {
		return Device{}, err
	}
	return Device{dev: dev, ordinal: ordinal}, nil
}

// Name returns the device's marketing name.
func (d Device) Name() (string, error) {
	var buf [80]C.char
	if err := check("cuDeviceGetName", C.cuDeviceGetName(&buf[0], C.int(len(buf)), d.dev)); err != nil {
		return "", err
	}
	return C.GoString(&buf[0]), nil
}

// Context is a CUDA context bound to one device. Its lifetime is the whole
// program: create at start, Destroy at exit.
type Context struct {
	ctx C.CUcontext
}

// NewContext creates a context on d. The context is not left current;
// operations push and pop it so callers may run on any OS thread.
func NewContext(d Device) (*Context, error) {
	var ctx C.CUcontext
	if err := check("cuCtxCreate", C.cuCtxCreate(&ctx, 0, d.dev)); err != nil {
		return nil, err
	}
	var popped C.CUcontext
	if err := check("cuCtxPopCurrent", C.cuCtxPopCurrent(&popped)); err != nil {
		C.cuCtxDestroy(ctx)
		return nil, err
	}
	return &Context{ctx: ctx}, nil
}

// Handle exposes the raw CUcontext for the encoder session open call.
func (c *Context) Handle() unsafe.Pointer {
	return unsafe.Pointer(c.ctx)
}

// Destroy releases the context. No allocations from it may be used after.
func (c *Context) Destroy() error {
	return check("cuCtxDestroy", C.cuCtxDestroy(c.ctx))
}

func (c *Context) push() error {
	return check("cuCtxPushCurrent", C.cuCtxPushCurrent(c.ctx))
}

func (c *Context) pop() {
	var cur C.CUcontext
	C.cuCtxPopCurrent(&cur)
}

// AllocPitch allocates pitched device memory of widthBytes x rows and
// returns the pointer with the driver-chosen pitch.
func (c *Context) AllocPitch(widthBytes, rows int) (DevicePtr, int, error) {
	if err := c.push(); err != nil {
		return 0, 0, err
	}
	defer c.pop()

	var dptr C.CUdeviceptr
	var pitch C.size_t
	err := check("cuMemAllocPitch", C.cuMemAllocPitch(&dptr, &pitch, C.size_t(widthBytes), C.size_t(rows), 16))
	if err != nil {
		return 0, 0, err
	}
	return DevicePtr(dptr), int(pitch), nil
}

// Free releases a device allocation.
func (c *Context) Free(p DevicePtr) error {
	if err := c.push(); err != nil {
		return err
	}
	defer c.pop()
	return check("cuMemFree", C.cuMemFree(C.CUdeviceptr(p)))
}

// CopyToDevice2D copies a tightly packed host plane into pitched device
// memory: rows of srcRowBytes each, dst rows dstPitch apart.
func (c *Context) CopyToDevice2D(dst DevicePtr, dstPitch int, src []byte, srcRowBytes, rows int) error {
	if len(src) < srcRowBytes*rows {
		return fmt.Errorf("host plane is %d bytes, need %d", len(src), srcRowBytes*rows)
	}
	if err := c.push(); err != nil {
		return err
	}
	defer c.pop()

	var m C.CUDA_MEMCPY2D
	m.srcMemoryType = C.CU_MEMORYTYPE_HOST
	m.srcHost = unsafe.Pointer(&src[0])
	m.srcPitch = C.size_t(srcRowBytes)
	m.dstMemoryType = C.CU_MEMORYTYPE_DEVICE
	m.dstDevice = C.CUdeviceptr(dst)
	m.dstPitch = C.size_t(dstPitch)
	m.WidthInBytes = C.size_t(srcRowBytes)
	m.Height = C.size_t(rows)
	return check("cuMemcpy2D", C.cuMemcpy2D(&m))
}

// CopyFromDevice copies len(dst) bytes of linear device memory to host.
func (c *Context) CopyFromDevice(dst []byte, src DevicePtr) error {
	if len(dst) == 0 {
		return nil
	}
	if err := c.push(); err != nil {
		return err
	}
	defer c.pop()
	return check("cuMemcpyDtoH",
		C.cuMemcpyDtoH(unsafe.Pointer(&dst[0]), C.CUdeviceptr(src), C.size_t(len(dst))))
}

// AllocLinear allocates size bytes of linear device memory.
func (c *Context) AllocLinear(size int) (DevicePtr, error) {
	if err := c.push(); err != nil {
		return 0, err
	}
	defer c.pop()

	var dptr C.CUdeviceptr
	if err := check("cuMemAlloc", C.cuMemAlloc(&dptr, C.size_t(size))); err != nil {
		return 0, err
	}
	return DevicePtr(dptr), nil
}
