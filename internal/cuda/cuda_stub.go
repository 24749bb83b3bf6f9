//go:build !nvenc

package cuda

import (
	"unsafe"

	"github.com/zsiec/stillenc/internal/encoder"
)

// Init reports that this binary has no CUDA support.
func Init() error { return encoder.ErrNotBuilt }

// DeviceCount reports that this binary has no CUDA support.
func DeviceCount() (int, error) { return 0, encoder.ErrNotBuilt }

// Device is a CUDA device handle.
type Device struct{}

// GetDevice reports that this binary has no CUDA support.
func GetDevice(ordinal int) (Device, error) { return Device{}, encoder.ErrNotBuilt }

// Name reports that this binary has no CUDA support.
func (d Device) Name() (string, error) { return "", encoder.ErrNotBuilt }

// Context is a CUDA context bound to one device.
type Context struct{}

// NewContext reports that this binary has no CUDA support.
func NewContext(d Device) (*Context, error) { return nil, encoder.ErrNotBuilt }

// Handle returns nil in builds without CUDA support.
func (c *Context) Handle() unsafe.Pointer { return nil }

// Destroy reports that this binary has no CUDA support.
func (c *Context) Destroy() error { return encoder.ErrNotBuilt }

// AllocPitch reports that this binary has no CUDA support.
func (c *Context) AllocPitch(widthBytes, rows int) (DevicePtr, int, error) {
	return 0, 0, encoder.ErrNotBuilt
}

// AllocLinear reports that this binary has no CUDA support.
func (c *Context) AllocLinear(size int) (DevicePtr, error) { return 0, encoder.ErrNotBuilt }

// Free reports that this binary has no CUDA support.
func (c *Context) Free(p DevicePtr) error { return encoder.ErrNotBuilt }

// CopyToDevice2D reports that this binary has no CUDA support.
func (c *Context) CopyToDevice2D(dst DevicePtr, dstPitch int, src []byte, srcRowBytes, rows int) error {
	return encoder.ErrNotBuilt
}

// CopyFromDevice reports that this binary has no CUDA support.
func (c *Context) CopyFromDevice(dst []byte, src DevicePtr) error { return encoder.ErrNotBuilt }
