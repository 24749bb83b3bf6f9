// Package cuda wraps the slice of the CUDA driver API the demo needs:
// device enumeration, a long-lived context, pitched device allocations,
// and 2D host/device copies. The real implementation requires the nvenc
// build tag and libcuda at link time; without the tag every entry point
// reports encoder.ErrNotBuilt.
package cuda

// DevicePtr is a CUDA device pointer.
type DevicePtr uintptr
