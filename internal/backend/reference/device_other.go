//go:build !windows

package reference

// newDeviceMemory returns the platform device allocator.
func newDeviceMemory() deviceMemory {
	return newPrivateMemory()
}
