//go:build !unix

package rrip

// mkdev uses the Linux encoding where the host has none of its own.
func mkdev(major, minor uint32) uint64 {
	dev := (uint64(major) & 0x00000fff) << 8
	dev |= (uint64(major) & 0xfffff000) << 32
	dev |= (uint64(minor) & 0x000000ff) << 0
	dev |= (uint64(minor) & 0xffffff00) << 12
	return dev
}

// SplitDev returns the major and minor numbers of a device number built by a PN entry.
func SplitDev(dev uint64) (major, minor uint32) {
	major = uint32((dev & 0x00000000000fff00) >> 8)
	major |= uint32((dev & 0xfffff00000000000) >> 32)
	minor = uint32((dev & 0x00000000000000ff) >> 0)
	minor |= uint32((dev & 0x00000ffffff00000) >> 12)
	return major, minor
}
