//go:build unix

package rrip

import "golang.org/x/sys/unix"

func mkdev(major, minor uint32) uint64 {
	return unix.Mkdev(major, minor)
}

// SplitDev returns the major and minor numbers of a device number built by a PN entry.
func SplitDev(dev uint64) (major, minor uint32) {
	return unix.Major(dev), unix.Minor(dev)
}
