//go:build !windows
// +build !windows

package fsentry

import (
	"io/fs"
	"syscall"
)

// StatFromFileInfo extracts the subset of POSIX metadata fsentry needs from
// an fs.FileInfo, mirroring objects.FileInfoFromStat's syscall.Stat_t field
// extraction: os.Stat/os.Lstat expose a *syscall.Stat_t through Sys(), whose
// raw mode_t, uid and gid are kept. For any other FileInfo only the Go
// fs.FileMode bits and ModTime are available.
func StatFromFileInfo(info fs.FileInfo) Stat {
	st := Stat{
		Mode:    uint32(info.Mode()),
		ModTime: info.ModTime(),
	}
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		st.UID = sys.Uid
		st.GID = sys.Gid
		st.Mode = uint32(sys.Mode)
	}
	return st
}

// ReadOnlyMode clears all write bits from mode, per spec.md §4.7's
// getattr: "mode is masked to read-only (clear all write bits)".
func ReadOnlyMode(mode uint32) uint32 {
	const writeBits = 0o222
	return mode &^ writeBits
}
