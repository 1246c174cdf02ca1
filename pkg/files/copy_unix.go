//go:build unix

package files

import (
	"os"
	"syscall"
)

func copyOwner(info os.FileInfo, dst string) error {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	return os.Lchown(dst, int(st.Uid), int(st.Gid))
}
