//go:build unix

package system

import (
	"fmt"
	"io/fs"
	"syscall"
)

func (osOwnership) ids(info fs.FileInfo) (uint32, uint32, error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, fmt.Errorf("no ownership information for %s", info.Name())
	}
	return st.Uid, st.Gid, nil
}
