//go:build !unix

package system

import (
	"errors"
	"io/fs"
)

var errOwnershipUnsupported = errors.New("file ownership is not supported on this platform")

func (osOwnership) ids(fs.FileInfo) (uint32, uint32, error) {
	return 0, 0, errOwnershipUnsupported
}
