//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/revise/internal/errors"
)

// openNoFollow opens path. Windows has no O_NOFOLLOW; checkFilePath has
// already refused symlinks.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if os.IsNotExist(err) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
