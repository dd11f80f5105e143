//go:build !windows

package artifact

import (
	"errors"
	"io/fs"
	"os"
	"syscall"

	"modeswitch/pkg/logging"
)

// keepOwner gives tmp the owner of the file it is about to replace, so the
// service user keeps owning the installed artifact when we run as root.
func keepOwner(path, tmp string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	if int(st.Uid) == os.Geteuid() && int(st.Gid) == os.Getegid() {
		return nil
	}
	if err := os.Chown(tmp, int(st.Uid), int(st.Gid)); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			logging.Warn("ArtifactStore", "Cannot keep owner %d:%d of %s: %v", st.Uid, st.Gid, path, err)
			return nil
		}
		return err
	}
	return nil
}
