//go:build linux || darwin

package offline

import "golang.org/x/sys/unix"

func filesystemQuota(dir string) (int64, bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, false
	}
	total := int64(st.Blocks) * int64(st.Bsize)
	if total <= 0 {
		return 0, false
	}
	return total, true
}
