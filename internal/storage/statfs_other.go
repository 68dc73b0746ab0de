//go:build !linux && !darwin

package storage

// filesystemType cannot tell on this platform; the path is assumed local.
func filesystemType(string) (string, error) {
	return "", nil
}
