package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrRemoteFilesystem is returned when the database would live on a network
// mount, where SQLite's file locking is unreliable.
var ErrRemoteFilesystem = errors.New("run history needs a local filesystem")

var remoteFilesystems = []string{"afpfs", "cifs", "nfs", "nfs4", "smb2", "smbfs", "webdav"}

func requireLocalDisk(dbPath string) error {
	return checkLocalDisk(dbPath, filesystemType)
}

// checkLocalDisk inspects the closest existing ancestor of dbPath, since the
// database file and its directories may not exist yet.
func checkLocalDisk(dbPath string, fsType func(dir string) (string, error)) error {
	dir, err := existingAncestor(dbPath)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", dbPath, err)
	}
	kind, err := fsType(dir)
	if err != nil {
		return fmt.Errorf("inspect filesystem of %s: %w", dir, err)
	}
	if isRemote(kind) {
		return fmt.Errorf("%w: %s is on %s, point state.path at local disk", ErrRemoteFilesystem, dbPath, kind)
	}
	return nil
}

func existingAncestor(p string) (string, error) {
	dir, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(dir)
		switch {
		case err == nil:
			return dir, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing ancestor")
		}
		dir = parent
	}
}

func isRemote(kind string) bool {
	return slices.Contains(remoteFilesystems, strings.ToLower(strings.TrimSpace(kind)))
}
