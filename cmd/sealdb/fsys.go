package main

import (
	"os"
	"time"

	"github.com/absfs/absfs"
)

// osFS adapts the host filesystem to absfs.FileSystem so the CLI can drive a
// store over real files
type osFS struct {
	cwd string
}

func (fs *osFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (fs *osFS) Open(name string) (absfs.File, error) {
	return os.Open(name)
}

func (fs *osFS) Create(name string) (absfs.File, error) {
	return os.Create(name)
}

func (fs *osFS) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(name, perm)
}

func (fs *osFS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(name, perm)
}

func (fs *osFS) Remove(name string) error {
	return os.Remove(name)
}

func (fs *osFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (fs *osFS) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (fs *osFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (fs *osFS) Truncate(name string, size int64) error {
	return os.Truncate(name, size)
}

func (fs *osFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(name, mode)
}

func (fs *osFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(name, atime, mtime)
}

func (fs *osFS) Chown(name string, uid, gid int) error {
	return os.Chown(name, uid, gid)
}

func (fs *osFS) Chdir(dir string) error {
	if err := os.Chdir(dir); err != nil {
		return err
	}
	fs.cwd = dir
	return nil
}

func (fs *osFS) Getwd() (string, error) {
	return os.Getwd()
}

func (fs *osFS) TempDir() string {
	return os.TempDir()
}

func (fs *osFS) Separator() uint8 {
	return os.PathSeparator
}

func (fs *osFS) ListSeparator() uint8 {
	return os.PathListSeparator
}
