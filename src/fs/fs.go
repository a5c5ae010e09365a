// Package fs provides the path and artifact model used throughout the
// compile-action core, plus a handful of filesystem helpers needed to
// materialise placeholder outputs.
package fs

import (
	"io"
	"io/ioutil"
	"os"
	"path"
)

// DirPermissions are the default permission bits we apply to directories.
const DirPermissions = os.ModeDir | 0775

// EnsureDir ensures that the directory of the given file has been created.
func EnsureDir(filename string) error {
	return os.MkdirAll(path.Dir(filename), DirPermissions)
}

// PathExists returns true if the given path exists, as a file or a directory.
func PathExists(filename string) bool {
	_, err := os.Lstat(filename)
	return err == nil
}

// CreateEmptyFile creates an empty file at the given path, creating any
// missing parent directories. It does not truncate an existing file.
func CreateEmptyFile(filename string) error {
	if PathExists(filename) {
		return nil
	}
	if err := EnsureDir(filename); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	return f.Close()
}

// WriteFile writes data from a reader to the file named 'to', with an attempt
// to perform a copy & rename to avoid chaos if anything goes wrong partway.
func WriteFile(fromFile io.Reader, to string, mode os.FileMode) error {
	if err := os.RemoveAll(to); err != nil {
		return err
	}
	dir, file := path.Split(to)
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return err
	}
	tempFile, err := ioutil.TempFile(dir, file)
	if err != nil {
		return err
	}
	if _, err := io.Copy(tempFile, fromFile); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0664
	}
	if err := os.Chmod(tempFile.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tempFile.Name(), to)
}
