package goexfat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/goexfat/checkpoint"
	"github.com/spf13/afero"
)

// These errors may occur while processing a file.
var (
	ErrReadFile = errors.New("could not read file completely")
	ErrSeekFile = errors.New("could not seek inside of the file")
	ErrReadDir  = errors.New("could not read the directory")
)

// fileSystem provides all methods needed from the volume for File.
// It mainly exists to be able to mock the Fs in tests.
// Generated mock using mockgen:
//
//	mockgen -source=file.go -destination=file_mock_test.go -package goexfat
type fileSystem interface {
	readFileAt(record FileRecord, offset int64, size int64) ([]byte, error)
	readDir(dir FileRecord) ([]FileRecord, error)
}

// File is an opened file or directory of the volume.
type File struct {
	fs     fileSystem
	path   string
	record FileRecord
	offset int64
}

var _ afero.File = (*File)(nil)

func (f *File) Close() error {
	*f = File{}
	return nil
}

func (f *File) Read(p []byte) (n int, err error) {
	if f.record.IsDir() {
		return 0, checkpoint.Wrap(&os.PathError{Op: "read", Path: f.path, Err: syscall.EISDIR}, ErrReadFile)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(f.record.Length) <= f.offset {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.record, f.offset, int64(len(p)))
	n = copy(p, data)
	f.offset += int64(n)

	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}
	return n, nil
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if f.record.IsDir() {
		return 0, checkpoint.Wrap(&os.PathError{Op: "read", Path: f.path, Err: syscall.EISDIR}, ErrReadFile)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(f.record.Length) <= off {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.record, off, int64(len(p)))
	n = copy(p, data)

	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}
	// ReadAt must not return less without an error.
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek jumps to a specific offset in the file. This affects all Read operation except ReadAt.
// May return a syscall.EINVAL error if the whence value is invalid.
// May return an afero.ErrOutOfRange error if the offset is out of range.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = int64(f.record.Length) + offset
	default:
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	if offset < 0 || offset > int64(f.record.Length) {
		return 0, checkpoint.Wrap(afero.ErrOutOfRange, fmt.Errorf("%w, offset: %v, whence: %v", ErrSeekFile, offset, whence))
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	return 0, readOnly("write", f.path)
}

func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	return 0, readOnly("write", f.path)
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}

func (f *File) Name() string {
	return f.path
}

// Readdir reads the contents of a directory.
// With count > 0 at most count entries are returned and io.EOF once the directory is exhausted,
// otherwise all remaining entries are returned.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if !f.record.IsDir() {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	content, err := f.fs.readDir(f.record)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	start := int(f.offset)
	if start > len(content) {
		start = len(content)
	}
	end := len(content)
	if count > 0 {
		if start == end {
			return nil, io.EOF
		}
		if start+count < end {
			end = start + count
		}
	}
	f.offset = int64(end)

	result := make([]os.FileInfo, 0, end-start)
	for _, record := range content[start:end] {
		result = append(result, record.FileInfo())
	}
	return result, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}
	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	return f.record.FileInfo(), nil
}

// Sync does nothing as nothing is ever written.
func (f *File) Sync() error {
	return nil
}

func (f *File) Truncate(size int64) error {
	return readOnly("truncate", f.path)
}
