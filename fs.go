package goexfat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/aligator/goexfat/blockdev"
	"github.com/aligator/goexfat/checkpoint"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"
)

// These errors may occur while using the volume as afero.Fs.
var (
	ErrNotFound     = errors.New("file not found")
	ErrNotDirectory = errors.New("not a directory")
	ErrReadOnly     = errors.New("the exFAT volume is read only")
)

// Fs provides read only access to an exFAT volume through the afero.Fs interface.
// Names are matched case-insensitively, like exFAT does.
type Fs struct {
	vol *Volume
}

var _ afero.Fs = (*Fs)(nil)

// New opens the exFAT volume on dev as afero.Fs.
func New(dev blockdev.Device) (*Fs, error) {
	vol, err := Open(dev)
	if err != nil {
		return nil, err
	}
	return NewFs(vol), nil
}

// NewFs wraps an already opened volume.
func NewFs(vol *Volume) *Fs {
	return &Fs{vol: vol}
}

// Volume returns the underlying volume.
func (fs *Fs) Volume() *Volume {
	return fs.vol
}

// Lookup resolves a slash separated path, starting at the root directory.
// "", "." and "/" resolve to the root directory itself.
func (v *Volume) Lookup(name string) (FileRecord, error) {
	current := v.Root()
	current.Name = "/"

	fold := cases.Fold()
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	if clean == "" {
		return current, nil
	}

	for _, part := range strings.Split(clean, "/") {
		if !current.IsDir() {
			return FileRecord{}, checkpoint.Wrap(&os.PathError{Op: "lookup", Path: name, Err: syscall.ENOTDIR}, ErrNotDirectory)
		}

		records, err := v.ListDirectoryOf(current)
		if err != nil {
			return FileRecord{}, err
		}

		want := fold.String(part)
		found := false
		for _, record := range records {
			if fold.String(record.Name) == want {
				current = record
				found = true
				break
			}
		}
		if !found {
			return FileRecord{}, checkpoint.Wrap(&os.PathError{Op: "lookup", Path: name, Err: os.ErrNotExist}, ErrNotFound)
		}
	}

	return current, nil
}

func (fs *Fs) readDir(dir FileRecord) ([]FileRecord, error) {
	return fs.vol.ListDirectoryOf(dir)
}

// readFileAt reads up to size bytes of the file described by record, starting at offset.
// It follows the cluster chain unless the record is contiguous. Bytes beyond the valid
// data length read as zero.
func (fs *Fs) readFileAt(record FileRecord, offset int64, size int64) ([]byte, error) {
	length := int64(record.Length)
	if offset >= length {
		return nil, io.EOF
	}
	if offset+size > length {
		size = length - offset
	}

	geometry := fs.vol.Geometry()
	clusterSize := geometry.ClusterSize()

	cluster := record.FirstCluster
	next := func() error {
		if record.Contiguous {
			cluster++
			return nil
		}
		var err error
		cluster, err = fs.vol.NextCluster(cluster)
		return err
	}

	for i := int64(0); i < offset/clusterSize; i++ {
		if err := next(); err != nil {
			return nil, checkpoint.From(err)
		}
	}

	var block blockdev.Block
	result := make([]byte, 0, size)
	pos := offset
	for int64(len(result)) < size {
		sector := geometry.ClusterToSector(cluster) + uint32((pos%clusterSize)/blockdev.BlockSize)
		if err := fs.vol.readSector(sector, &block); err != nil {
			return result, err
		}

		start := pos % blockdev.BlockSize
		n := blockdev.BlockSize - start
		if remaining := size - int64(len(result)); n > remaining {
			n = remaining
		}

		chunk := block[start : start+n]
		for j := range chunk {
			if uint64(pos)+uint64(j) >= record.ValidLength {
				chunk[j] = 0
			}
		}
		result = append(result, chunk...)
		pos += n

		if pos%clusterSize == 0 && int64(len(result)) < size {
			if err := next(); err != nil {
				return result, checkpoint.From(err)
			}
		}
	}

	return result, nil
}

func readOnly(op, name string) error {
	return checkpoint.Wrap(&os.PathError{Op: op, Path: name, Err: syscall.EPERM}, ErrReadOnly)
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return nil, readOnly("create", name)
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	return readOnly("mkdir", name)
}

func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	return readOnly("mkdir", path)
}

func (fs *Fs) Open(name string) (afero.File, error) {
	record, err := fs.vol.Lookup(name)
	if err != nil {
		return nil, err
	}

	return &File{
		fs:     fs,
		path:   name,
		record: record,
	}, nil
}

// OpenFile only supports read only access.
func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, readOnly("open", name)
	}
	return fs.Open(name)
}

func (fs *Fs) Remove(name string) error {
	return readOnly("remove", name)
}

func (fs *Fs) RemoveAll(path string) error {
	return readOnly("remove", path)
}

func (fs *Fs) Rename(oldname, newname string) error {
	return readOnly("rename", fmt.Sprintf("%s -> %s", oldname, newname))
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	record, err := fs.vol.Lookup(name)
	if err != nil {
		return nil, err
	}
	return record.FileInfo(), nil
}

func (fs *Fs) Name() string {
	return "exFAT"
}

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	return readOnly("chmod", name)
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return readOnly("chown", name)
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return readOnly("chtimes", name)
}
