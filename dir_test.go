package goexfat

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aligator/goexfat/internal/exfattest"
)

// fixtureModified is the timestamp exfattest.FileSet writes.
var fixtureModified = time.Date(2024, 3, 15, 13, 45, 30, 0, time.UTC)

func openTestVolume(t *testing.T, img *exfattest.Image) *Volume {
	t.Helper()
	v, err := Open(img)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return v
}

func fileRecord(name string, attributes uint16, firstCluster uint32, length uint64, contiguous bool) FileRecord {
	r := FileRecord{
		Name:         name,
		Kind:         KindFile,
		Attributes:   attributes,
		FirstCluster: firstCluster,
		ValidLength:  length,
		Length:       length,
		Contiguous:   contiguous,
		Created:      fixtureModified,
		Modified:     fixtureModified,
	}
	if attributes&AttrDirectory != 0 {
		r.Kind = KindDirectory
	}
	return r
}

func TestVolume_ReadDir(t *testing.T) {
	longName := "A very long file name which needs three fragments.wav"
	surrogates := strings.Repeat("a", 14) + "\U0001F3B5.wav"

	tests := []struct {
		name    string
		entries [][][32]byte
		dstLen  int
		want    []FileRecord
	}{
		{
			name: "metadata entries only",
			entries: [][][32]byte{
				{exfattest.Marker(exfattest.TypeBitmap), exfattest.Marker(exfattest.TypeUpcaseTable), exfattest.VolumeLabel("MUSIC")},
			},
			dstLen: 10,
			want:   []FileRecord{},
		},
		{
			name: "files and a directory",
			entries: [][][32]byte{
				{exfattest.Marker(exfattest.TypeBitmap), exfattest.Marker(exfattest.TypeUpcaseTable), exfattest.VolumeLabel("MUSIC")},
				exfattest.FileSet("a.wav", exfattest.AttrArchive, 10, 1000, true),
				exfattest.FileSet("Albums", exfattest.AttrDirectory, 12, 512, true),
				exfattest.FileSet("b.wav", exfattest.AttrArchive|exfattest.AttrReadOnly, 14, 20, false),
			},
			dstLen: 10,
			want: []FileRecord{
				fileRecord("a.wav", AttrArchive, 10, 1000, true),
				fileRecord("Albums", AttrDirectory, 12, 512, true),
				fileRecord("b.wav", AttrArchive|AttrReadOnly, 14, 20, false),
			},
		},
		{
			name: "deleted entries are skipped",
			entries: [][][32]byte{
				{exfattest.Marker(exfattest.TypeDeletedFile), exfattest.Marker(exfattest.TypeDeletedFile)},
				exfattest.FileSet("a.wav", exfattest.AttrArchive, 10, 1000, true),
			},
			dstLen: 10,
			want: []FileRecord{
				fileRecord("a.wav", AttrArchive, 10, 1000, true),
			},
		},
		{
			name: "truncated to dst",
			entries: [][][32]byte{
				exfattest.FileSet("a.wav", exfattest.AttrArchive, 10, 1, true),
				exfattest.FileSet("b.wav", exfattest.AttrArchive, 11, 1, true),
				exfattest.FileSet("c.wav", exfattest.AttrArchive, 12, 1, true),
			},
			dstLen: 2,
			want: []FileRecord{
				fileRecord("a.wav", AttrArchive, 10, 1, true),
				fileRecord("b.wav", AttrArchive, 11, 1, true),
			},
		},
		{
			name: "long name",
			entries: [][][32]byte{
				exfattest.FileSet(longName, exfattest.AttrArchive, 10, 1, true),
			},
			dstLen: 10,
			want: []FileRecord{
				fileRecord(longName, AttrArchive, 10, 1, true),
			},
		},
		{
			name: "surrogate pair split over two fragments",
			entries: [][][32]byte{
				exfattest.FileSet(surrogates, exfattest.AttrArchive, 10, 1, true),
			},
			dstLen: 10,
			want: []FileRecord{
				fileRecord(surrogates, AttrArchive, 10, 1, true),
			},
		},
		{
			name: "longest possible name",
			entries: [][][32]byte{
				exfattest.FileSet(strings.Repeat("x", 255), exfattest.AttrArchive, 10, 1, true),
			},
			dstLen: 10,
			want: []FileRecord{
				fileRecord(strings.Repeat("x", 255), AttrArchive, 10, 1, true),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := exfattest.New(exfattest.Options{})
			for _, set := range tt.entries {
				img.AddEntries(exfattest.RootCluster, set...)
			}
			v := openTestVolume(t, img)

			dst := make([]FileRecord, tt.dstLen)
			n, err := v.ReadDir(exfattest.RootCluster, dst)
			if err != nil {
				t.Fatalf("ReadDir() error = %v", err)
			}
			if got := dst[:n]; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadDir() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestVolume_ReadDir_emptyDst(t *testing.T) {
	img := exfattest.New(exfattest.Options{})
	img.AddEntries(exfattest.RootCluster, exfattest.FileSet("a.wav", exfattest.AttrArchive, 10, 1, true)...)
	v := openTestVolume(t, img)

	before := len(img.Reads())
	n, err := v.ReadDir(exfattest.RootCluster, nil)
	if n != 0 || err != nil {
		t.Errorf("ReadDir() = %d, %v, want 0, nil", n, err)
	}
	if len(img.Reads()) != before {
		t.Errorf("ReadDir() read from the device for an empty dst")
	}
}

func TestVolume_ReadDir_sectorBoundary(t *testing.T) {
	longName := "A name long enough for three fragments.wav"

	var want []FileRecord
	// Shift the entry sets through every position of the first sector.
	for padding := 0; padding < entriesPerBlock; padding++ {
		img := exfattest.New(exfattest.Options{})
		for i := 0; i < padding; i++ {
			img.AddEntries(exfattest.RootCluster, exfattest.Marker(exfattest.TypeDeletedFile))
		}
		img.AddEntries(exfattest.RootCluster, exfattest.FileSet(longName, exfattest.AttrArchive, 10, 4096, true)...)
		img.AddEntries(exfattest.RootCluster, exfattest.FileSet("next.wav", exfattest.AttrArchive, 20, 44, false)...)
		v := openTestVolume(t, img)

		got, err := v.ListDirectory(exfattest.RootCluster)
		if err != nil {
			t.Fatalf("padding %d: ListDirectory() error = %v", padding, err)
		}

		if want == nil {
			want = []FileRecord{
				fileRecord(longName, AttrArchive, 10, 4096, true),
				fileRecord("next.wav", AttrArchive, 20, 44, false),
			}
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("padding %d: ListDirectory() = %+v, want %+v", padding, got, want)
		}
	}
}

func TestVolume_ListDirectory_limit(t *testing.T) {
	img := exfattest.New(exfattest.Options{})
	for i := 0; i < DirLengthLimit+5; i++ {
		img.AddEntries(exfattest.RootCluster, exfattest.FileSet("f.wav", exfattest.AttrArchive, 10, 1, true)...)
	}
	v := openTestVolume(t, img)

	got, err := v.ListDirectory(exfattest.RootCluster)
	if err != nil {
		t.Fatalf("ListDirectory() error = %v", err)
	}
	if len(got) != DirLengthLimit {
		t.Errorf("ListDirectory() returned %d records, want %d", len(got), DirLengthLimit)
	}
}

// fillRoot adds the given number of files to the root directory, named f0.wav and so on.
func fillRoot(img *exfattest.Image, files int) []FileRecord {
	var records []FileRecord
	for i := 0; i < files; i++ {
		name := "f" + string(rune('0'+i)) + ".wav"
		img.AddEntries(exfattest.RootCluster, exfattest.FileSet(name, exfattest.AttrArchive, 20+uint32(i), 1, true)...)
		records = append(records, fileRecord(name, AttrArchive, 20+uint32(i), 1, true))
	}
	return records
}

func TestVolume_ReadDir_clusterChain(t *testing.T) {
	split := exfattest.FileSet("split.wav", exfattest.AttrArchive, 30, 1, true)

	tests := []struct {
		name    string
		setup   func(img *exfattest.Image) []FileRecord
		wantErr error
	}{
		{
			name: "full cluster without end marker",
			setup: func(img *exfattest.Image) []FileRecord {
				img.AddEntries(exfattest.RootCluster, exfattest.VolumeLabel("MUSIC"))
				want := fillRoot(img, 5)
				img.AddEntries(exfattest.RootCluster+1, exfattest.FileSet("stray.wav", exfattest.AttrArchive, 40, 1, true)...)
				return want
			},
		},
		{
			name: "chain to a cluster which is not adjacent",
			setup: func(img *exfattest.Image) []FileRecord {
				img.AddEntries(exfattest.RootCluster, exfattest.VolumeLabel("MUSIC"))
				want := fillRoot(img, 5)
				img.AddEntries(exfattest.RootCluster+1, exfattest.FileSet("stray.wav", exfattest.AttrArchive, 40, 1, true)...)
				img.SetChain(exfattest.RootCluster, 9)
				img.AddEntries(9, exfattest.FileSet("sixth.wav", exfattest.AttrArchive, 41, 1, true)...)
				return append(want, fileRecord("sixth.wav", AttrArchive, 41, 1, true))
			},
		},
		{
			name: "entry set continued in a cluster which is not adjacent",
			setup: func(img *exfattest.Image) []FileRecord {
				for i := 0; i < entriesPerBlock-2; i++ {
					img.AddEntries(exfattest.RootCluster, exfattest.Marker(exfattest.TypeDeletedFile))
				}
				img.AddEntries(exfattest.RootCluster, split[:2]...)
				img.SetChain(exfattest.RootCluster, 9)
				img.AddEntries(9, split[2:]...)
				img.AddEntries(9, exfattest.FileSet("after.wav", exfattest.AttrArchive, 31, 1, true)...)
				return []FileRecord{
					fileRecord("split.wav", AttrArchive, 30, 1, true),
					fileRecord("after.wav", AttrArchive, 31, 1, true),
				}
			},
		},
		{
			name: "entry set continued after the last cluster",
			setup: func(img *exfattest.Image) []FileRecord {
				for i := 0; i < entriesPerBlock-1; i++ {
					img.AddEntries(exfattest.RootCluster, exfattest.Marker(exfattest.TypeDeletedFile))
				}
				img.AddEntries(exfattest.RootCluster, split...)
				img.SetChain(exfattest.RootCluster)
				return nil
			},
			wantErr: ErrBadCluster,
		},
		{
			name: "free cluster in the chain",
			setup: func(img *exfattest.Image) []FileRecord {
				fillRoot(img, 6)
				img.SetFAT(exfattest.RootCluster, 0)
				return nil
			},
			wantErr: ErrBadCluster,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := exfattest.New(exfattest.Options{})
			want := tt.setup(img)
			v := openTestVolume(t, img)

			got, err := v.ListDirectory(exfattest.RootCluster)
			if (err != nil) != (tt.wantErr != nil) || !errors.Is(err, tt.wantErr) {
				t.Fatalf("ListDirectory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if len(want) == 0 {
				want = []FileRecord{}
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("ListDirectory() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestVolume_ListDirectoryOf_contiguous(t *testing.T) {
	const dirCluster = 12

	tests := []struct {
		name    string
		length  uint64
		want    int
		wantErr error
	}{
		{name: "two clusters", length: 2 * 512, want: 6},
		{name: "length ends inside of an entry set", length: 512, wantErr: ErrBadCluster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := exfattest.New(exfattest.Options{})
			for i := 0; i < 6; i++ {
				img.AddEntries(dirCluster, exfattest.FileSet("song.wav", exfattest.AttrArchive, 30+uint32(i), 1, true)...)
			}
			// A contiguous directory has no FAT chain.
			img.SetFAT(dirCluster, 0)
			img.SetFAT(dirCluster+1, 0)
			v := openTestVolume(t, img)

			dir := fileRecord("Album", AttrDirectory, dirCluster, tt.length, true)
			got, err := v.ListDirectoryOf(dir)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ListDirectoryOf() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("ListDirectoryOf() returned %d records, want %d", len(got), tt.want)
			}

			if _, err := v.ListDirectory(dirCluster); !errors.Is(err, ErrBadCluster) {
				t.Errorf("ListDirectory() error = %v, wantErr %v", err, ErrBadCluster)
			}
		})
	}
}

func TestVolume_ReadDir_decodingErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries [][32]byte
	}{
		{
			name: "high surrogate without low surrogate",
			entries: [][32]byte{
				exfattest.FileEntry(2, exfattest.AttrArchive, 0),
				exfattest.StreamExtension(true, 2, 10, 1, 1),
				exfattest.FileName([]uint16{0xD800, 'a'}),
			},
		},
		{
			name: "unpaired surrogate at the end",
			entries: [][32]byte{
				exfattest.FileEntry(2, exfattest.AttrArchive, 0),
				exfattest.StreamExtension(true, 2, 10, 1, 1),
				exfattest.FileName([]uint16{'a', 0xDC00}),
			},
		},
		{
			name:    "name longer than 255 bytes",
			entries: exfattest.FileSet(strings.Repeat("€", 100), exfattest.AttrArchive, 10, 1, true),
		},
		{
			name:    "more than 255 code units",
			entries: exfattest.FileSet(strings.Repeat("a", 256), exfattest.AttrArchive, 10, 1, true),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := exfattest.New(exfattest.Options{})
			img.AddEntries(exfattest.RootCluster, exfattest.FileSet("fine.wav", exfattest.AttrArchive, 10, 1, true)...)
			img.AddEntries(exfattest.RootCluster, tt.entries...)
			v := openTestVolume(t, img)

			dst := make([]FileRecord, 10)
			n, err := v.ReadDir(exfattest.RootCluster, dst)
			if !errors.Is(err, ErrDecodingName) {
				t.Errorf("ReadDir() error = %v, want %v", err, ErrDecodingName)
			}
			if n != 0 {
				t.Errorf("ReadDir() = %d, want 0 records on error", n)
			}
		})
	}
}

func TestVolume_ReadDir_readFail(t *testing.T) {
	tests := []struct {
		name string
		// failSector is relative to the first sector of the root directory.
		failSector uint32
	}{
		{name: "first sector", failSector: 0},
		{name: "sector of a continued entry set", failSector: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := exfattest.New(exfattest.Options{})
			for i := 0; i < entriesPerBlock-1; i++ {
				img.AddEntries(exfattest.RootCluster, exfattest.Marker(exfattest.TypeDeletedFile))
			}
			img.AddEntries(exfattest.RootCluster, exfattest.FileSet("a.wav", exfattest.AttrArchive, 10, 1, true)...)
			v := openTestVolume(t, img)

			img.Fail[img.ClusterSector(exfattest.RootCluster)+tt.failSector] = true
			_, err := v.ListDirectory(exfattest.RootCluster)
			if !errors.Is(err, ErrReadFail) {
				t.Errorf("ListDirectory() error = %v, want %v", err, ErrReadFail)
			}
		})
	}
}

func TestVolume_Label(t *testing.T) {
	tests := []struct {
		name    string
		entries [][32]byte
		want    string
	}{
		{
			name: "with label",
			entries: [][32]byte{
				exfattest.Marker(exfattest.TypeBitmap),
				exfattest.VolumeLabel("MUSIC"),
			},
			want: "MUSIC",
		},
		{
			name: "without label",
			entries: [][32]byte{
				exfattest.Marker(exfattest.TypeBitmap),
				exfattest.Marker(exfattest.TypeUpcaseTable),
			},
			want: "",
		},
		{
			name:    "empty root directory",
			entries: nil,
			want:    "",
		},
		{
			name: "label in the second cluster",
			entries: append(
				[][32]byte{
					exfattest.Marker(exfattest.TypeBitmap), exfattest.Marker(exfattest.TypeUpcaseTable),
					exfattest.Marker(exfattest.TypeDeletedFile), exfattest.Marker(exfattest.TypeDeletedFile),
					exfattest.Marker(exfattest.TypeDeletedFile), exfattest.Marker(exfattest.TypeDeletedFile),
					exfattest.Marker(exfattest.TypeDeletedFile), exfattest.Marker(exfattest.TypeDeletedFile),
					exfattest.Marker(exfattest.TypeDeletedFile), exfattest.Marker(exfattest.TypeDeletedFile),
					exfattest.Marker(exfattest.TypeDeletedFile), exfattest.Marker(exfattest.TypeDeletedFile),
					exfattest.Marker(exfattest.TypeDeletedFile), exfattest.Marker(exfattest.TypeDeletedFile),
					exfattest.Marker(exfattest.TypeDeletedFile), exfattest.Marker(exfattest.TypeDeletedFile),
				},
				exfattest.VolumeLabel("SECOND"),
			),
			want: "SECOND",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := exfattest.New(exfattest.Options{})
			img.AddEntries(exfattest.RootCluster, tt.entries...)
			img.AddEntries(exfattest.RootCluster, exfattest.FileSet("a.wav", exfattest.AttrArchive, 10, 1, true)...)
			v := openTestVolume(t, img)

			got, err := v.Label()
			if err != nil {
				t.Fatalf("Label() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func Test_nameBuilder(t *testing.T) {
	fragment := func(units ...uint16) [nameUnitsPerEntry]uint16 {
		var f [nameUnitsPerEntry]uint16
		copy(f[:], units)
		return f
	}

	tests := []struct {
		name      string
		fragments [][nameUnitsPerEntry]uint16
		want      string
		wantErr   error
	}{
		{
			name:      "padding is trimmed",
			fragments: [][nameUnitsPerEntry]uint16{fragment('a', '.', 'w', 'a', 'v')},
			want:      "a.wav",
		},
		{
			name:      "no fragments",
			fragments: nil,
			want:      "",
		},
		{
			name: "umlauts",
			fragments: [][nameUnitsPerEntry]uint16{
				fragment('M', 0xFC, 'l', 'l', 'e', 'r'),
			},
			want: "Müller",
		},
		{
			name: "pair over fragments",
			fragments: [][nameUnitsPerEntry]uint16{
				fragment('a', 'a', 'a', 'a', 'a', 'a', 'a', 'a', 'a', 'a', 'a', 'a', 'a', 'a', 0xD83C),
				fragment(0xDFB5),
			},
			want: strings.Repeat("a", 14) + "\U0001F3B5",
		},
		{
			name:      "lone low surrogate",
			fragments: [][nameUnitsPerEntry]uint16{fragment(0xDC00, 'a')},
			wantErr:   ErrDecodingName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b nameBuilder
			for _, f := range tt.fragments {
				if err := b.add(f); err != nil {
					t.Fatalf("nameBuilder.add() error = %v", err)
				}
			}
			got, err := b.decode()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("nameBuilder.decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("nameBuilder.decode() = %q, want %q", got, tt.want)
			}
		})
	}
}
