package iso9660

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/s0up4200/go-rrip/internal/buffer"
	"github.com/s0up4200/go-rrip/internal/rrip"
	"github.com/s0up4200/go-rrip/internal/settings"
)

var (
	ErrNotISO9660   = errors.New("not an ISO 9660 volume")
	ErrNotFound     = errors.New("no such file or directory")
	ErrNotDirectory = errors.New("not a directory")
)

// Reader provides ISO 9660 file system reading with Rock Ridge extensions
type Reader struct {
	file        io.ReaderAt
	closer      io.Closer
	size        int64
	blockSize   uint32
	volumeSize  uint32
	volumeLabel string

	root      *Entry
	rootSelf  *directoryRecord
	rockRidge bool
	suspSkip  int

	settings settings.Settings
	log      logrus.FieldLogger
}

// NewReader opens the image at path.
func NewReader(path string, s settings.Settings, log logrus.FieldLogger) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ISO file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat ISO file: %w", err)
	}

	r, err := NewReaderAt(file, info.Size(), s, log)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewReaderAt reads an image of the given size from ra.
func NewReaderAt(ra io.ReaderAt, size int64, s settings.Settings, log logrus.FieldLogger) (*Reader, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if s.MaxFileIDLen < 2 {
		s.MaxFileIDLen = settings.DefaultMaxFileIDLen
	}
	r := &Reader{
		file:      ra,
		size:      size,
		blockSize: SectorSize,
		settings:  s,
		log:       log,
	}
	if err := r.initialize(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close closes the underlying file when the reader opened it.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) VolumeLabel() string {
	return r.volumeLabel
}

func (r *Reader) BlockSize() uint32 {
	return r.blockSize
}

// RockRidge reports whether Rock Ridge entries are being applied.
func (r *Reader) RockRidge() bool {
	return r.rockRidge
}

// Root returns the root directory entry.
func (r *Reader) Root() *Entry {
	return r.root
}

func (r *Reader) initialize() error {
	rootRecord, err := r.readVolumeDescriptors()
	if err != nil {
		return err
	}

	r.root = &Entry{
		reader:  r,
		Path:    "/",
		ISOName: "/",
		record:  rootRecord,
		Record:  rrip.NewRecord(r.settings.MaxFileIDLen),
		extents: []extent{{fileStart: 0, fileEnd: int64(rootRecord.size), physOff: r.blockOffset(rootRecord.extent)}},
	}
	r.root.Record.SetDefaults(true, rootRecord.recorded)

	if err := r.detectRockRidge(); err != nil {
		return err
	}
	return nil
}

// readVolumeDescriptors walks the descriptor set and returns the primary
// volume's root directory record.
func (r *Reader) readVolumeDescriptors() (*directoryRecord, error) {
	sector := make([]byte, SectorSize)
	for i := 0; i < maxDescriptors; i++ {
		off := int64(DescriptorOffset) + int64(i)*SectorSize
		if err := r.readFullAt(off, sector); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("read volume descriptor %d: %w", i, err)
		}
		if string(sector[1:6]) != StandardID {
			break
		}

		switch sector[0] {
		case DescriptorPrimary:
			return r.parsePrimary(sector)
		case DescriptorTerminator:
			return nil, fmt.Errorf("%w: no primary volume descriptor", ErrNotISO9660)
		}
	}
	return nil, ErrNotISO9660
}

func (r *Reader) parsePrimary(sector []byte) (*directoryRecord, error) {
	br := buffer.NewReader(sector)
	br.SetPosition(pvdVolumeSizeOffset)
	volumeSize, _ := br.ReadBothUInt32()
	br.SetPosition(pvdBlockSizeOffset)
	blockSize, _ := br.ReadBothUInt16()
	switch blockSize {
	case 512, 1024, 2048:
		r.blockSize = uint32(blockSize)
	default:
		return nil, fmt.Errorf("%w: unsupported logical block size %d", ErrNotISO9660, blockSize)
	}
	r.volumeSize = volumeSize
	r.volumeLabel = strings.TrimRight(string(sector[pvdVolumeIDOffset:pvdVolumeIDOffset+pvdVolumeIDLength]), " \x00")

	root, err := parseDirectoryRecord(sector[pvdRootRecordOffset : pvdRootRecordOffset+pvdRootRecordLength])
	if err != nil {
		return nil, fmt.Errorf("%w: root directory record: %v", ErrNotISO9660, err)
	}
	if !root.isDir() {
		return nil, fmt.Errorf("%w: root record is not a directory", ErrNotISO9660)
	}
	return root, nil
}

// detectRockRidge looks for the SP entry in the root's "." record and, when
// found, applies that record's Rock Ridge entries to the root itself.
func (r *Reader) detectRockRidge() error {
	data, err := r.readExtent(r.root)
	if err != nil {
		return fmt.Errorf("read root directory: %w", err)
	}
	self, err := parseDirectoryRecord(data)
	if err != nil {
		return fmt.Errorf("read root directory: %w", err)
	}
	if !self.isSelf() {
		return fmt.Errorf("%w: root directory does not start with its own record", ErrNotISO9660)
	}
	r.rootSelf = self

	skip, ok := detectSharing(self.systemUse)
	if !ok {
		r.log.Debug("iso9660: no SUSP indicator, plain ISO 9660")
		return nil
	}
	if !r.settings.RockRidge {
		r.log.Debug("iso9660: Rock Ridge disabled by settings")
		return nil
	}
	r.rockRidge = true
	r.suspSkip = skip
	r.root.record = self
	r.applySystemUse(self, r.root.Record, "/")
	return nil
}

func (r *Reader) blockOffset(block uint32) int64 {
	return int64(block) * int64(r.blockSize)
}

func (r *Reader) readFullAt(off int64, p []byte) error {
	sr := io.NewSectionReader(r.file, off, int64(len(p)))
	_, err := io.ReadFull(sr, p)
	return err
}

// readExtent loads the whole data of a directory.
func (r *Reader) readExtent(e *Entry) ([]byte, error) {
	size := e.Size()
	if size > maxDirectorySize {
		return nil, fmt.Errorf("directory %s: extent of %d bytes exceeds limit", e.Path, size)
	}
	if len(e.extents) != 1 {
		return nil, fmt.Errorf("directory %s: %d extents", e.Path, len(e.extents))
	}
	ex := e.extents[0]
	if ex.physOff < 0 || (r.size > 0 && ex.physOff+size > r.size) {
		return nil, fmt.Errorf("directory %s: extent at %d runs past end of image", e.Path, ex.physOff)
	}
	data := make([]byte, size)
	if err := r.readFullAt(ex.physOff, data); err != nil {
		return nil, fmt.Errorf("directory %s: %w", e.Path, err)
	}
	return data, nil
}
