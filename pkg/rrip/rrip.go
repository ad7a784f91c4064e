package rrip

import (
	"context"
	"errors"
	iofs "io/fs"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/s0up4200/go-rrip/internal/fs"
	core "github.com/s0up4200/go-rrip/internal/rrip"
	internalsettings "github.com/s0up4200/go-rrip/internal/settings"
)

var (
	ErrNotFound     = fs.ErrNotFound
	ErrNotDirectory = fs.ErrNotDirectory
	ErrNotSymlink   = fs.ErrNotSymlink
	ErrNotISO9660   = fs.ErrNotISO9660
)

// Stage represents a coarse progress stage.
type Stage string

const (
	StageOpening Stage = "opening"
	StageOpened  Stage = "opened"
	StageWalking Stage = "walking"
	StageDone    Stage = "done"
)

// ProgressEvent is emitted when a call transitions between phases, and for
// every directory entered while walking.
type ProgressEvent struct {
	Stage      Stage
	Image      string
	Path       string
	Entries    int
	Elapsed    time.Duration
	OccurredAt time.Time
}

// Settings are library-facing reader controls.
type Settings struct {
	// MaxFileIDLen bounds Rock Ridge names and symbolic link targets.
	MaxFileIDLen int
	// StrictInvalid drops all Rock Ridge data of a record holding a malformed entry.
	StrictInvalid    bool
	DisableRockRidge bool
}

// DefaultSettings returns library defaults equivalent to CLI defaults.
func DefaultSettings() Settings {
	return fromInternalSettings(internalsettings.Default())
}

// Options configure one call against a single image.
type Options struct {
	Image      string
	Path       string
	Recursive  bool
	Settings   Settings
	Logger     logrus.FieldLogger
	OnProgress func(ProgressEvent)
}

// Entry describes one file of an image.
type Entry struct {
	Path       string
	Name       string
	ISOName    string
	Mode       iofs.FileMode
	PosixMode  uint32
	UID        uint32
	GID        uint32
	Major      uint32
	Minor      uint32
	Size       int64
	Target     string
	IsDir      bool
	ModTime    time.Time
	AccessTime time.Time
	ChangeTime time.Time
	BirthTime  time.Time
}

// Listing is the result of List.
type Listing struct {
	VolumeLabel string
	RockRidge   bool
	Entries     []Entry
}

// List returns the entries of the directory at options.Path, or of the whole
// tree below it when Recursive is set.
func List(ctx context.Context, options Options) (Listing, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	fsys, start, err := open(ctx, options)
	if err != nil {
		return Listing{}, err
	}
	defer fsys.Close()

	listing := Listing{
		VolumeLabel: fsys.VolumeLabel(),
		RockRidge:   fsys.RockRidge(),
	}
	dir := options.Path
	if dir == "" {
		dir = "/"
	}

	if !options.Recursive {
		infos, err := fsys.ReadDir(dir)
		if err != nil {
			return Listing{}, err
		}
		for _, fi := range infos {
			listing.Entries = append(listing.Entries, buildEntry(fi))
		}
	} else {
		err := fsys.Walk(ctx, dir, func(p string, fi *fs.FileInfo) error {
			if fi.IsDir() {
				emit(options.OnProgress, ProgressEvent{
					Stage:      StageWalking,
					Image:      options.Image,
					Path:       p,
					Entries:    len(listing.Entries),
					OccurredAt: time.Now(),
				})
			}
			listing.Entries = append(listing.Entries, buildEntry(fi))
			return nil
		})
		if err != nil {
			return Listing{}, err
		}
	}

	emit(options.OnProgress, ProgressEvent{
		Stage:      StageDone,
		Image:      options.Image,
		Path:       dir,
		Entries:    len(listing.Entries),
		Elapsed:    time.Since(start),
		OccurredAt: time.Now(),
	})
	return listing, nil
}

// Stat describes the file at options.Path without following symbolic links.
func Stat(ctx context.Context, options Options) (Entry, error) {
	fsys, _, err := open(ctx, options)
	if err != nil {
		return Entry{}, err
	}
	defer fsys.Close()

	fi, err := fsys.Stat(options.Path)
	if err != nil {
		return Entry{}, err
	}
	return buildEntry(fi), nil
}

// Readlink returns the target of the symbolic link at options.Path.
func Readlink(ctx context.Context, options Options) (string, error) {
	fsys, _, err := open(ctx, options)
	if err != nil {
		return "", err
	}
	defer fsys.Close()
	return fsys.Readlink(options.Path)
}

func open(ctx context.Context, options Options) (*fs.FileSystem, time.Time, error) {
	start := time.Now()
	if options.Image == "" {
		return nil, start, errors.New("image is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, start, err
	}

	emit(options.OnProgress, ProgressEvent{
		Stage:      StageOpening,
		Image:      options.Image,
		OccurredAt: time.Now(),
	})
	fsys, err := fs.Open(options.Image, toInternalSettings(options.Settings), options.Logger)
	if err != nil {
		return nil, start, err
	}
	emit(options.OnProgress, ProgressEvent{
		Stage:      StageOpened,
		Image:      options.Image,
		Elapsed:    time.Since(start),
		OccurredAt: time.Now(),
	})
	return fsys, start, nil
}

func emit(cb func(ProgressEvent), event ProgressEvent) {
	if cb != nil {
		cb(event)
	}
}

func buildEntry(fi *fs.FileInfo) Entry {
	e := Entry{
		Path:       fi.Path(),
		Name:       fi.Name(),
		ISOName:    fi.ISOName(),
		Mode:       fi.Mode(),
		PosixMode:  fi.PosixMode(),
		UID:        fi.UID(),
		GID:        fi.GID(),
		Size:       fi.Size(),
		Target:     fi.Target(),
		IsDir:      fi.IsDir(),
		ModTime:    fi.ModTime(),
		AccessTime: fi.AccessTime(),
		ChangeTime: fi.ChangeTime(),
		BirthTime:  fi.BirthTime(),
	}
	if fi.Mode()&iofs.ModeDevice != 0 {
		e.Major, e.Minor = core.SplitDev(fi.Rdev())
	}
	return e
}

func fromInternalSettings(s internalsettings.Settings) Settings {
	return Settings{
		MaxFileIDLen:     s.MaxFileIDLen,
		StrictInvalid:    s.InvalidPolicy == internalsettings.PolicyFallback,
		DisableRockRidge: !s.RockRidge,
	}
}

func toInternalSettings(s Settings) internalsettings.Settings {
	cfg := internalsettings.Default()
	if s.MaxFileIDLen > 0 {
		cfg.MaxFileIDLen = s.MaxFileIDLen
	}
	if s.StrictInvalid {
		cfg.InvalidPolicy = internalsettings.PolicyFallback
	}
	cfg.RockRidge = !s.DisableRockRidge
	return cfg
}
