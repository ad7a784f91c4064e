package fs

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"
	"github.com/sirupsen/logrus"
)

// BuildOptions control BuildImage.
type BuildOptions struct {
	VolumeLabel string
	// RockRidge records POSIX names, modes and ownership.
	RockRidge bool
	// DeepDirectories allows directory trees deeper than eight levels.
	DeepDirectories bool
	Log             logrus.FieldLogger
}

// BuildImage writes an ISO 9660 image of the host directory srcDir to imagePath.
// Regular files and directories are copied; symbolic links, devices and
// other special files are skipped.
func BuildImage(srcDir, imagePath string, opts BuildOptions) error {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	info, err := os.Stat(srcDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", srcDir)
	}

	size, err := imageSize(srcDir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(imagePath); err == nil {
		return fmt.Errorf("%s already exists", imagePath)
	}

	d, err := diskfs.Create(imagePath, size, diskfs.Raw)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	defer d.File.Close()
	d.LogicalBlocksize = 2048

	fsys, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   0,
		FSType:      filesystem.TypeISO9660,
		VolumeLabel: opts.VolumeLabel,
	})
	if err != nil {
		return fmt.Errorf("failed to create filesystem: %w", err)
	}
	iso, ok := fsys.(*iso9660.FileSystem)
	if !ok {
		return fmt.Errorf("unexpected filesystem type %T", fsys)
	}

	err = filepath.Walk(srcDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		isoPath := "/" + filepath.ToSlash(rel)

		switch mode := fi.Mode(); {
		case mode.IsDir():
			return iso.Mkdir(isoPath)
		case mode.IsRegular():
			return copyFile(iso, p, isoPath)
		default:
			log.WithFields(logrus.Fields{"path": p, "mode": mode.String()}).Debug("mkiso: skipping unsupported file type")
			return nil
		}
	})
	if err != nil {
		return fmt.Errorf("failed to populate image: %w", err)
	}

	label := opts.VolumeLabel
	if label == "" {
		label = path.Base(filepath.ToSlash(srcDir))
	}
	if err := iso.Finalize(iso9660.FinalizeOptions{
		RockRidge:        opts.RockRidge,
		DeepDirectories:  opts.DeepDirectories,
		VolumeIdentifier: label,
	}); err != nil {
		return fmt.Errorf("failed to finalize image: %w", err)
	}
	return nil
}

func copyFile(iso *iso9660.FileSystem, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := iso.OpenFile(dst, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return nil
}

// imageSize estimates the space needed for srcDir: file data rounded up to
// whole sectors plus room for directory records and volume descriptors.
func imageSize(srcDir string) (int64, error) {
	const sector = 2048
	size := int64(1 << 20)
	err := filepath.Walk(srcDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		size += 2 * sector
		if fi.Mode().IsRegular() {
			size += (fi.Size() + sector - 1) / sector * sector
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}
