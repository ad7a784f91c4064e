package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/s0up4200/go-rrip/internal/fs"
	"github.com/s0up4200/go-rrip/internal/report"
	"github.com/s0up4200/go-rrip/internal/settings"
)

var version = "dev"

const repoSlug = "s0up4200/go-rrip"

type rootOptions struct {
	configFile  string
	debug       bool
	isoOnly     bool
	strict      bool
	maxNameLen  int
	long        bool
	recursive   bool
	human       bool
	label       string
	noRockRidge bool
	selfUpdate  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "rrls <image> [path]",
		Short:         "List ISO 9660 images with Rock Ridge extensions.",
		Args:          cobra.RangeArgs(0, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.selfUpdate {
				return runSelfUpdate(cmd.Context(), cmd.OutOrStdout())
			}
			if len(args) == 0 {
				return errors.New("image path required")
			}
			return runList(cmd, opts, args)
		},
	}

	statCmd := &cobra.Command{
		Use:   "stat <image> <path>",
		Short: "Show the attributes of one file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileSystem(cmd, opts, args[0], func(fsys *fs.FileSystem) error {
				fi, err := fsys.Stat(args[1])
				if err != nil {
					return err
				}
				return report.WriteStat(cmd.OutOrStdout(), fi)
			})
		},
	}

	readlinkCmd := &cobra.Command{
		Use:   "readlink <image> <path>",
		Short: "Print the target of a symbolic link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileSystem(cmd, opts, args[0], func(fsys *fs.FileSystem) error {
				target, err := fsys.Readlink(args[1])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), target)
				return err
			})
		},
	}

	catCmd := &cobra.Command{
		Use:   "cat <image> <path>",
		Short: "Write the contents of a file to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileSystem(cmd, opts, args[0], func(fsys *fs.FileSystem) error {
				rc, err := fsys.Open(args[1])
				if err != nil {
					return err
				}
				defer rc.Close()
				_, err = io.Copy(cmd.OutOrStdout(), rc)
				return err
			})
		},
	}

	mkisoCmd := &cobra.Command{
		Use:   "mkiso <dir> <image>",
		Short: "Build a Rock Ridge image from a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd, opts)
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), s, opts.debug)
			err = fs.BuildImage(args[0], args[1], fs.BuildOptions{
				VolumeLabel: opts.label,
				RockRidge:   !opts.noRockRidge,
				Log:         log,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Image written: %s\n", args[1])
			return nil
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update rrls",
		Long:  "Update rrls to latest version (release builds only).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfUpdate(cmd.Context(), cmd.OutOrStdout())
		},
		DisableFlagsInUseLine: true,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "rrls version: %s\n", version)
			return nil
		},
		DisableFlagsInUseLine: true,
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "YAML settings file")
	pf.BoolVarP(&opts.debug, "debug", "d", false, "Log every rejected or truncated Rock Ridge entry")
	pf.BoolVar(&opts.isoOnly, "iso", false, "Ignore Rock Ridge entries and show plain ISO 9660 names")
	pf.BoolVar(&opts.strict, "strict", false, "Drop all Rock Ridge data of a record holding a malformed entry")
	pf.IntVar(&opts.maxNameLen, "max-name-len", settings.DefaultMaxFileIDLen, "Capacity of Rock Ridge names and link targets")

	rootCmd.Flags().BoolVarP(&opts.long, "long", "l", false, "Use a long listing format")
	rootCmd.Flags().BoolVarP(&opts.recursive, "recursive", "R", false, "List subdirectories recursively")
	rootCmd.Flags().BoolVarP(&opts.human, "human-readable", "H", false, "Print sizes like 1.50 KB")
	rootCmd.Flags().BoolVar(&opts.selfUpdate, "self-update", false, "Update rrls to latest version (release builds only)")

	mkisoCmd.Flags().StringVar(&opts.label, "label", "", "Volume label (defaults to the directory name)")
	mkisoCmd.Flags().BoolVar(&opts.noRockRidge, "no-rockridge", false, "Write plain ISO 9660 without Rock Ridge entries")

	rootCmd.AddCommand(statCmd, readlinkCmd, catCmd, mkisoCmd, updateCmd, versionCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rrls: %s\n", err.Error())
		os.Exit(1)
	}
}

// resolveSettings starts from the defaults or the --config file and applies
// only the flags the user set.
func resolveSettings(cmd *cobra.Command, opts *rootOptions) (settings.Settings, error) {
	s := settings.Default()
	if opts.configFile != "" {
		loaded, err := settings.Load(opts.configFile)
		if err != nil {
			return s, err
		}
		s = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("iso") {
		s.RockRidge = !opts.isoOnly
	}
	if flags.Changed("strict") {
		if opts.strict {
			s.InvalidPolicy = settings.PolicyFallback
		} else {
			s.InvalidPolicy = settings.PolicySkip
		}
	}
	if flags.Changed("max-name-len") {
		s.MaxFileIDLen = opts.maxNameLen
	}
	if flags.Changed("debug") && opts.debug {
		s.LogLevel = "debug"
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func newLogger(w io.Writer, s settings.Settings, debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	return log
}

func withFileSystem(cmd *cobra.Command, opts *rootOptions, image string, fn func(*fs.FileSystem) error) error {
	s, err := resolveSettings(cmd, opts)
	if err != nil {
		return err
	}
	log := newLogger(cmd.ErrOrStderr(), s, opts.debug)
	fsys, err := fs.Open(image, s, log.WithField("image", image))
	if err != nil {
		return err
	}
	defer fsys.Close()
	return fn(fsys)
}

func runList(cmd *cobra.Command, opts *rootOptions, args []string) error {
	dir := "/"
	if len(args) > 1 {
		dir = args[1]
	}
	return withFileSystem(cmd, opts, args[0], func(fsys *fs.FileSystem) error {
		listOpts := report.ListOptions{Long: opts.long, Human: opts.human}
		if !opts.recursive {
			fi, err := fsys.Stat(dir)
			if err != nil {
				return err
			}
			entries := []*fs.FileInfo{fi}
			if fi.IsDir() {
				if entries, err = fsys.ReadDir(dir); err != nil {
					return err
				}
			}
			return report.WriteListing(cmd.OutOrStdout(), entries, listOpts)
		}

		var entries []*fs.FileInfo
		err := fsys.Walk(cmd.Context(), dir, func(p string, fi *fs.FileInfo) error {
			entries = append(entries, fi)
			return nil
		})
		if err != nil {
			return err
		}
		listOpts.FullPath = true
		return report.WriteListing(cmd.OutOrStdout(), entries, listOpts)
	})
}

func runSelfUpdate(ctx context.Context, out io.Writer) error {
	if version == "" || version == "dev" {
		return errors.New("self-update is only available in release builds")
	}

	if _, err := semver.ParseTolerant(version); err != nil {
		return fmt.Errorf("could not parse version: %w", err)
	}

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repoSlug))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found from github repository", repoSlug, version)
	}

	if latest.LessOrEqual(version) {
		fmt.Fprintf(out, "Current binary is the latest version: %s\n", version)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	fmt.Fprintf(out, "Successfully updated to version: %s\n", latest.Version())
	return nil
}
