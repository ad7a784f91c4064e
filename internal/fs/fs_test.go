package fs

import (
	"context"
	"io"
	iofs "io/fs"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":            "/",
		".":           "/",
		"/":           "/",
		"a/b":         "/a/b",
		"./a/b/":      "/a/b",
		"/a//b/../c":  "/a/c",
		"a\\b":        "/a/b",
		"../../etc/x": "/etc/x",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q)=%q want %q", in, got, want)
		}
	}
}

func TestFileMode(t *testing.T) {
	tests := []struct {
		posix uint32
		want  iofs.FileMode
	}{
		{0o100644, 0o644},
		{0o040755, iofs.ModeDir | 0o755},
		{0o120777, iofs.ModeSymlink | 0o777},
		{0o020600, iofs.ModeDevice | iofs.ModeCharDevice | 0o600},
		{0o060660, iofs.ModeDevice | 0o660},
		{0o010644, iofs.ModeNamedPipe | 0o644},
		{0o140755, iofs.ModeSocket | 0o755},
		{0o104755, iofs.ModeSetuid | 0o755},
		{0o041777, iofs.ModeDir | iofs.ModeSticky | 0o777},
	}
	for _, tt := range tests {
		if got := fileMode(tt.posix); got != tt.want {
			t.Errorf("fileMode(%o)=%v want %v", tt.posix, got, tt.want)
		}
	}
}

func TestWalk_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := &FileSystem{}
	err := fs.walk(ctx, nil, nil, func(string, *FileInfo) error { return nil })
	if err != context.Canceled {
		t.Fatalf("walk err=%v want context.Canceled", err)
	}
}

var _ iofs.FileInfo = (*FileInfo)(nil)
var _ io.Closer = (*FileSystem)(nil)
