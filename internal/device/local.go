package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/retiscan/retiscan/internal/apperr"
)

// LocalPicker reads one file from disk, standing in for the platform
// photo/file picker when running headless.
type LocalPicker struct {
	path string
}

func NewLocalPicker(path string) *LocalPicker {
	return &LocalPicker{path: path}
}

func (p *LocalPicker) PickFile(ctx context.Context, allowedExtensions []string) (*PickedFile, error) {
	if p.path == "" {
		return nil, apperr.New(apperr.KindCancelled, apperr.CodePickerCancelled, "no file chosen")
	}

	ext := strings.ToLower(filepath.Ext(p.path))
	if !extensionAllowed(ext, allowedExtensions) {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeUnsupportedFormat,
			fmt.Sprintf("extension %q not allowed", ext))
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, apperr.CodePickerFailed, "reading file", err)
	}

	return &PickedFile{Path: p.path, Bytes: data, Extension: ext}, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// StaticPermissions answers every prompt with a fixed status. Grant()
// covers desktop hosts where no prompt exists; tests script the rest.
type StaticPermissions struct {
	Status PermissionStatus
}

func Grant() *StaticPermissions {
	return &StaticPermissions{Status: PermissionGranted}
}

func (s *StaticPermissions) RequestStorageAccess(ctx context.Context) (PermissionStatus, error) {
	return s.Status, nil
}
