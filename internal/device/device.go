// Package device declares the platform collaborator contracts the image
// pipeline consumes, plus default implementations good enough for CLI
// and test use. Real mobile hosts supply their own implementations.
package device

import "context"

// PickedFile is the raw acquisition output: bytes plus the declared
// extension, before any validation beyond the picker's allow-list.
type PickedFile struct {
	Path      string
	Bytes     []byte
	Extension string
}

// FilePicker acquires one file restricted to the given extensions
// (lowercase, dot-prefixed). A user abort returns a cancelled error, any
// I/O problem a picker-failed error.
type FilePicker interface {
	PickFile(ctx context.Context, allowedExtensions []string) (*PickedFile, error)
}

type PermissionStatus int

const (
	PermissionGranted PermissionStatus = iota
	PermissionDenied
	// PermissionPermanentlyDenied means the user checked "don't ask
	// again"; re-prompting within the same attempt is pointless.
	PermissionPermanentlyDenied
)

// Permissions mediates the platform storage/photo access prompt.
type Permissions interface {
	RequestStorageAccess(ctx context.Context) (PermissionStatus, error)
}

// CropTarget describes what the crop collaborator must produce.
type CropTarget struct {
	Width   int
	Height  int
	AspectX int
	AspectY int
}

// Cropper turns source bytes into a cropped image. Interactive
// implementations may return a cancelled error when the user aborts.
// The pipeline never trusts the declared output size; it re-verifies.
type Cropper interface {
	Crop(ctx context.Context, source []byte, target CropTarget) ([]byte, error)
}
