// Package pipeline produces the validated 299x299 image artifact the
// remote classifier expects. Three strict stages, each establishing the
// invariant the next one needs: acquire -> normalize -> crop.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/retiscan/retiscan/internal/apperr"
	"github.com/retiscan/retiscan/internal/device"
)

const (
	// TargetSize is the edge length the classifier was trained on.
	TargetSize = 299
	// MaxImageBytes is the acquisition ceiling.
	MaxImageBytes = 5 << 20

	jpegQuality = 90
)

// AllowedExtensions is the picker allow-list.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// requiresConversion marks formats the upload endpoint cannot take as-is.
// TIFF fundus exports are the usual case: possibly multi-frame, so they
// are re-encoded as single-frame JPEG.
var requiresConversion = map[string]bool{
	".tif":  true,
	".tiff": true,
}

// RawImage is the untouched acquisition output.
type RawImage struct {
	Bytes     []byte
	Extension string
	Path      string
}

// NormalizedImage is guaranteed single-frame and universally encodable.
type NormalizedImage struct {
	Bytes     []byte
	Extension string
	Path      string
}

// ReadyImage is the final artifact: exactly TargetSize x TargetSize,
// JPEG-encoded, tagged with the idempotency token of its pipeline run.
type ReadyImage struct {
	Bytes []byte
	Token string
}

// Pipeline runs the three stages and owns the intermediate outputs until
// Clear. One run at a time; the session machine takes over the ReadyImage.
type Pipeline struct {
	picker      device.FilePicker
	permissions device.Permissions
	cropper     device.Cropper

	mu         sync.Mutex
	raw        *RawImage
	normalized *NormalizedImage
	ready      *ReadyImage
	token      string
}

func New(picker device.FilePicker, permissions device.Permissions, cropper device.Cropper) *Pipeline {
	return &Pipeline{picker: picker, permissions: permissions, cropper: cropper}
}

// Acquire requests storage access, then invokes the picker restricted to
// the raster allow-list and validates the byte ceiling. Permission must
// be settled before the picker opens: a permanently denied answer is a
// terminal failure of this call, not something to retry inside it.
// A fresh idempotency token is minted per acquisition and rides along to
// every start call made with the resulting image.
func (p *Pipeline) Acquire(ctx context.Context) (*RawImage, error) {
	status, err := p.permissions.RequestStorageAccess(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPermission, apperr.CodePermissionDenied, "requesting storage access", err)
	}
	switch status {
	case device.PermissionDenied:
		return nil, apperr.New(apperr.KindPermission, apperr.CodePermissionDenied, "storage access denied")
	case device.PermissionPermanentlyDenied:
		return nil, apperr.New(apperr.KindPermission, apperr.CodePermissionPermanent, "storage access permanently denied")
	}

	picked, err := p.picker.PickFile(ctx, AllowedExtensions)
	if err != nil {
		return nil, err
	}

	if int64(len(picked.Bytes)) > MaxImageBytes {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeImageTooLarge,
			fmt.Sprintf("image is %d bytes, limit is %d", len(picked.Bytes), MaxImageBytes))
	}

	raw := &RawImage{Bytes: picked.Bytes, Extension: picked.Extension, Path: picked.Path}

	p.mu.Lock()
	p.raw = raw
	p.normalized = nil
	p.ready = nil
	p.token = uuid.New().String()
	p.mu.Unlock()

	log.Printf("[PIPELINE] acquired %s (%d bytes)", raw.Extension, len(raw.Bytes))
	return raw, nil
}

// Normalize converts formats the upload endpoint cannot take; everything
// else passes through by reference, bytes untouched.
func (p *Pipeline) Normalize(raw *RawImage) (*NormalizedImage, error) {
	if raw == nil {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeNoImageSelected, "normalize called without an acquired image")
	}

	normalized := &NormalizedImage{Bytes: raw.Bytes, Extension: raw.Extension, Path: raw.Path}

	if requiresConversion[raw.Extension] {
		img, err := imaging.Decode(bytes.NewReader(raw.Bytes))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, apperr.CodeConversionFailed, "decoding source image", err)
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
			return nil, apperr.Wrap(apperr.KindUnknown, apperr.CodeConversionFailed, "re-encoding image", err)
		}
		normalized.Bytes = buf.Bytes()
		normalized.Extension = ".jpg"
		log.Printf("[PIPELINE] converted %s to jpeg (%d -> %d bytes)", raw.Extension, len(raw.Bytes), len(normalized.Bytes))
	}

	p.mu.Lock()
	p.normalized = normalized
	p.mu.Unlock()
	return normalized, nil
}

// Crop hands the image to the crop collaborator at 1:1 and TargetSize,
// then verifies the result itself. The tool's declared output size is
// never trusted: any dimension mismatch is resampled locally to exactly
// TargetSize x TargetSize before the image leaves the pipeline.
func (p *Pipeline) Crop(ctx context.Context, normalized *NormalizedImage) (*ReadyImage, error) {
	if normalized == nil {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeNoImageSelected, "crop called without a normalized image")
	}

	cropped, err := p.cropper.Crop(ctx, normalized.Bytes, device.CropTarget{
		Width:   TargetSize,
		Height:  TargetSize,
		AspectX: 1,
		AspectY: 1,
	})
	if err != nil {
		return nil, err
	}

	verified, err := enforceTargetSize(cropped)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	token := p.token
	if token == "" {
		token = uuid.New().String()
		p.token = token
	}
	ready := &ReadyImage{Bytes: verified, Token: token}
	p.ready = ready
	p.mu.Unlock()

	return ready, nil
}

// Run executes the three stages strictly in order; no stage starts
// before the previous one completed.
func (p *Pipeline) Run(ctx context.Context) (*ReadyImage, error) {
	raw, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	normalized, err := p.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return p.Crop(ctx, normalized)
}

// Ready returns the current run's output, nil when no run has completed.
func (p *Pipeline) Ready() *ReadyImage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Clear discards all stage outputs. Idempotent.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raw = nil
	p.normalized = nil
	p.ready = nil
	p.token = ""
}

func enforceTargetSize(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, apperr.CodeConversionFailed, "decoding crop output", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == TargetSize && bounds.Dy() == TargetSize {
		return data, nil
	}

	log.Printf("[PIPELINE] crop tool returned %dx%d, resampling to %dx%d",
		bounds.Dx(), bounds.Dy(), TargetSize, TargetSize)
	resampled := imaging.Fill(img, TargetSize, TargetSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resampled, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, apperr.CodeConversionFailed, "encoding resampled image", err)
	}
	return buf.Bytes(), nil
}
