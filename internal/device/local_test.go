package device

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/retiscan/retiscan/internal/apperr"
)

var rasterExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

func TestLocalPickerReadsAllowedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fundus.JPG")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	picker := NewLocalPicker(path)
	file, err := picker.PickFile(context.Background(), rasterExtensions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if file.Extension != ".jpg" {
		t.Errorf("extension must be lowercased, got %s", file.Extension)
	}
	if string(file.Bytes) != "jpeg bytes" {
		t.Errorf("unexpected bytes: %q", file.Bytes)
	}
}

func TestLocalPickerRejectsDisallowedExtension(t *testing.T) {
	picker := NewLocalPicker("/somewhere/scan.pdf")
	_, err := picker.PickFile(context.Background(), rasterExtensions)
	if apperr.CodeOf(err) != apperr.CodeUnsupportedFormat {
		t.Errorf("expected unsupported_format, got %v", err)
	}
}

func TestLocalPickerEmptyPathIsCancelled(t *testing.T) {
	picker := NewLocalPicker("")
	_, err := picker.PickFile(context.Background(), rasterExtensions)
	if !apperr.IsCancelled(err) {
		t.Errorf("expected cancelled, got %v", err)
	}
}

func TestLocalPickerMissingFileFails(t *testing.T) {
	picker := NewLocalPicker(filepath.Join(t.TempDir(), "missing.jpg"))
	_, err := picker.PickFile(context.Background(), rasterExtensions)
	if apperr.CodeOf(err) != apperr.CodePickerFailed {
		t.Errorf("expected file_picker_failed, got %v", err)
	}
}

func TestAutoCropperProducesTargetSize(t *testing.T) {
	// Wide source: the cropper must center-crop to square, then resize.
	img := imaging.New(800, 400, color.NRGBA{R: 50, G: 50, B: 50, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("failed to encode source: %v", err)
	}

	cropper := NewAutoCropper()
	out, err := cropper.Crop(context.Background(), buf.Bytes(), CropTarget{Width: 299, Height: 299, AspectX: 1, AspectY: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output must decode: %v", err)
	}
	if decoded.Bounds().Dx() != 299 || decoded.Bounds().Dy() != 299 {
		t.Errorf("expected 299x299, got %dx%d", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestAutoCropperRejectsGarbage(t *testing.T) {
	cropper := NewAutoCropper()
	_, err := cropper.Crop(context.Background(), []byte("not an image"), CropTarget{Width: 299, Height: 299})
	if apperr.CodeOf(err) != apperr.CodeConversionFailed {
		t.Errorf("expected conversion_failed, got %v", err)
	}
}
