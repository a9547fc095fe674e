package device

import (
	"bytes"
	"context"

	"github.com/disintegration/imaging"

	"github.com/retiscan/retiscan/internal/apperr"
)

// AutoCropper is the non-interactive crop collaborator: it center-crops
// to the target aspect and resizes to the target size in one pass. Used
// where no human can drag a crop rectangle.
type AutoCropper struct {
	Quality int
}

func NewAutoCropper() *AutoCropper {
	return &AutoCropper{Quality: 90}
}

func (a *AutoCropper) Crop(ctx context.Context, source []byte, target CropTarget) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, apperr.CodeConversionFailed, "decoding crop source", err)
	}

	cropped := imaging.Fill(img, target.Width, target.Height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.JPEG, imaging.JPEGQuality(a.Quality)); err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, apperr.CodeConversionFailed, "encoding cropped image", err)
	}
	return buf.Bytes(), nil
}
