package canvas

import (
	"image"
	"image/draw"
	"image/png"
	"io"
)

// Codec decodes and encodes the on-disk raster format. The updater treats it
// as an opaque service: swapping the canvas format means swapping the Codec,
// nothing else changes.
type Codec interface {
	Decode(r io.Reader) (*image.NRGBA, error)
	Encode(w io.Writer, img *image.NRGBA) error
}

// PNGCodec is the default Codec, a lossless PNG round-trip.
type PNGCodec struct{}

func (PNGCodec) Decode(r io.Reader) (*image.NRGBA, error) {
	src, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	if img, ok := src.(*image.NRGBA); ok {
		return img, nil
	}
	img := image.NewNRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
	return img, nil
}

func (PNGCodec) Encode(w io.Writer, img *image.NRGBA) error {
	return png.Encode(w, img)
}
