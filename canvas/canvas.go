// Package canvas applies validated pixel commands to the persisted canvas
// image. Each Apply is an independent load→blend→persist transaction: the
// canvas is decoded fresh from disk, one pixel is alpha-blended in memory,
// and the whole image is written back through a temp-file-then-rename
// publish, so readers of the canvas file never observe a torn write. No
// in-memory canvas state survives between commands; every cycle starts from
// durable state.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/onnwee/twixelwall/command"
)

// UpdateStage identifies which step of an update cycle failed.
type UpdateStage int

const (
	// StageLoad covers opening and decoding the current canvas file.
	StageLoad UpdateStage = iota
	// StageEncode covers writing the mutated image to the scratch file.
	StageEncode
	// StagePublish covers the rename of the scratch file onto the canvas path.
	StagePublish
)

// String returns the stable metric label for the stage.
func (s UpdateStage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageEncode:
		return "encode"
	case StagePublish:
		return "publish"
	default:
		return "unknown"
	}
}

// UpdateError wraps a failure from one update cycle with the stage it
// occurred in. A failed cycle never leaves partial state on disk; the live
// canvas file is untouched.
type UpdateError struct {
	Stage UpdateStage
	Err   error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("canvas update %s failed: %v", e.Stage, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// Updater owns the canvas file path and its declared dimensions. It is the
// only component that checks command coordinates against those dimensions.
type Updater struct {
	Path   string
	Width  uint32
	Height uint32
	// ScratchDir is where temp files are written before the publish rename.
	// It must be on the same volume as Path for the rename to be atomic;
	// empty means the canvas file's own directory.
	ScratchDir string
	Codec      Codec
}

// NewUpdater returns an Updater for the canvas at path with the given
// declared dimensions.
func NewUpdater(path string, width, height uint32, codec Codec) *Updater {
	return &Updater{Path: path, Width: width, Height: height, Codec: codec}
}

// Apply runs one full update cycle for cmd. It returns (false, nil) when the
// command is out of canvas bounds: an expected no-op from a misbehaving
// sender, not a failure. Any returned error is an *UpdateError and the live
// canvas file is observably unchanged afterwards.
func (u *Updater) Apply(ctx context.Context, cmd command.PixelCommand) (bool, error) {
	if cmd.X >= u.Width || cmd.Y >= u.Height {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, &UpdateError{Stage: StageLoad, Err: err}
	}
	img, err := u.load()
	if err != nil {
		return false, &UpdateError{Stage: StageLoad, Err: err}
	}
	blend(img, cmd)
	if err := u.publish(img); err != nil {
		return false, err
	}
	return true, nil
}

// Bootstrap creates the canvas file as an opaque white width×height image
// when it does not exist yet, using the same publish path as updates. An
// existing file is left alone regardless of its dimensions.
func (u *Updater) Bootstrap() error {
	if _, err := os.Stat(u.Path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(u.Path), 0o755); err != nil {
		return err
	}
	img := image.NewNRGBA(image.Rect(0, 0, int(u.Width), int(u.Height)))
	white := image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	draw.Draw(img, img.Bounds(), white, image.Point{}, draw.Src)
	return u.publish(img)
}

func (u *Updater) load() (*image.NRGBA, error) {
	f, err := os.Open(u.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close canvas file", slog.Any("err", err))
		}
	}()
	return u.Codec.Decode(f)
}

// blend source-over composites the command color onto its pixel. A fully
// opaque command behaves as a plain overwrite; a fully transparent one
// leaves the destination RGB unchanged.
func blend(img *image.NRGBA, cmd command.PixelCommand) {
	src := image.NewUniform(color.NRGBA{R: cmd.R, G: cmd.G, B: cmd.B, A: cmd.A})
	x, y := int(cmd.X), int(cmd.Y)
	draw.Draw(img, image.Rect(x, y, x+1, y+1), src, image.Point{}, draw.Over)
}

// publish encodes img to a temp file in the scratch dir, then renames it
// onto the canvas path. The rename is the sole publish point: it is atomic
// within a volume, so external readers see either the old or the new image
// in full.
func (u *Updater) publish(img *image.NRGBA) error {
	tmp, err := os.CreateTemp(u.scratchDir(), "canvas-*.png")
	if err != nil {
		return &UpdateError{Stage: StageEncode, Err: err}
	}
	tmpPath := tmp.Name()
	if err := u.Codec.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		removeScratch(tmpPath)
		return &UpdateError{Stage: StageEncode, Err: err}
	}
	if err := tmp.Close(); err != nil {
		removeScratch(tmpPath)
		return &UpdateError{Stage: StageEncode, Err: err}
	}
	if err := os.Rename(tmpPath, u.Path); err != nil {
		// Best-effort cleanup so persistent rename faults (cross-device
		// scratch dir, permissions) don't accumulate scratch files.
		removeScratch(tmpPath)
		return &UpdateError{Stage: StagePublish, Err: err}
	}
	return nil
}

func (u *Updater) scratchDir() string {
	if u.ScratchDir != "" {
		return u.ScratchDir
	}
	return filepath.Dir(u.Path)
}

func removeScratch(path string) {
	if err := os.Remove(path); err != nil {
		slog.Debug("failed to remove scratch canvas file", slog.String("path", path), slog.Any("err", err))
	}
}
