// Package command parses chat lines into validated pixel-write commands.
//
// The accepted grammar is "x y r g b [a]" where every field is a decimal
// integer and each color component is in [0,255]. Parsing is pure and
// context-free: no canvas-dimension check happens here, so out-of-canvas
// coordinates still parse. The canvas updater owns that check, because it is
// the only component that knows the current width and height.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parse failure reasons. Match with errors.Is.
var (
	ErrMalformed       = errors.New("malformed token")
	ErrArityMismatch   = errors.New("wrong token count")
	ErrColorOutOfRange = errors.New("color component out of range")
)

// PixelCommand is one validated pixel write: blend (R,G,B,A) onto (X,Y).
// Constructed once per accepted chat line and consumed immediately.
type PixelCommand struct {
	X, Y       uint32
	R, G, B, A uint8
}

// Parse converts one chat line into a PixelCommand. The line is split on the
// space character and every token must be a non-negative decimal integer;
// anything else rejects the whole line. Valid token counts are 5 (alpha
// implied 255) or, when allowAlpha is set, 6 with an explicit alpha.
//
// Integer-only tokenization doubles as a cheap injection guard: no token is
// ever used as a path, format string, or command.
func Parse(line string, allowAlpha bool) (PixelCommand, error) {
	tokens := strings.Split(line, " ")
	values := make([]uint32, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return PixelCommand{}, fmt.Errorf("%w: %q", ErrMalformed, tok)
		}
		values[i] = uint32(v)
	}
	switch {
	case len(values) == 5:
	case len(values) == 6 && allowAlpha:
	default:
		return PixelCommand{}, fmt.Errorf("%w: got %d tokens, want 5 or 6", ErrArityMismatch, len(values))
	}
	for _, c := range values[2:] {
		if c > 255 {
			return PixelCommand{}, fmt.Errorf("%w: %d", ErrColorOutOfRange, c)
		}
	}
	cmd := PixelCommand{
		X: values[0],
		Y: values[1],
		R: uint8(values[2]),
		G: uint8(values[3]),
		B: uint8(values[4]),
		A: 255,
	}
	if len(values) == 6 {
		cmd.A = uint8(values[5])
	}
	return cmd, nil
}

// Reason maps a parse error to a short stable label suitable for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrArityMismatch):
		return "arity"
	case errors.Is(err, ErrColorOutOfRange):
		return "color_range"
	default:
		return "other"
	}
}
