// Package frame converts between wire payloads and types.Frame.
//
// Two inbound shapes are accepted:
//
//	[[[r,g,b], ...], ...]                       bare triples
//	{"Grid": [[{"R":r,"G":g,"B":b}, ...], ...]}  named grid of object pixels
//
// Both decode into the same [row][col] frame. Anything else is a *DecodeError.
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strconv"

	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

var (
	// ErrUnknownShape is returned for payloads that are neither an array nor an object
	ErrUnknownShape = errors.New("payload is neither a triple array nor a grid object")
	// ErrMissingGrid is returned for object payloads without a Grid field
	ErrMissingGrid = errors.New("missing Grid field")
	// ErrTrailingData is returned when anything but whitespace follows the frame
	ErrTrailingData = errors.New("unexpected data after frame")
)

// DecodeError reports a payload that could not be turned into a frame
type DecodeError struct {
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame (%d bytes): %v", len(e.Payload), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses a payload in either accepted shape
func Decode(payload []byte) (types.Frame, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Payload: payload, Err: ErrUnknownShape}
	}

	var (
		f   types.Frame
		err error
	)
	switch trimmed[0] {
	case '[':
		f, err = decodeTriples(trimmed)
	case '{':
		f, err = decodeGrid(trimmed)
	default:
		err = ErrUnknownShape
	}
	if err != nil {
		return nil, &DecodeError{Payload: payload, Err: err}
	}
	return f, nil
}

func decodeTriples(data []byte) (types.Frame, error) {
	var rows [][][]json.Number
	if err := unmarshal(data, &rows); err != nil {
		return nil, err
	}

	f := make(types.Frame, len(rows))
	for j, row := range rows {
		f[j] = make([]types.Pixel, len(row))
		for i, triple := range row {
			if len(triple) != 3 {
				return nil, fmt.Errorf("pixel (%d,%d): expected 3 channels, got %d", j, i, len(triple))
			}
			var ch [3]uint8
			for k, n := range triple {
				v, err := channel(n)
				if err != nil {
					return nil, fmt.Errorf("pixel (%d,%d) channel %d: %w", j, i, k, err)
				}
				ch[k] = v
			}
			f[j][i] = types.Pixel{R: ch[0], G: ch[1], B: ch[2]}
		}
	}
	return f, nil
}

// decodeGrid looks keys up by exact name; encoding/json alone would also
// accept "grid" or "r"
func decodeGrid(data []byte) (types.Frame, error) {
	var msg map[string]json.RawMessage
	if err := unmarshal(data, &msg); err != nil {
		return nil, err
	}
	raw, ok := msg["Grid"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, ErrMissingGrid
	}

	var grid [][]map[string]*json.Number
	if err := unmarshal(raw, &grid); err != nil {
		return nil, fmt.Errorf("field Grid: %w", err)
	}

	f := make(types.Frame, len(grid))
	for j, row := range grid {
		f[j] = make([]types.Pixel, len(row))
		for i, p := range row {
			fields := []struct {
				name string
				dst  *uint8
			}{
				{"R", &f[j][i].R},
				{"G", &f[j][i].G},
				{"B", &f[j][i].B},
			}
			for _, fld := range fields {
				n := p[fld.name]
				if n == nil {
					return nil, fmt.Errorf("pixel (%d,%d): missing field %s", j, i, fld.name)
				}
				v, err := channel(*n)
				if err != nil {
					return nil, fmt.Errorf("pixel (%d,%d) field %s: %w", j, i, fld.name, err)
				}
				*fld.dst = v
			}
		}
	}
	return f, nil
}

// unmarshal decodes exactly one JSON value from data
func unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if len(bytes.TrimSpace(data[dec.InputOffset():])) > 0 {
		return ErrTrailingData
	}
	return nil
}

func channel(n json.Number) (uint8, error) {
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", n.String())
	}
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("%d is outside [0,255]", v)
	}
	return uint8(v), nil
}

// Encode writes a frame in the bare-triples shape
func Encode(f types.Frame) ([]byte, error) {
	data := make([][][3]int, len(f))
	for j, row := range f {
		data[j] = make([][3]int, len(row))
		for i, p := range row {
			data[j][i] = [3]int{int(p.R), int(p.G), int(p.B)}
		}
	}
	return json.Marshal(data)
}

// FromImage converts every pixel of img into a frame, dropping alpha
func FromImage(img *image.RGBA) types.Frame {
	b := img.Bounds()
	f := types.NewFrame(b.Dy(), b.Dx())
	for j := 0; j < b.Dy(); j++ {
		for i := 0; i < b.Dx(); i++ {
			c := img.RGBAAt(b.Min.X+i, b.Min.Y+j)
			f[j][i] = types.Pixel{R: c.R, G: c.G, B: c.B}
		}
	}
	return f
}
