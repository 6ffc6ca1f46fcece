// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pixels

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrDecode is matched (with errors.Is) by every DecodeError.
var ErrDecode = errors.New("failed to decode image")

// DecodeError is returned when an image file or a binary cache file cannot be read or decoded.
type DecodeError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) true for any DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// DecodeFile reads and decodes the image file (any format registered with the image package,
// PNG in particular) into an Array in the ChannelsLast layout.
//
// It returns a *DecodeError if the file can't be read or decoded.
func DecodeFile(filePath string) (*Array, error) {
	img, err := imaging.Open(filePath)
	if err != nil {
		return nil, &DecodeError{Path: filePath, Err: err}
	}
	return FromImage(img), nil
}

// SaveImage writes the array as an image file, with the format chosen from the file extension (e.g.: ".png").
func SaveImage(a *Array, filePath string) error {
	img, err := a.ToImage()
	if err != nil {
		return err
	}
	if err = imaging.Save(img, filePath); err != nil {
		return errors.Wrapf(err, "failed to save image to %q", filePath)
	}
	return nil
}

// Encode writes the array in the binary format: it's lossless, Decode recovers exactly the same array.
func Encode(w io.Writer, a *Array) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := gob.NewEncoder(w).Encode(a); err != nil {
		return errors.Wrap(err, "failed to encode pixels.Array")
	}
	return nil
}

// Decode reads an array written by Encode.
func Decode(r io.Reader) (*Array, error) {
	a := &Array{}
	if err := gob.NewDecoder(r).Decode(a); err != nil {
		return nil, errors.Wrap(err, "failed to decode pixels.Array")
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Save writes the array in the binary format to filePath, see Encode.
func Save(a *Array, filePath string) (err error) {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "failed to close %q", filePath)
		}
	}()
	w := bufio.NewWriter(f)
	if err = Encode(w, a); err != nil {
		return errors.WithMessagef(err, "while saving %q", filePath)
	}
	if err = w.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write %q", filePath)
	}
	return nil
}

// Load reads an array saved with Save.
//
// It returns a *DecodeError if the file can't be read or decoded.
func Load(filePath string) (*Array, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, &DecodeError{Path: filePath, Err: err}
	}
	defer func() { _ = f.Close() }()
	a, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, &DecodeError{Path: filePath, Err: err}
	}
	return a, nil
}
