// Package dwarfserr collects the sentinel errors shared across dwarfs-go.
// Components wrap one of these with fmt.Errorf("%w", ...) and callers
// compare with errors.Is, never by matching strings.
package dwarfserr

import "errors"

var (
	// ErrUnknownAlgorithm is returned when a compressor spec names an
	// algorithm keyword this build does not recognise at all.
	ErrUnknownAlgorithm = errors.New("dwarfserr: unknown compression algorithm")

	// ErrUnsupportedAlgorithm is returned when the algorithm is recognised
	// but this build was not compiled with the backing library for it.
	ErrUnsupportedAlgorithm = errors.New("dwarfserr: unsupported compression algorithm")

	// ErrBadParameter is returned for malformed compressor specs, flag
	// values, or configuration fields.
	ErrBadParameter = errors.New("dwarfserr: bad parameter")

	// ErrCorruptInput is returned by a compressor's decompress path when
	// the payload does not match its own framing.
	ErrCorruptInput = errors.New("dwarfserr: corrupt compressed input")

	// ErrCorruptImage is returned when an on-disk image fails a structural
	// or integrity check (bad section kind, truncated trailer, checksum
	// mismatch).
	ErrCorruptImage = errors.New("dwarfserr: corrupt image")

	// ErrInvalidPath is returned by metadata lookups for paths that are
	// empty, escape the tree, or resolve through a non-directory.
	ErrInvalidPath = errors.New("dwarfserr: invalid path")

	// ErrFilterError is returned when the user-scriptable order=script
	// plug-in fails or returns a malformed response.
	ErrFilterError = errors.New("dwarfserr: filter plug-in error")
)
