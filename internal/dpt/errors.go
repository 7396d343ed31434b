package dpt

import "errors"

var (
	// ErrEncodingFailed is returned when a value cannot be represented in
	// the requested datapoint type (out of range, wrong shape).
	ErrEncodingFailed = errors.New("dpt: encoding failed")

	// ErrDecodingFailed is returned when raw bytes cannot be decoded as
	// the requested datapoint type (too short, sentinel/invalid pattern).
	ErrDecodingFailed = errors.New("dpt: decoding failed")

	// ErrUnknownDPT is returned when the registry has no codec for the
	// requested identifier.
	ErrUnknownDPT = errors.New("dpt: unknown datapoint type")
)
