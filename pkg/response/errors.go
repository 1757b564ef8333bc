package response

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat reports a malformed record: a short read on a framing
	// field or a declared payload size above the safety ceiling.
	ErrFormat = errors.New("response: malformed record")

	// ErrTypeMismatch reports that the decoded wire tag differs from the
	// tag of the kind the caller expected. Use errors.Is against this
	// sentinel; the concrete error is a *TypeMismatchError.
	ErrTypeMismatch = errors.New("response: wrong record type")

	// ErrBufferTooSmall reports a payload larger than the caller's buffer.
	ErrBufferTooSmall = errors.New("response: data bigger than buffer")

	// ErrUnsupportedConversion reports a JSON-mode decode of a kind the
	// JSON path cannot reconstruct.
	ErrUnsupportedConversion = errors.New("response: conversion not supported")
)

// TypeMismatchError carries the expected and decoded tags plus the session's
// tool hint for diagnostics. The record stays pending after the error, so a
// subsequent ReadExpected with the right kind succeeds.
type TypeMismatchError struct {
	Expected Kind
	GotTag   int32
	Tool     string
}

func (e *TypeMismatchError) Error() string {
	tool := e.Tool
	if tool == "" {
		tool = "unknown"
	}
	return fmt.Sprintf("response: wrong type, expected %d (%s), got %d - tool: %s",
		e.Expected.WireTag(), e.Expected, e.GotTag, tool)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// WriteError reports an output failure while appending a record. Any write
// failure is unrecoverable for the session; the writer stays failed.
type WriteError struct {
	Kind Kind
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("response: writing %s record: %v", e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
