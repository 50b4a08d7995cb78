// Copyright 2025 zhengshuai.xiao@outlook.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
package dedup

import (
	"errors"
	"fmt"

	fastcdc "github.com/zhengshuai-xiao/git-fastcdc/pkg/cdc"
)

// Failure kinds. Every error returned by this package matches exactly one
// of them with errors.Is, except ErrMissingChunk which also matches
// ErrNotFound.
var (
	ErrInvalidConfig   = fastcdc.ErrInvalidConfig
	ErrStreamRead      = fastcdc.ErrStreamRead
	ErrStoreWrite      = errors.New("chunk store write failed")
	ErrNotFound        = errors.New("chunk not found")
	ErrMissingChunk    = errors.New("missing chunk")
	ErrCorruptChunk    = errors.New("corrupt chunk")
	ErrCorruptManifest = errors.New("corrupt manifest")
)

// ErrReadOnly is the cause of a StoreWrite failure on a read-only store.
var ErrReadOnly = errors.New("store is read-only")

// DigestError names the chunk a failure is about.
type DigestError struct {
	Kind   error
	Digest Digest
	Err    error
}

func (e *DigestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v %s", e.Kind, e.Digest)
	}
	return fmt.Sprintf("%v %s: %v", e.Kind, e.Digest, e.Err)
}

func (e *DigestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// PathError names the file a failure is about.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func notFound(d Digest, err error) error {
	return &DigestError{Kind: ErrNotFound, Digest: d, Err: err}
}

// MissingChunk reports a manifest entry whose chunk is absent from the store.
func MissingChunk(d Digest) error {
	return &DigestError{Kind: ErrMissingChunk, Digest: d, Err: ErrNotFound}
}

// CorruptChunk reports an entry that cannot be decoded or does not hash to
// its name.
func CorruptChunk(d Digest, format string, args ...any) error {
	return &DigestError{Kind: ErrCorruptChunk, Digest: d, Err: fmt.Errorf(format, args...)}
}

func corruptManifest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptManifest, fmt.Sprintf(format, args...))
}

func storeWrite(op, path string, err error) error {
	return fmt.Errorf("%w: %w", ErrStoreWrite, &PathError{Op: op, Path: path, Err: err})
}

// Kinds lists the failure kinds from most to least specific, the order in
// which callers mapping errors to codes should test them.
var Kinds = []error{
	ErrInvalidConfig,
	ErrStreamRead,
	ErrStoreWrite,
	ErrMissingChunk,
	ErrNotFound,
	ErrCorruptChunk,
	ErrCorruptManifest,
}

// KindOf returns the failure kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
