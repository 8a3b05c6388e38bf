// Package options provides data structures and functions for configuring a
// storage instance. It defines the parameters that control segment
// placement, I/O buffering strategy, access mode, and which serializator a
// storage opens its objects with.
package options

import (
	"strings"

	"github.com/mbatko/messif-go/pkg/serializator"
)

// Options holds the configuration parameters for opening a storage.
type Options struct {
	// File is a direct path to the segment file. Takes precedence over Dir.
	//
	// Default: "" (unset; Dir is used instead)
	File string `json:"file"`

	// Dir is the directory under which a temp name "disk_storage_XXXX.ds" is
	// created when File is unset.
	//
	// Default: "/var/lib/messif"
	Dir string `json:"dir"`

	// BufferSize is the size, in bytes, of the I/O buffer a buffered cursor
	// reads and writes through.
	//
	// Default: 16 KiB
	BufferSize uint32 `json:"bufferSize"`

	// DirectBuffer makes a standalone segment use memory-mapped I/O instead
	// of buffered file reads and writes. The file is then pre-sized to
	// StartPosition+MaximalLength when the segment is created.
	//
	// Default: false
	DirectBuffer bool `json:"directBuffer"`

	// AsyncThreads is the worker-pool size for an asynchronous cursor.
	//
	// Default: 128
	AsyncThreads uint32 `json:"asyncThreads"`

	// ReadOnly rejects store/remove; header recovery still runs, but only
	// in memory.
	//
	// Default: false
	ReadOnly bool `json:"readOnly"`

	// StartPosition is the first byte of this storage's segment within its
	// file, allowing multiple storages to cohabit one file.
	//
	// Default: 0
	StartPosition uint64 `json:"startPosition"`

	// MaximalLength bounds the segment's capacity, header included.
	//
	// Default: 1 GiB
	MaximalLength uint64 `json:"maximalLength"`

	// OneStorage requests that a previously constructed handle for the same
	// resolved file be returned, with its reference count incremented,
	// instead of opening a second handle onto the same file.
	//
	// Default: false
	OneStorage bool `json:"oneStorage"`

	// CacheClasses lists class names for the caching serializator. Opening
	// a storage does not read it and does not build a serializator from
	// these names; Serializator must be set.
	//
	// Default: nil
	CacheClasses []string `json:"cacheClasses"`

	// Serializator is the serializator the storage encodes and decodes its
	// records with. Opening a storage without one fails.
	//
	// Default: nil
	Serializator serializator.Serializator `json:"-"`
}

// OptionFunc is a function type that modifies a storage's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions resets Dir, BufferSize, AsyncThreads, and
// MaximalLength to their default values.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		defaults := NewDefaultOptions()
		o.Dir = defaults.Dir
		o.BufferSize = defaults.BufferSize
		o.AsyncThreads = defaults.AsyncThreads
		o.MaximalLength = defaults.MaximalLength
	}
}

// WithFile sets a direct path to the segment file, overriding Dir.
func WithFile(path string) OptionFunc {
	return func(o *Options) {
		path = strings.TrimSpace(path)
		if path != "" {
			o.File = path
		}
	}
}

// WithDir sets the directory a temp-named segment file is created under.
func WithDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.Dir = directory
		}
	}
}

// WithBufferSize sets the I/O buffer size used by a buffered cursor.
func WithBufferSize(size uint32) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.BufferSize = size
		}
	}
}

// WithDirectBuffer selects memory-mapped I/O for a standalone segment (see
// Options.DirectBuffer).
func WithDirectBuffer(direct bool) OptionFunc {
	return func(o *Options) {
		o.DirectBuffer = direct
	}
}

// WithAsyncThreads sets the worker-pool size for an asynchronous cursor.
func WithAsyncThreads(threads uint32) OptionFunc {
	return func(o *Options) {
		if threads > 0 {
			o.AsyncThreads = threads
		}
	}
}

// WithReadOnly opens the storage read-only: store/remove are rejected.
func WithReadOnly(readOnly bool) OptionFunc {
	return func(o *Options) {
		o.ReadOnly = readOnly
	}
}

// WithStartPosition sets the first byte of this storage's segment within
// its file, for storages that share one file with others.
func WithStartPosition(pos uint64) OptionFunc {
	return func(o *Options) {
		o.StartPosition = pos
	}
}

// WithMaximalLength bounds the segment's capacity, header included.
func WithMaximalLength(length uint64) OptionFunc {
	return func(o *Options) {
		if length > 0 {
			o.MaximalLength = length
		}
	}
}

// WithOneStorage requests handle sharing: a previously constructed handle
// for the same resolved file is returned, reference-counted, instead of a
// second handle being opened.
func WithOneStorage(one bool) OptionFunc {
	return func(o *Options) {
		o.OneStorage = one
	}
}

// WithCacheClasses records class names for the caching serializator. Opening
// a storage does not read them; a serializator is still set with
// WithSerializator.
func WithCacheClasses(classes ...string) OptionFunc {
	return func(o *Options) {
		if len(classes) > 0 {
			o.CacheClasses = classes
		}
	}
}

// WithSerializator sets the serializator the storage encodes records with.
func WithSerializator(s serializator.Serializator) OptionFunc {
	return func(o *Options) {
		if s != nil {
			o.Serializator = s
		}
	}
}
