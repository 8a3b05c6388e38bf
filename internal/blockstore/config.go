package blockstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mbatko/messif-go/pkg/errors"
	"github.com/mbatko/messif-go/pkg/filesys"
	"github.com/mbatko/messif-go/pkg/options"
	"github.com/mbatko/messif-go/pkg/serializator"
	"go.uber.org/zap"
)

// Config carries everything Open needs: the resolved options and a logger,
// following the teacher's Config{Options, Logger} constructor shape.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// resolvedConfig is Config reduced to the concrete values Open and its
// helpers act on, with defaults applied and the target path computed.
type resolvedConfig struct {
	path          string
	start         uint64
	maximalLength uint64
	bufferSize    uint32
	asyncThreads  uint32
	readOnly      bool
	oneStorage    bool
	directBuffer  bool
	fingerprint   uint32
	serializator  serializator.Serializator
}

func resolve(cfg *Config) (resolvedConfig, *zap.SugaredLogger, error) {
	if cfg == nil || cfg.Options == nil || cfg.Logger == nil {
		return resolvedConfig{}, nil, errors.NewConfigurationValidationError("Config", "Options and Logger are required")
	}
	o := *cfg.Options

	defaults := options.NewDefaultOptions()
	if o.BufferSize == 0 {
		o.BufferSize = defaults.BufferSize
	}
	if o.AsyncThreads == 0 {
		o.AsyncThreads = defaults.AsyncThreads
	}
	if o.MaximalLength == 0 {
		o.MaximalLength = defaults.MaximalLength
	}
	if o.Dir == "" {
		o.Dir = defaults.Dir
	}

	if o.Serializator == nil {
		return resolvedConfig{}, nil, errors.NewConfigurationValidationError("Serializator", "a serializator with registered codecs is required; class names alone cannot synthesize one")
	}

	path, err := resolvePath(&o)
	if err != nil {
		return resolvedConfig{}, nil, err
	}

	rc := resolvedConfig{
		path:          path,
		start:         o.StartPosition,
		maximalLength: o.MaximalLength,
		bufferSize:    o.BufferSize,
		asyncThreads:  o.AsyncThreads,
		readOnly:      o.ReadOnly,
		oneStorage:    o.OneStorage,
		directBuffer:  o.DirectBuffer,
		fingerprint:   o.Serializator.Fingerprint(),
		serializator:  o.Serializator,
	}
	return rc, cfg.Logger, nil
}

// resolvePath returns Options.File directly, or a generated temp name under
// Options.Dir, creating Dir if necessary.
func resolvePath(o *options.Options) (string, error) {
	if file := strings.TrimSpace(o.File); file != "" {
		return file, nil
	}
	if err := filesys.CreateDir(o.Dir, 0755, true); err != nil {
		return "", errors.ClassifyDirectoryCreationError(err, o.Dir)
	}
	name, err := generateSegmentName()
	if err != nil {
		return "", errors.NewStorageError(err, errors.ErrorCodeIO, "failed to generate segment name")
	}
	return filepath.Join(o.Dir, name), nil
}

func generateSegmentName() (string, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s.ds", options.DefaultFilePrefix, hex.EncodeToString(suffix[:])), nil
}
