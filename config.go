// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// config is assembled from, in increasing precedence:
// built-in defaults, the YAML file named by PSARC_CONFIG, environment variables, flags.
type config struct {
	CacheMB  int     `yaml:"cache_mb"`  // decompressed block cache, PSARC_CACHE_MB
	Index    string  `yaml:"index"`     // pebble directory, PSARC_INDEX
	Workers  int     `yaml:"workers"`   // TOC row decoders
	Strict   bool    `yaml:"strict"`    // no block-length table allowed
	UnwrapGB float64 `yaml:"unwrap_gb"` // largest .psarc.gz or .psarc.xz held in memory, PSARC_UNWRAP_GB
	Addr     string  `yaml:"addr"`      // for serve
}

func defaultConfig() config {
	index := ".psarc-index"
	if dir, err := os.UserCacheDir(); err == nil {
		index = filepath.Join(dir, "psarc", "index")
	}
	return config{
		CacheMB:  64,
		Index:    index,
		Workers:  runtime.NumCPU(),
		UnwrapGB: 1,
		Addr:     ":1993",
	}
}

func loadConfig(getenv func(string) string) (config, error) {
	c := defaultConfig()

	if name := getenv("PSARC_CONFIG"); name != "" {
		data, err := os.ReadFile(name)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) { // empty file is fine
			return c, fmt.Errorf("parse config %s: %w", name, err)
		}
	}

	if e := getenv("PSARC_CACHE_MB"); e != "" {
		n, err := strconv.Atoi(e)
		if err != nil || n < 0 {
			return c, fmt.Errorf("malformed PSARC_CACHE_MB environment variable, should be a number of megabytes: %s", e)
		}
		c.CacheMB = n
	}
	if e := getenv("PSARC_INDEX"); e != "" {
		c.Index = e
	}
	if e := getenv("PSARC_UNWRAP_GB"); e != "" {
		f, err := strconv.ParseFloat(e, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return c, fmt.Errorf("malformed PSARC_UNWRAP_GB environment variable, should be a number of gigabytes: %s", e)
		}
		c.UnwrapGB = f
	}
	return c, c.check()
}

func (c config) check() error {
	switch {
	case c.CacheMB < 0:
		return fmt.Errorf("cache_mb must not be negative: %d", c.CacheMB)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative: %d", c.Workers)
	case math.IsNaN(c.UnwrapGB) || c.UnwrapGB < 0:
		return fmt.Errorf("unwrap_gb must not be negative: %v", c.UnwrapGB)
	}
	return nil
}

func (c config) unwrapLimit() int64 {
	return int64(c.UnwrapGB * 1024 * 1024 * 1024)
}
