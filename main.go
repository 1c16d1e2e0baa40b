// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Command psarc inspects and unpacks PlayStation archives.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/elliotnunn/psarc/internal/blockcache"
	"github.com/elliotnunn/psarc/internal/fileid"
	"github.com/elliotnunn/psarc/internal/psarc"
	"github.com/elliotnunn/psarc/internal/psarcfs"
	"github.com/spf13/pflag"
)

type command struct {
	args string
	help string
	run  func(e *env, args []string) error
}

var commands = map[string]command{
	"summary": {"FILE", "print the header and the first TOC rows", cmdSummary},
	"ls":      {"FILE [GLOB...]", "list the files in an archive", cmdLs},
	"cat":     {"FILE NAME...", "write files from an archive to stdout", cmdCat},
	"extract": {"FILE [GLOB...]", "unpack files from an archive", cmdExtract},
	"serve":   {"FILE", "serve an archive over HTTP", cmdServe},
	"index":   {"[FILE...]", "remember the names in archives, or list remembered archives", cmdIndex},
	"find":    {"GLOB", "look up names in remembered archives", cmdFind},
}

var errUsage = errors.New("usage")

func main() {
	err := run(os.Args[1:], os.Stdout, os.Getenv)
	if errors.Is(err, errUsage) {
		os.Exit(2)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "psarc: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, getenv func(string) string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(os.Stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	cfg, err := loadConfig(getenv)
	if err != nil {
		return err
	}
	e := &env{
		name:   args[0],
		cmd:    cmd,
		cfg:    cfg,
		stdout: stdout,
		flags:  pflag.NewFlagSet(args[0], pflag.ContinueOnError),
	}
	return cmd.run(e, args[1:])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: psarc COMMAND [flags] ARGS")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %-16s %s\n", name, commands[name].args, commands[name].help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "environment: PSARC_CONFIG (YAML file), PSARC_CACHE_MB, PSARC_INDEX, PSARC_UNWRAP_GB")
}

// env is the state of one command invocation
type env struct {
	name   string
	cmd    command
	cfg    config
	stdout io.Writer
	flags  *pflag.FlagSet
	cache  *blockcache.Cache
}

// parse adds the flags common to every command, parses args, sets up logging
// and checks that between atLeast and atMost (-1 for any) arguments remain.
func (e *env) parse(args []string, atLeast, atMost int) ([]string, error) {
	verbose := e.flags.BoolP("verbose", "v", false, "log debug messages")
	e.flags.IntVar(&e.cfg.CacheMB, "cache-mb", e.cfg.CacheMB, "decompressed block cache size")
	e.flags.IntVar(&e.cfg.Workers, "workers", e.cfg.Workers, "goroutines decoding TOC rows")
	e.flags.BoolVar(&e.cfg.Strict, "strict", e.cfg.Strict, "reject a TOC with a block-length table")
	e.flags.Float64Var(&e.cfg.UnwrapGB, "unwrap-gb", e.cfg.UnwrapGB, "largest compressed-wrapped archive to hold in memory")
	e.flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: psarc %s [flags] %s\n", e.name, e.cmd.args)
		e.flags.PrintDefaults()
	}

	if err := e.flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, errUsage
		}
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := e.cfg.check(); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	rest := e.flags.Args()
	if len(rest) < atLeast || atMost >= 0 && len(rest) > atMost {
		e.flags.Usage()
		return nil, fmt.Errorf("%w: psarc %s %s", errUsage, e.name, e.cmd.args)
	}
	if e.cfg.CacheMB > 0 {
		e.cache = blockcache.New(e.cfg.CacheMB << 20 / (64 << 10)) // blocks are usually 64k
	}
	return rest, nil
}

func (e *env) options() psarc.Options {
	return psarc.Options{Strict: e.cfg.Strict, Workers: e.cfg.Workers, Cache: e.cache}
}

// open maps an archive on disk, unwrapping gzip or xz, and reads its manifest.
func (e *env) open(name string) (*psarcfs.FS, io.Closer, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	ra, err := unwrap(f, name, e.cfg.unwrapLimit())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	fsys, err := psarcfs.New(ra, e.options())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return fsys, f, nil
}

func (e *env) logCache() {
	hits, misses := e.cache.Stats()
	slog.Debug("psarcCache", "hits", hits, "misses", misses)
}

func matchAny(globs []string, name string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}

func checkGlobs(globs []string) error {
	for _, g := range globs {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("%w: %q", doublestar.ErrBadPattern, g)
		}
	}
	return nil
}

func cmdSummary(e *env, args []string) error {
	rows := e.flags.IntP("rows", "n", 8, "TOC rows to print")
	args, err := e.parse(args, 1, 1)
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	ra, err := unwrap(f, args[0], e.cfg.unwrapLimit())
	if err != nil {
		return err
	}
	r, err := psarc.NewReader(ra, e.options())
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	printSummary(e.stdout, args[0], r, *rows)
	return nil
}

func cmdLs(e *env, args []string) error {
	long := e.flags.BoolP("long", "l", false, "show size and content hash")
	args, err := e.parse(args, 1, -1)
	if err != nil {
		return err
	}
	if err := checkGlobs(args[1:]); err != nil {
		return err
	}
	fsys, c, err := e.open(args[0])
	if err != nil {
		return err
	}
	defer c.Close()
	return printListing(e.stdout, fsys, args[1:], *long)
}

func cmdCat(e *env, args []string) error {
	args, err := e.parse(args, 2, -1)
	if err != nil {
		return err
	}
	fsys, c, err := e.open(args[0])
	if err != nil {
		return err
	}
	defer c.Close()
	defer e.logCache()
	for _, name := range args[1:] {
		f, err := fsys.Open(strings.TrimPrefix(name, "/"))
		if err != nil {
			return err
		}
		_, err = io.Copy(e.stdout, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func cmdExtract(e *env, args []string) error {
	dest := e.flags.StringP("output", "o", ".", "directory to extract into")
	args, err := e.parse(args, 1, -1)
	if err != nil {
		return err
	}
	globs := args[1:]
	if err := checkGlobs(globs); err != nil {
		return err
	}
	fsys, c, err := e.open(args[0])
	if err != nil {
		return err
	}
	defer c.Close()
	defer e.logCache()

	n := 0
	err = fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !matchAny(globs, name) {
			return err
		}
		if err := extractFile(fsys, name, filepath.Join(*dest, filepath.FromSlash(name))); err != nil {
			return err
		}
		n++
		return nil
	})
	slog.Info("psarcExtracted", "archive", args[0], "files", n, "dest", *dest)
	return err
}

func extractFile(fsys fs.FS, name, dest string) error {
	src, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	return dst.Close()
}

func cmdServe(e *env, args []string) error {
	e.flags.StringVar(&e.cfg.Addr, "addr", e.cfg.Addr, "listen address")
	args, err := e.parse(args, 1, 1)
	if err != nil {
		return err
	}
	fsys, c, err := e.open(args[0])
	if err != nil {
		return err
	}
	defer c.Close()
	slog.Info("psarcServe", "archive", args[0], "addr", e.cfg.Addr)
	return http.ListenAndServe(e.cfg.Addr, http.FileServerFS(fsys))
}

func cmdIndex(e *env, args []string) error {
	e.flags.StringVar(&e.cfg.Index, "db", e.cfg.Index, "index directory")
	args, err := e.parse(args, 0, -1)
	if err != nil {
		return err
	}
	x, err := openIndex(e.cfg.Index)
	if err != nil {
		return err
	}
	defer x.Close()

	if len(args) == 0 {
		list, err := x.archives()
		if err != nil {
			return err
		}
		for _, a := range list {
			fmt.Fprintf(e.stdout, "%s\tv%s\t%d entries\t%d bytes\n", a.Path, a.Version, a.Entries, a.Size)
		}
		return nil
	}

	var errs []error
	for _, name := range args {
		if err := e.indexOne(x, name); err != nil {
			slog.Warn("psarcIndexFailed", "path", name, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *env) indexOne(x *index, name string) error {
	abs, err := filepath.Abs(name)
	if err != nil {
		return err
	}
	id, err := fileid.Get(abs)
	if err != nil {
		return err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return err
	}
	fsys, c, err := e.open(abs)
	if err != nil {
		return err
	}
	defer c.Close()
	r := fsys.Reader()
	names, err := r.Manifest()
	if err != nil {
		return err
	}
	return x.add(id, abs, fi.Size(), r, names)
}

func cmdFind(e *env, args []string) error {
	e.flags.StringVar(&e.cfg.Index, "db", e.cfg.Index, "index directory")
	args, err := e.parse(args, 1, 1)
	if err != nil {
		return err
	}
	x, err := openIndex(e.cfg.Index)
	if err != nil {
		return err
	}
	defer x.Close()
	hits, err := x.find(args[0])
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Fprintf(e.stdout, "%s\t%s\t%d\n", h.Archive, h.Name, h.Size)
	}
	return nil
}
