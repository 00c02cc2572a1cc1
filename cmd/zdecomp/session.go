package main

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/zdecomp/config"
	log "github.com/colorfulnotion/zdecomp/log"
	"github.com/colorfulnotion/zdecomp/storage"
	"github.com/colorfulnotion/zdecomp/zvm"
	"github.com/colorfulnotion/zdecomp/zvm/program"
)

// globalOptions are the flags shared by every sub-command.
type globalOptions struct {
	configPath string
	logLevel   string
	debug      string
	cacheDir   string
	maxBlock   int
}

// story is a loaded story file and the session decompiling it.
type story struct {
	cfg    config.Config
	header *program.Header
	d      *zvm.Decompiler
	store  *storage.FragmentStore
}

func (s *story) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// resolveConfig layers defaults, the TOML file and the command line.
func resolveConfig(opts *globalOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.debug != "" {
		cfg.Debug = opts.debug
	}
	if opts.cacheDir != "" {
		cfg.CacheDir = opts.cacheDir
	}
	if opts.maxBlock > 0 {
		cfg.MaxBlockInstructions = opts.maxBlock
	}
	return cfg, nil
}

func setupLogging(cfg config.Config) error {
	if err := log.InitLogger(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.Debug != "" {
		log.EnableModules(cfg.Debug)
	}
	return nil
}

// openStory reads a story file and builds a session sized for it.
func openStory(opts *globalOptions, path string) (*story, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read story %s: %w", path, err)
	}
	header, err := program.ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("story %s: %w", path, err)
	}
	cfg.ApplyHeader(header, len(data))

	d, err := zvm.NewDecompiler(cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Load(data); err != nil {
		return nil, err
	}

	s := &story{cfg: cfg, header: header, d: d}
	if cfg.CacheDir != "" {
		if s.store, err = storage.NewFragmentStore(cfg.CacheDir); err != nil {
			return nil, err
		}
		d.SetStore(s.store)
	}
	log.Info(log.CLIMonitoring, "story loaded", "path", path, "version", header.Version, "bytes", len(data), "pc", header.InitialPC)
	return s, nil
}

// entry returns addr, or the story's initial PC when addr is negative.
func (s *story) entry(addr int64) uint32 {
	if addr < 0 {
		return s.header.InitialPC
	}
	return uint32(addr)
}
