package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/gridcap/ipc"
	"github.com/justapithecus/gridcap/log"
	"github.com/justapithecus/gridcap/types"
)

const (
	defaultBanner = "Server started."
	stopCommand   = "stop"
)

var defaultCatalog = []string{
	"minecraft:stone",
	"minecraft:granite",
	"minecraft:diorite",
	"minecraft:andesite",
	"minecraft:grass_block",
	"minecraft:dirt",
	"minecraft:cobblestone",
	"minecraft:oak_planks",
	"minecraft:sand",
	"minecraft:gravel",
	"minecraft:gold_ore",
	"minecraft:iron_ore",
}

type serverConfig struct {
	Catalog    []string
	PageSize   int
	LinePrefix string
	Banner     string
	Delay      time.Duration
	// Log receives diagnostics. Stdout carries protocol lines only.
	Log *log.SugaredLogger
}

type server struct {
	config serverConfig
	log    *log.SugaredLogger
}

func newServer(cfg serverConfig) (*server, error) {
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.Nop().Sugar()
	}
	return &server{config: cfg, log: logger}, nil
}

// entries returns the slot announcements for page. Slots are page-relative.
func (s *server) entries(page int) []types.SlotNameEvent {
	start := page * s.config.PageSize
	if page < 0 || start >= len(s.config.Catalog) {
		return nil
	}
	end := min(start+s.config.PageSize, len(s.config.Catalog))

	events := make([]types.SlotNameEvent, 0, end-start)
	for i, name := range s.config.Catalog[start:end] {
		events = append(events, types.SlotNameEvent{Slot: i, Name: name})
	}
	return events
}

// serve answers requests from in until the stop command or EOF.
func (s *server) serve(in io.Reader, out io.Writer) error {
	if s.config.Banner != "" {
		if _, err := fmt.Fprintln(out, s.config.Banner); err != nil {
			return err
		}
	}

	reader := ipc.NewLineReader(in)
	for {
		line, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, ipc.ErrLineTooLong) {
			s.log.Warnf("skipped command over %d bytes", ipc.MaxLineSize)
			continue
		}
		if err != nil {
			return err
		}

		cmd := strings.TrimSpace(line)
		if cmd == "" {
			continue
		}
		if cmd == stopCommand {
			_, err := fmt.Fprintln(out, "Quit correctly")
			return err
		}

		req, ok := ipc.ParsePageRequest(cmd)
		if !ok {
			s.log.Warnf("unknown command: %s", cmd)
			continue
		}
		s.log.Debugf("answering page %d", req.Page)
		if s.config.Delay > 0 {
			time.Sleep(s.config.Delay)
		}
		if err := s.answer(out, req.Page); err != nil {
			return err
		}
	}
}

func (s *server) answer(out io.Writer, page int) error {
	for _, ev := range s.entries(page) {
		if err := s.emit(out, ipc.FormatSlotName(ev)); err != nil {
			return err
		}
	}
	return s.emit(out, ipc.FormatPageComplete(page))
}

func (s *server) emit(out io.Writer, line string) error {
	_, err := fmt.Fprintf(out, "%s%s\n", s.config.LinePrefix, line)
	return err
}

// loadCatalog reads a YAML sequence of namespaced ids.
func loadCatalog(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var ids []string
	if err := yaml.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	catalog := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			catalog = append(catalog, id)
		}
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("catalog %s has no entries", path)
	}
	return catalog, nil
}
