package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/pthm/hxctl"
	"github.com/pthm/hxctl/lib/config"
	"github.com/pthm/hxctl/lib/dom"
	"github.com/pthm/hxctl/lib/generator"
)

type common struct {
	configPath string
	verbosity  int
}

func (c *common) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	fs.IntVarP(&c.verbosity, "verbosity", "v", 0, "log verbosity")
}

// setup loads the configuration and builds the logger.
func (a *app) setup(fs *pflag.FlagSet, c *common) (config.Config, logr.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.Load(a.fs, c.configPath)
	} else {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return config.Config{}, logr.Discard(), err
	}
	if fs.Changed("verbosity") {
		cfg.Log.Verbosity = c.verbosity
	}

	log := funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(a.stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(a.stderr, args)
	}, funcr.Options{Verbosity: cfg.Log.Verbosity})
	return cfg, log, nil
}

func (a *app) parse(name string, args []string, extra func(*pflag.FlagSet)) (*pflag.FlagSet, *common, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	c := &common{}
	c.bind(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return fs, c, nil
}

func (a *app) loadDocument(fs *pflag.FlagSet) (*dom.Document, error) {
	if fs.NArg() != 1 {
		return nil, errors.New("expected exactly one FILE argument")
	}
	f, err := a.fs.Open(fs.Arg(0))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := dom.Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s", fs.Arg(0))
	}
	return doc, nil
}

type inspected struct {
	Controls []inspectedControl `yaml:"controls"`
	MaxIDs   map[string]int     `yaml:"max_ids"`
}

type inspectedControl struct {
	ID     string `yaml:"id"`
	Type   string `yaml:"type"`
	Parent string `yaml:"parent,omitempty"`
	Depth  int    `yaml:"-"`
}

func (a *app) runInspect(args []string) error {
	var asYAML bool
	fs, c, err := a.parse("inspect", args, func(fs *pflag.FlagSet) {
		fs.BoolVar(&asYAML, "yaml", false, "print YAML instead of a tree")
	})
	if err != nil {
		return err
	}
	cfg, log, err := a.setup(fs, c)
	if err != nil {
		return err
	}
	page, err := hxctl.FromConfig(cfg, hxctl.WithLogger(log))
	if err != nil {
		return err
	}
	doc, err := a.loadDocument(fs)
	if err != nil {
		return err
	}

	nodes, max := page.Discover(doc.Root())
	out := inspected{MaxIDs: max}
	depth := make(map[string]int, len(nodes))
	for _, n := range nodes {
		d := 0
		if n.Parent != "" {
			d = depth[n.Parent] + 1
		}
		depth[n.ID] = d
		out.Controls = append(out.Controls, inspectedControl{ID: n.ID, Type: n.Type, Parent: n.Parent, Depth: d})
	}

	if asYAML {
		return writeYAML(a.stdout, out)
	}
	for _, ctl := range out.Controls {
		fmt.Fprintf(a.stdout, "%s%s (%s)\n", strings.Repeat("  ", ctl.Depth), ctl.ID, ctl.Type)
	}
	if len(max) > 0 {
		fmt.Fprintln(a.stdout, "next ids:")
		for _, typ := range sortedTypes(max) {
			fmt.Fprintf(a.stdout, "  %s_%d\n", typ, max[typ]+1)
		}
	}
	return nil
}

type activated struct {
	Discovered int            `yaml:"discovered"`
	Created    int            `yaml:"created"`
	Rebound    int            `yaml:"rebound"`
	Fallbacks  int            `yaml:"fallbacks"`
	Activated  int            `yaml:"activated"`
	MaxIDs     map[string]int `yaml:"max_ids"`
}

func (a *app) runActivate(args []string) error {
	var metrics, render bool
	fs, c, err := a.parse("activate", args, func(fs *pflag.FlagSet) {
		fs.BoolVar(&metrics, "metrics", false, "print activation metrics")
		fs.BoolVar(&render, "render", false, "re-render the activated root controls")
	})
	if err != nil {
		return err
	}
	cfg, log, err := a.setup(fs, c)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	page, err := hxctl.FromConfig(cfg, hxctl.WithLogger(log), hxctl.WithMetrics(hxctl.NewMetrics(reg)))
	if err != nil {
		return err
	}
	doc, err := a.loadDocument(fs)
	if err != nil {
		return err
	}

	report, err := hxctl.Activate(page, doc.Root())
	if err != nil {
		return err
	}
	if err := writeYAML(a.stdout, activated(*report)); err != nil {
		return err
	}

	if render {
		for _, ctl := range page.Controls() {
			if ctl.Core().Parent() != nil {
				continue
			}
			html, err := hxctl.RenderString(ctl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, html)
		}
	}
	if metrics {
		return writeMetrics(a.stdout, reg)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) runEncode(args []string) error {
	fs, c, err := a.parse("encode", args, nil)
	if err != nil {
		return err
	}
	cfg, _, err := a.setup(fs, c)
	if err != nil {
		return err
	}
	codec, err := cfg.Codec()
	if err != nil {
		return err
	}

	var input []byte
	if fs.NArg() > 0 {
		input = []byte(strings.Join(fs.Args(), " "))
	} else if input, err = io.ReadAll(a.stdin); err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(input, &fields); err != nil {
		return errors.Wrap(err, "input must be a JSON object")
	}

	encoded, err := codec.Encode(fields)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, encoded)
	return nil
}

func (a *app) runDecode(args []string) error {
	fs, c, err := a.parse("decode", args, nil)
	if err != nil {
		return err
	}
	cfg, _, err := a.setup(fs, c)
	if err != nil {
		return err
	}
	codec, err := cfg.Codec()
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected exactly one PAYLOAD argument")
	}

	fields, err := codec.Decode(fs.Arg(0))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, string(out))
	return nil
}

func (a *app) runGenerate(args []string) error {
	gen, patterns, err := a.generator("generate", args)
	if err != nil {
		return err
	}
	return gen.Generate(patterns...)
}

func (a *app) runClean(args []string) error {
	gen, patterns, err := a.generator("clean", args)
	if err != nil {
		return err
	}
	return gen.Clean(patterns...)
}

func (a *app) generator(name string, args []string) (*generator.Generator, []string, error) {
	var dryRun bool
	fs, c, err := a.parse(name, args, func(fs *pflag.FlagSet) {
		fs.BoolVar(&dryRun, "dry-run", false, "show what would change without writing files")
	})
	if err != nil {
		return nil, nil, err
	}
	_, log, err := a.setup(fs, c)
	if err != nil {
		return nil, nil, err
	}

	patterns := fs.Args()
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	return generator.New(generator.Options{DryRun: dryRun, Fs: a.fs, Log: log}), patterns, nil
}

func sortedTypes(m map[string]int) []string {
	types := make([]string, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
