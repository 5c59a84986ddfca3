package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jbpuryear/dakka/internal/config"
	"github.com/jbpuryear/dakka/internal/vm"
	dakka "github.com/jbpuryear/dakka/pkg/embed"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

const usage = `Usage: dakka [flags] <script%s> [number...]

Runs a script, updating it until every thread has finished or max_ticks
updates have passed. Numbers after the script are passed to its args.

Flags:
`

var (
	configPath = flag.String("config", "", "runner configuration (default: dakka.yaml next to the script or above)")
	disasm     = flag.Bool("disasm", false, "print the bytecode before running")
	realtime   = flag.Bool("realtime", false, "wait one tick of wall time between updates")
)

func main() {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r) // Re-panic to get stack trace
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage, config.SourceFileExt)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(flag.Arg(0), flag.Args()[1:], os.Stdout, os.Stderr))
}

// run executes the script at path and returns the exit code.
func run(path string, rawArgs []string, stdout, stderr io.Writer) int {
	p := newPrinter(stderr)

	cfg, err := loadConfig(path)
	if err != nil {
		p.fail(err)
		return 1
	}
	args, err := parseArgs(rawArgs)
	if err != nil {
		p.fail(err)
		return 2
	}
	src, err := os.ReadFile(path)
	if err != nil {
		p.fail(fmt.Errorf("reading input: %w", err))
		return 1
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(cfg.Level())
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: !p.color,
		ForceColors:   p.color,
	})

	v, err := newVM(cfg, logger, stdout)
	if err != nil {
		p.fail(err)
		return 1
	}

	failed := false
	v.OnError(func(target interface{}, err error) {
		failed = true
		p.diagnostic(err)
	})
	v.OnSpawn(func(obj interface{}) {
		logger.WithField("object", fmt.Sprintf("%T", obj)).Debug("spawned")
	})

	script, err := v.Compile(string(src))
	if err != nil {
		p.diagnostics(err)
		return 1
	}
	if *disasm || cfg.Disassemble {
		fmt.Fprint(stdout, script.Disassemble())
	}

	onReturn := func(res interface{}) {
		if res != nil {
			fmt.Fprintln(stdout, formatValue(res))
		}
	}
	if _, err := v.RunFunc(script, nil, onReturn, args...); err != nil {
		// Errors from the scheduler already went through OnError.
		if !failed {
			p.diagnostic(err)
		}
		return 1
	}

	tick := time.Duration(cfg.Tick * float64(time.Millisecond))
	ticks := 0
	for ; ticks < cfg.MaxTicks && v.ThreadCount() > 0; ticks++ {
		if *realtime {
			time.Sleep(tick)
		}
		v.Update(cfg.Tick)
	}
	if n := v.ThreadCount(); n > 0 {
		logger.WithFields(logrus.Fields{"threads": n, "ticks": ticks}).Warn("stopped with threads still running")
		v.KillAll()
	}

	if failed {
		return 1
	}
	return 0
}

func loadConfig(scriptPath string) (*config.Config, error) {
	path := *configPath
	if path == "" {
		found, err := config.FindConfig(filepath.Dir(scriptPath))
		if err != nil {
			return nil, err
		}
		if found == "" {
			return config.Default(), nil
		}
		path = found
	}
	return config.LoadConfig(path)
}

func parseArgs(raw []string) ([]interface{}, error) {
	args := make([]interface{}, len(raw))
	for i, s := range raw {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %q is not a number", i+1, s)
		}
		args[i] = n
	}
	return args, nil
}

// newVM builds a VM with the default natives, print, the configured
// constants and one property-map type per configured type key.
func newVM(cfg *config.Config, logger *logrus.Logger, stdout io.Writer) (*dakka.VM, error) {
	v := dakka.New(
		dakka.WithLogger(logger),
		dakka.WithLimits(cfg.MaxFrames, cfg.MaxStack),
		dakka.WithDefaultType(cfg.DefaultType),
	)

	err := v.Bind(config.PrintFuncName, func(args ...interface{}) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = formatValue(a)
		}
		fmt.Fprintln(stdout, strings.Join(parts, " "))
	})
	if err != nil {
		return nil, err
	}

	for name, n := range cfg.Constants {
		if err := v.Bind(name, n); err != nil {
			return nil, err
		}
	}

	m := dakka.NewMarshaller()
	types := cfg.TypeKeys()
	if _, ok := cfg.Types[cfg.DefaultType]; !ok {
		types = append(types, cfg.DefaultType)
	}
	for _, key := range types {
		defaults := make(map[string]vm.Value, len(cfg.Types[key]))
		for prop, raw := range cfg.Types[key] {
			val, err := m.ToValue(raw)
			if err != nil {
				return nil, fmt.Errorf("types.%s.%s: %w", key, prop, err)
			}
			defaults[prop] = val
		}
		err := v.AddType(key, func() interface{} {
			return vm.NewPropertyMap(defaults)
		})
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// printer writes diagnostics, in red on terminals.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok {
		_, noColor := os.LookupEnv("NO_COLOR")
		tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		p.color = tty && !noColor && os.Getenv("TERM") != "dumb"
	}
	return p
}

func (p *printer) diagnostic(msg interface{}) {
	if p.color {
		fmt.Fprintf(p.w, "\x1b[31m%s\x1b[0m\n", msg)
		return
	}
	fmt.Fprintln(p.w, msg)
}

// diagnostics prints each error of a multierror on its own line.
func (p *printer) diagnostics(err error) {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			p.diagnostic(e)
		}
		return
	}
	p.diagnostic(err)
}

func (p *printer) fail(err error) {
	p.diagnostic(fmt.Sprintf("Error: %s", err))
}
