package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"ziavm/zia"

	"github.com/tliron/commonlog"
	"github.com/urfave/cli"

	_ "github.com/tliron/commonlog/simple"
)

// exit codes follow sysexits.h
const (
	exitUsage   = 64
	exitData    = 65
	exitRuntime = 70
	exitIO      = 74
	exitConfig  = 78
)

var (
	version = "0.1.0"

	verbosity  int
	configPath string
	traceExec  bool
	printCode  bool
	stressGC   bool
	logGC      bool
	outputPath string
)

func main() {
	app := cli.NewApp()
	app.Name = "zia"
	app.Usage = "compile and run Zia scripts"
	app.Version = version
	app.ArgsUsage = "[script]"

	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:        "verbose, v",
			Usage:       "log verbosity: 1 for info, 2 for debug",
			Destination: &verbosity,
		},
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "read settings from this zia.toml instead of searching for one",
			Destination: &configPath,
		},
		cli.BoolFlag{
			Name:        "trace",
			Usage:       "log the stack and every instruction as it executes",
			Destination: &traceExec,
		},
		cli.BoolFlag{
			Name:        "print-code",
			Usage:       "log the disassembly of every compiled function",
			Destination: &printCode,
		},
		cli.BoolFlag{
			Name:        "stress-gc",
			Usage:       "collect garbage before every allocation",
			Destination: &stressGC,
		},
		cli.BoolFlag{
			Name:        "log-gc",
			Usage:       "log allocations and collections",
			Destination: &logGC,
		},
	}

	app.Before = func(c *cli.Context) error {
		level := verbosity
		if traceExec || printCode || logGC {
			level = max(level, 2)
		}
		commonlog.Configure(level, nil)
		return nil
	}

	app.Commands = []cli.Command{
		{
			Name:      "run",
			Aliases:   []string{"r"},
			Usage:     "run a script or a compiled .ziac image",
			ArgsUsage: "<script>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return usageError(c, "run expects exactly one script")
				}
				return runPath(c.Args().First())
			},
		},
		{
			Name:   "repl",
			Usage:  "start an interactive session",
			Action: func(c *cli.Context) error { return repl() },
		},
		{
			Name:      "check",
			Usage:     "compile scripts and report errors without running them",
			ArgsUsage: "<script>...",
			Action: func(c *cli.Context) error {
				if c.NArg() == 0 {
					return usageError(c, "check expects at least one script")
				}
				return checkPaths(c.Args())
			},
		},
		{
			Name:      "disasm",
			Usage:     "print the bytecode of a script or image",
			ArgsUsage: "<script>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return usageError(c, "disasm expects exactly one script")
				}
				return disassemblePath(c.Args().First())
			},
		},
		{
			Name:      "build",
			Usage:     "compile a script into a .ziac image",
			ArgsUsage: "<script>",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "output, o",
					Usage:       "image path, defaults to the script name with a .ziac extension",
					Destination: &outputPath,
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return usageError(c, "build expects exactly one script")
				}
				return buildPath(c.Args().First(), outputPath)
			},
		},
	}

	app.Action = func(c *cli.Context) error {
		switch c.NArg() {
		case 0:
			return repl()
		case 1:
			return runPath(c.Args().First())
		default:
			return usageError(c, "too many arguments")
		}
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}

func usageError(c *cli.Context, msg string) error {
	if c.Command.Name == "" {
		cli.ShowAppHelp(c)
	} else {
		cli.ShowCommandHelp(c, c.Command.Name)
	}
	return cli.NewExitError(msg, exitUsage)
}

// loadConfig resolves settings for a script in dir, then applies the
// command line overrides.
func loadConfig(dir string) (*zia.Config, error) {
	var cfg *zia.Config
	var err error
	if configPath != "" {
		cfg, err = zia.LoadConfig(configPath)
	} else {
		cfg, err = zia.FindConfig(dir)
	}
	if err != nil {
		return nil, cli.NewExitError(err.Error(), exitConfig)
	}

	if traceExec {
		cfg.Debug.TraceExecution = true
	}
	if printCode {
		cfg.Debug.PrintCode = true
	}
	if stressGC {
		cfg.GC.Stress = true
	}
	if logGC {
		cfg.GC.Log = true
	}
	if cfg.Path != "" {
		commonlog.GetLogger("zia").Infof("using config %s", cfg.Path)
	}
	return cfg, nil
}

func newVM(cfg *zia.Config) (*zia.VM, error) {
	vm := zia.NewVMWithConfig(cfg)
	if err := vm.LoadBuiltins(); err != nil {
		return nil, err
	}
	return vm, nil
}

// interruptOnSignal turns Ctrl-C into a runtime error in the running
// script. The returned function stops listening.
func interruptOnSignal(vm *zia.VM) func() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigc:
				vm.Interrupt()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigc)
		close(done)
	}
}

func runPath(path string) error {
	cfg, err := loadConfig(filepath.Dir(path))
	if err != nil {
		return err
	}
	vm, err := newVM(cfg)
	if err != nil {
		return cli.NewExitError(err.Error(), exitRuntime)
	}
	defer vm.Free()

	stop := interruptOnSignal(vm)
	defer stop()

	return exitFor(zia.RunFile(vm, path))
}

// exitFor reports err on stderr and maps it to an exit status.
func exitFor(err error) error {
	if err == nil {
		return nil
	}
	fmt.Fprintln(os.Stderr, err)

	var compileErr *zia.CompileError
	var runtimeErr *zia.RuntimeError
	var pathErr *fs.PathError
	code := exitData
	switch {
	case errors.As(err, &compileErr):
		code = exitData
	case errors.As(err, &runtimeErr):
		code = exitRuntime
	case errors.As(err, &pathErr):
		code = exitIO
	}
	return cli.NewExitError("", code)
}

func checkPaths(paths []string) error {
	failed := false
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return cli.NewExitError("", exitIO)
		}
		heap := zia.NewHeap(nil)
		res := zia.CompileSource(filepath.Base(path), string(source), heap)
		heap.FreeAll()
		if res.IsErr() {
			failed = true
			fmt.Fprintf(os.Stderr, "# %s\n", path)
			var compileErr *zia.CompileError
			if errors.As(res.Err, &compileErr) {
				fmt.Fprintln(os.Stderr, compileErr.ShowSource(string(source)))
			} else {
				fmt.Fprintln(os.Stderr, res.Err)
			}
		}
	}
	if failed {
		return cli.NewExitError("", exitData)
	}
	return nil
}

func disassemblePath(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return exitFor(err)
	}
	if !zia.IsImagePath(path) {
		return exitFor(zia.DisassembleAndShow(os.Stdout, filepath.Base(path), string(data)))
	}

	heap := zia.NewHeap(nil)
	defer heap.FreeAll()
	fn, err := zia.DecodeFunction(heap, data)
	if err != nil {
		return exitFor(err)
	}
	zia.DisassembleFunction(os.Stdout, fn)
	return nil
}

func buildPath(path, output string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return exitFor(err)
	}
	data, err := zia.BuildImage(filepath.Base(path), string(source))
	if err != nil {
		return exitFor(err)
	}
	if output == "" {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + zia.ImageExt
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return exitFor(err)
	}
	commonlog.GetLogger("zia").Infof("wrote %s (%d bytes)", output, len(data))
	return nil
}
