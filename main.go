// bfnasm compiles brainfuck programs into NASM x86-64 Linux assembly.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bfnasm/pkg/compiler"
	"bfnasm/pkg/utils"

	"github.com/urfave/cli/v2"
)

var (
	fileFlag = &cli.StringFlag{
		Name:      "file",
		Aliases:   []string{"f"},
		Usage:     "source file to compile (default: standard input)",
		TakesFile: true,
	}
	outputFlag = &cli.StringFlag{
		Name:      "output",
		Aliases:   []string{"o"},
		Usage:     "file to write the assembly to (default: standard output)",
		TakesFile: true,
	}
	configFlag = &cli.StringFlag{
		Name:      "config",
		Usage:     "TOML configuration file",
		TakesFile: true,
	}
	tapeSizeFlag = &cli.IntFlag{
		Name:  "tape-size",
		Usage: "number of cells reserved for the tape (1-2147483647)",
		Value: compiler.DefaultTapeSize,
	}
	maxRunFlag = &cli.IntFlag{
		Name:  "max-run",
		Usage: "largest repeat count folded into one instruction (1-255)",
		Value: compiler.DefaultMaxRun,
	}
	statsFlag = &cli.BoolFlag{
		Name:  "stats",
		Usage: "print a compilation report to standard error",
	}
	watchFlag = &cli.BoolFlag{
		Name:  "watch",
		Usage: "recompile whenever the source file changes (requires --file and --output)",
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "log level: debug, info, warn or error",
		Value: "warn",
	}
)

var compileFlags = []cli.Flag{
	fileFlag,
	outputFlag,
	configFlag,
	tapeSizeFlag,
	maxRunFlag,
	statsFlag,
	watchFlag,
	verbosityFlag,
}

// errCompileFailed marks a compile whose diagnostic was already printed.
var errCompileFailed = errors.New("compilation failed")

func newApp() *cli.App {
	return &cli.App{
		Name:        "bfnasm",
		Usage:       "compile brainfuck programs to NASM x86-64 assembly",
		UsageText:   "bfnasm [options] [file]",
		ArgsUsage:   "[file]",
		HideVersion: true,
		Flags:       compileFlags,
		Action:      compileAction,
		Commands: []*cli.Command{
			dumpConfigCommand,
		},
	}
}

// driver owns the I/O collaborators for one invocation.
type driver struct {
	opts   compiler.Options
	log    *slog.Logger
	diag   *diagnostics
	stats  bool
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newDriver(ctx *cli.Context) (*driver, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(ctx.App.ErrWriter, cfg.Log.Verbosity)
	if err != nil {
		return nil, err
	}
	return &driver{
		opts:   cfg.Compiler,
		log:    logger,
		diag:   newDiagnostics(ctx.App.ErrWriter),
		stats:  ctx.Bool(statsFlag.Name),
		stdin:  ctx.App.Reader,
		stdout: ctx.App.Writer,
		stderr: ctx.App.ErrWriter,
	}, nil
}

func compileAction(ctx *cli.Context) error {
	input, err := sourceArg(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	output := ctx.String(outputFlag.Name)

	d, err := newDriver(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if ctx.Bool(watchFlag.Name) {
		if input == "" || output == "" {
			return cli.Exit("--watch requires --file and --output", 1)
		}
		if err := d.watch(ctx.Context, input, output); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		return nil
	}

	err = d.compile(input, output)
	switch {
	case errors.Is(err, errCompileFailed):
		return cli.Exit("", 1)
	case err != nil:
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// sourceArg picks the input path from --file or the single positional
// argument. Flags after the positional argument are not parsed, so any extra
// argument is rejected instead of being dropped.
func sourceArg(ctx *cli.Context) (string, error) {
	args := ctx.Args()
	switch {
	case args.Len() > 1:
		return "", fmt.Errorf("unexpected arguments: %s (flags must come before the source file)", strings.Join(args.Tail(), " "))
	case args.Present() && ctx.IsSet(fileFlag.Name):
		return "", fmt.Errorf("source given both by --file and as argument %q", args.First())
	case args.Present():
		return args.First(), nil
	}
	return ctx.String(fileFlag.Name), nil
}

// compile runs one full read, compile, write cycle. Nothing is written when
// the source is malformed.
func (d *driver) compile(input, output string) error {
	src, name, err := utils.ReadSource(input, d.stdin)
	if err != nil {
		return err
	}
	d.log.Debug("Read source", "name", name, "bytes", len(src))

	assembly, stats, err := compiler.Compile(src, d.opts)
	var bracketErr *compiler.BracketError
	if errors.As(err, &bracketErr) {
		d.log.Debug("Rejected source", "name", name, "offset", bracketErr.Offset, "err", err)
		d.diag.report(name, src, bracketErr)
		return errCompileFailed
	}
	if err != nil {
		return err
	}

	if err := utils.WriteOutput(output, assembly, d.stdout); err != nil {
		return err
	}
	d.log.Info("Compiled program", "source", name, "tokens", stats.Tokens(), "loops", stats.Loops, "lines", stats.Lines)

	if d.stats {
		printStats(d.stderr, stats)
	}
	return nil
}

// run executes the CLI and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := newApp()
	app.Reader = stdin
	app.Writer = stdout
	app.ErrWriter = stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.RunContext(ctx, args)
	if err == nil {
		return 0
	}

	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return exitErr.ExitCode()
	}
	fmt.Fprintln(stderr, "bfnasm:", err)
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
