package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"bfnasm/pkg/compiler"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

type logConfig struct {
	Verbosity string
}

type bfnasmConfig struct {
	Compiler compiler.Options
	Log      logConfig
}

func defaultConfig() bfnasmConfig {
	return bfnasmConfig{
		Compiler: compiler.DefaultOptions(),
		Log:      logConfig{Verbosity: verbosityFlag.Value},
	}
}

func loadConfig(file string, cfg *bfnasmConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig layers defaults, the config file and explicit flags, in that
// order of increasing precedence.
func makeConfig(ctx *cli.Context) (bfnasmConfig, error) {
	cfg := defaultConfig()

	if file := ctx.String(configFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	if ctx.IsSet(tapeSizeFlag.Name) {
		cfg.Compiler.TapeSize = ctx.Int(tapeSizeFlag.Name)
	}
	if ctx.IsSet(maxRunFlag.Name) {
		cfg.Compiler.MaxRun = ctx.Int(maxRunFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Log.Verbosity = ctx.String(verbosityFlag.Name)
	}

	if err := cfg.Compiler.Explicit(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbosity string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(verbosity)); err != nil {
		return nil, fmt.Errorf("invalid verbosity %q", verbosity)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "",
	Flags:       []cli.Flag{configFlag, tapeSizeFlag, maxRunFlag, verbosityFlag},
	Description: `The dumpconfig command shows configuration values.`,
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}
