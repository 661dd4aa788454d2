package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"bfnasm/pkg/compiler"
	"bfnasm/pkg/utils"

	"github.com/urfave/cli/v2"
)

const testSource = `++[>+++<-]>.`

func main() {
	app := &cli.App{
		Name:        "bfdump",
		Usage:       "print every stage of a compilation",
		ArgsUsage:   "[file]",
		HideVersion: true,
		Action: func(ctx *cli.Context) error {
			return dump(ctx.Args().First(), ctx.App.Writer)
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dump(path string, w io.Writer) error {
	src, name := testSource, "<builtin>"
	if path != "" {
		var err error
		src, name, err = utils.ReadSource(path, nil)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "Source:\n%s\n\n", src)

	// Lex
	tokens := compiler.Lex(src)
	fmt.Fprintf(w, "Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Fprintln(w, " ", tok)
	}
	fmt.Fprintln(w)

	// Validate
	if err := compiler.Validate(tokens); err != nil {
		var bracketErr *compiler.BracketError
		if errors.As(err, &bracketErr) {
			return errors.New(compiler.FormatDiagnostic(name, src, bracketErr))
		}
		return err
	}
	fmt.Fprintln(w, "Brackets: balanced")
	fmt.Fprintln(w)

	// code Generation
	asm, stats := compiler.Generate(tokens, compiler.DefaultOptions())
	fmt.Fprintln(w, "Generated Assembly")
	fmt.Fprint(w, asm)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d operations, %d merged runs, %d loops (max depth %d)\n",
		stats.Operations, stats.MergedRuns, stats.Loops, stats.MaxDepth)
	return nil
}
