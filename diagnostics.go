package main

import (
	"fmt"
	"io"
	"os"

	"bfnasm/pkg/compiler"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// diagnostics prints user-facing compile errors. Colour is only used when
// the destination is a terminal.
type diagnostics struct {
	w     io.Writer
	color bool
}

func newDiagnostics(w io.Writer) *diagnostics {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return &diagnostics{w: colorable.NewColorable(f), color: true}
	}
	return &diagnostics{w: w}
}

func (d *diagnostics) report(name, src string, err *compiler.BracketError) {
	if !d.color {
		fmt.Fprintln(d.w, compiler.FormatDiagnostic(name, src, err))
		return
	}

	pos := color.New(color.Bold)
	pos.EnableColor()
	msg := color.New(color.FgRed, color.Bold)
	msg.EnableColor()

	loc := compiler.Locate(src, err.Offset)
	fmt.Fprintf(d.w, "%s %s\n", pos.Sprintf("%s:%s:", name, loc), msg.Sprint(err.Error()))
}
