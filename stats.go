package main

import (
	"io"
	"strconv"

	"bfnasm/pkg/compiler"

	"github.com/olekukonko/tablewriter"
)

// printStats writes the --stats report: a token histogram followed by the
// code generation summary.
func printStats(w io.Writer, s compiler.Stats) {
	tokens := tablewriter.NewWriter(w)
	tokens.SetHeader([]string{"Token", "Symbol", "Count"})
	tokens.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, k := range compiler.Kinds {
		tokens.Append([]string{k.String(), string(k.Symbol()), strconv.Itoa(s.Counts[k])})
	}
	tokens.SetFooter([]string{"", "Total", strconv.Itoa(s.Tokens())})
	tokens.Render()

	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Metric", "Value"})
	summary.SetAlignment(tablewriter.ALIGN_LEFT)
	summary.AppendBulk([][]string{
		{"Loops", strconv.Itoa(s.Loops)},
		{"Max nesting", strconv.Itoa(s.MaxDepth)},
		{"Operations", strconv.Itoa(s.Operations)},
		{"Merged runs", strconv.Itoa(s.MergedRuns)},
		{"Assembly lines", strconv.Itoa(s.Lines)},
	})
	summary.Render()
}
