package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpBuiltin(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dump("", &buf))

	out := buf.String()
	assert.Contains(t, out, "Tokens (12)")
	assert.Contains(t, out, "LOOP_OPEN")
	assert.Contains(t, out, "Brackets: balanced")
	assert.Contains(t, out, "add byte [rax], 3")
	assert.Contains(t, out, "1 loops (max depth 1)")
}

func TestDumpReportsBrackets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bf")
	require.NoError(t, os.WriteFile(path, []byte("+\n ]"), 0o644))

	var buf bytes.Buffer
	err := dump(path, &buf)
	assert.EqualError(t, err, path+":2:2: Unmatched Jump Backward")
	assert.Contains(t, buf.String(), "Tokens (2)")
	assert.NotContains(t, buf.String(), "Generated Assembly")
}
