package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bfnasm/pkg/compiler"
	"bfnasm/pkg/cpu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bfnasm runs the CLI with the given arguments and standard input.
func bfnasm(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errs bytes.Buffer
	code = run(context.Background(), append([]string{"bfnasm"}, args...), strings.NewReader(stdin), &out, &errs)
	return code, out.String(), errs.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCLI_StdinToStdout(t *testing.T) {
	code, stdout, stderr := bfnasm(t, "+++.")
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "global _start\n"))
	assert.Contains(t, stdout, "add byte [rax], 3")
	assert.Empty(t, stderr)
}

func TestCLI_FileToFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "prog.bf", "+[-]")
	out := filepath.Join(dir, "prog.asm")

	code, stdout, stderr := bfnasm(t, "", "-f", src, "-o", out)
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	want, _, err := compiler.Compile("+[-]", compiler.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestCLI_PositionalFile(t *testing.T) {
	src := writeFile(t, t.TempDir(), "prog.bf", ">")
	code, stdout, _ := bfnasm(t, "", src)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "inc qword [pointer]")
}

func TestCLI_ArgumentsAfterSource(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "prog.bf", "+.")
	out := filepath.Join(dir, "prog.asm")

	// Flags after the positional source are not parsed, so they are refused.
	code, stdout, stderr := bfnasm(t, "", src, "-o", out)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "unexpected arguments: -o "+out)
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))

	code, _, stderr = bfnasm(t, "", src, "other.bf")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unexpected arguments: other.bf")

	code, _, stderr = bfnasm(t, "", "-f", src, src)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "source given both by --file and as argument")

	// The same flags before the source work.
	code, _, stderr = bfnasm(t, "", "-o", out, src)
	require.Equal(t, 0, code, stderr)
	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestCLI_StructuralErrors(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "x.bf", "[")
	out := filepath.Join(dir, "x.asm")

	code, stdout, stderr := bfnasm(t, "", "-f", src, "-o", out)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Equal(t, src+":1:1: Unmatched Jump Forward\n", stderr)

	// Nothing is written for a malformed program.
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))

	code, stdout, stderr = bfnasm(t, "++\n+]")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Equal(t, "<stdin>:2:2: Unmatched Jump Backward\n", stderr)
}

func TestCLI_Scenarios(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	writeFile(t, ".", "x.bf", "+++.")
	code, assembly, stderr := bfnasm(t, "", "-f", "x.bf")
	require.Equal(t, 0, code, stderr)
	out, exit, err := cpu.RunAssembly(assembly, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, out)
	assert.Equal(t, 0, exit)

	writeFile(t, ".", "x.bf", "[")
	code, _, stderr = bfnasm(t, "", "-f", "x.bf")
	assert.Equal(t, 1, code)
	assert.Equal(t, "x.bf:1:1: Unmatched Jump Forward\n", stderr)
}

func TestCLI_Help(t *testing.T) {
	code, stdout, _ := bfnasm(t, "", "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "--file")
	assert.Contains(t, stdout, "--output")
}

func TestCLI_MissingFile(t *testing.T) {
	code, _, stderr := bfnasm(t, "", "-f", filepath.Join(t.TempDir(), "missing.bf"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "read source")
}

func TestCLI_Options(t *testing.T) {
	code, stdout, _ := bfnasm(t, "+++", "--max-run", "1", "--tape-size", "64")
	require.Equal(t, 0, code)
	assert.Equal(t, 3, strings.Count(stdout, "inc byte [rax]"))
	assert.Contains(t, stdout, "add rax, 64")

	code, _, stderr := bfnasm(t, "+", "--max-run", "300")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "max run must be between 1 and 255")

	// Zero is not a valid explicit value.
	code, _, stderr = bfnasm(t, "+", "--max-run", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "max run must be between 1 and 255, got 0")

	code, _, stderr = bfnasm(t, "+", "--tape-size", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "tape size must be between 1")

	code, _, stderr = bfnasm(t, "+", "--tape-size", "3000000000")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "tape size must be between 1 and 2147483647")

	code, _, stderr = bfnasm(t, "+", "--verbosity", "loud")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `invalid verbosity "loud"`)
}

func TestCLI_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bfnasm.toml", "[Compiler]\nTapeSize = 128\nMaxRun = 1\n")

	code, stdout, stderr := bfnasm(t, "++", "--config", cfg)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "add rax, 128")
	assert.Equal(t, 2, strings.Count(stdout, "inc byte [rax]"))

	// Flags take precedence over the file.
	code, stdout, _ = bfnasm(t, "++", "--config", cfg, "--max-run", "2")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "add byte [rax], 2")

	zero := writeFile(t, dir, "zero.toml", "[Compiler]\nMaxRun = 0\n")
	code, _, stderr = bfnasm(t, "++", "--config", zero)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "max run must be between 1 and 255, got 0")

	bad := writeFile(t, dir, "bad.toml", "[Compiler]\nBogus = 1\n")
	code, _, stderr = bfnasm(t, "++", "--config", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Bogus")
}

func TestCLI_DumpConfig(t *testing.T) {
	code, stdout, stderr := bfnasm(t, "", "dumpconfig", "--max-run", "9")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "[Compiler]")
	assert.Contains(t, stdout, "TapeSize = 30000")
	assert.Contains(t, stdout, "MaxRun = 9")
	assert.Contains(t, stdout, "[Log]")

	// The dumped file loads back unchanged.
	path := writeFile(t, t.TempDir(), "dumped.toml", stdout)
	code, again, _ := bfnasm(t, "", "dumpconfig", "--config", path)
	require.Equal(t, 0, code)
	assert.Equal(t, stdout, again)
}

func TestCLI_Stats(t *testing.T) {
	code, stdout, stderr := bfnasm(t, "++[>+<-]", "--stats")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "global _start")
	assert.Contains(t, stderr, "LOOP_OPEN")
	assert.Contains(t, stderr, "Merged runs")
	assert.Contains(t, stderr, "Max nesting")

	var buf bytes.Buffer
	_, stats, err := compiler.Compile("+++", compiler.DefaultOptions())
	require.NoError(t, err)
	printStats(&buf, stats)
	assert.Contains(t, buf.String(), "INCREMENT")
}

func TestCLI_WatchRequiresPaths(t *testing.T) {
	code, _, stderr := bfnasm(t, "+", "--watch")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--watch requires --file and --output")
}

func TestCLI_Watch(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "prog.bf", "+.")
	out := filepath.Join(dir, "prog.asm")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout, stderr bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"bfnasm", "--watch", "-f", src, "-o", out}, strings.NewReader(""), &stdout, &stderr)
	}()

	contains := func(want string) func() bool {
		return func() bool {
			data, err := os.ReadFile(out)
			return err == nil && strings.Contains(string(data), want)
		}
	}
	require.Eventually(t, contains("inc byte [rax]"), 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(src, []byte("+++."), 0o644))
	require.Eventually(t, contains("add byte [rax], 3"), 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestDiagnosticsColour(t *testing.T) {
	var bracketErr *compiler.BracketError
	_, _, err := compiler.Compile("+[", compiler.DefaultOptions())
	require.ErrorAs(t, err, &bracketErr)

	var plain bytes.Buffer
	newDiagnostics(&plain).report("p.bf", "+[", bracketErr)
	assert.Equal(t, "p.bf:1:2: Unmatched Jump Forward\n", plain.String())

	var coloured bytes.Buffer
	d := &diagnostics{w: &coloured, color: true}
	d.report("p.bf", "+[", bracketErr)
	assert.Contains(t, coloured.String(), "\x1b[")
	assert.Contains(t, coloured.String(), "p.bf:1:2:")
	assert.Contains(t, coloured.String(), "Unmatched Jump Forward")
}
