package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/konata/pkg/ioctx"
	"github.com/vito/konata/pkg/kanata"
)

func writeTrace(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	src := kanata.Header + "\n" + strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "konata.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx := ioctx.StdoutToContext(context.Background(), &stdout)
	ctx = ioctx.StderrToContext(ctx, &stderr)

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

var goodTrace = []string{
	"C=\t10",
	"I\t0\t0\t0",
	"L\t0\t0\tadd r1, r2",
	"S\t0\t0\tF",
	"C\t1",
	"R\t0\t0\t0",
}

func TestDump(t *testing.T) {
	cfg := writeConfig(t, "")
	path := writeTrace(t, t.TempDir(), "good.kanata", goodTrace...)

	out, _, err := execute(t, "dump", "--config", cfg, path)
	require.NoError(t, err)
	assert.Equal(t,
		"1 instructions in cycles [10:11] <"+path+">\n"+
			"[10:11]           add r1, r2:\n"+
			"---> 00000010: .S [F]\n"+
			"---> 00000011: .R [ ]\n",
		out)
}

func TestDumpGo(t *testing.T) {
	cfg := writeConfig(t, "")
	path := writeTrace(t, t.TempDir(), "good.kanata", goodTrace...)

	out, _, err := execute(t, "dump", "--go", "--config", cfg, path)
	require.NoError(t, err)
	assert.Contains(t, out, "timeline.Stats{")
	assert.Contains(t, out, "main.goInstruction{")
	assert.Contains(t, out, `"add r1, r2"`)
	assert.Contains(t, out, `"F"`)
}

func TestDumpMissingFile(t *testing.T) {
	cfg := writeConfig(t, "")
	missing := filepath.Join(t.TempDir(), "missing.kanata")

	_, _, err := execute(t, "dump", "--config", cfg, missing)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCheck(t *testing.T) {
	cfg := writeConfig(t, "")
	dir := t.TempDir()
	good := writeTrace(t, dir, "good.kanata", goodTrace...)
	bad := writeTrace(t, dir, "bad.kanata", "C=\t0", "I\t0\t0\t0", "Q\t1")

	out, _, err := execute(t, "check", "--config", cfg, good, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, kanata.ErrMalformedEvent)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ok   "+good+": 7 lines, 6 events, 1 instructions (1 retired, 0 flushed), 1 stages", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "FAIL "+bad+": "), lines[1])
}

func TestCheckLenient(t *testing.T) {
	cfg := writeConfig(t, "")
	bad := writeTrace(t, t.TempDir(), "bad.kanata", "C=\t0", "I\t0\t0\t0", "Q\t1")

	out, _, err := execute(t, "check", "--lenient", "--config", cfg, bad)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+bad+": 4 lines, 2 events, 1 instructions (0 retired, 0 flushed), 0 stages, 1 skipped")
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := writeConfig(t, "lenient = true\n")
	bad := writeTrace(t, t.TempDir(), "bad.kanata", "C=\t0", "Q\t1")

	_, _, err := execute(t, "check", "--config", cfg, bad)
	require.NoError(t, err)

	_, _, err = execute(t, "check", "--lenient=false", "--config", cfg, bad)
	require.Error(t, err)
}

func TestCheckBuildError(t *testing.T) {
	cfg := writeConfig(t, "")
	path := writeTrace(t, t.TempDir(), "backwards.kanata", "C=\t10", "C=\t5")

	out, _, err := execute(t, "check", "--config", cfg, path)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL "+path)
	assert.Contains(t, err.Error(), "cycle counter cannot move from 10")
}

func TestCheckLenientBackwardsCycle(t *testing.T) {
	cfg := writeConfig(t, "")
	path := writeTrace(t, t.TempDir(), "backwards.kanata", "C=\t10", "I\t0\t0\t0", "C=\t5", "R\t0\t0\t0")

	out, stderr, err := execute(t, "check", "--lenient", "--config", cfg, path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 instructions (1 retired, ")
	assert.Contains(t, stderr, "ignoring cycle event")
}

func TestDebugLogging(t *testing.T) {
	cfg := writeConfig(t, "")
	path := writeTrace(t, t.TempDir(), "good.kanata", goodTrace...)

	_, stderr, err := execute(t, "check", "--config", cfg, path)
	require.NoError(t, err)
	assert.NotContains(t, stderr, "checked trace")

	_, stderr, err = execute(t, "check", "-d", "--config", cfg, path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "checked trace")
}

func TestLogFile(t *testing.T) {
	cfg := writeConfig(t, "")
	dir := t.TempDir()
	path := writeTrace(t, dir, "good.kanata", goodTrace...)
	logFile := filepath.Join(dir, "konata.log")

	_, stderr, err := execute(t, "check", "-d", "--log-file", logFile, "--config", cfg, path)
	require.NoError(t, err)
	assert.Empty(t, stderr)

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logs), `msg="checked trace"`)
}

func TestBadConfig(t *testing.T) {
	cfg := writeConfig(t, "[log]\nlevel = \"loud\"\n")
	path := writeTrace(t, t.TempDir(), "good.kanata", goodTrace...)

	_, _, err := execute(t, "dump", "--config", cfg, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestRootRequiresOneTrace(t *testing.T) {
	_, _, err := execute(t)
	require.Error(t, err)

	_, _, err = execute(t, "a.kanata", "b.kanata")
	require.Error(t, err)
}
