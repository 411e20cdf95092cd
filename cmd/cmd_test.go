package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnoswap-labs/witness"
	"github.com/gnoswap-labs/witness/internal/cache"
	"github.com/gnoswap-labs/witness/internal/candidate"
	"github.com/gnoswap-labs/witness/internal/export"
	"github.com/gnoswap-labs/witness/internal/metrics"
	"github.com/gnoswap-labs/witness/internal/server"
)

func init() {
	color.NoColor = true
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// run executes the root command with args inside a fresh temporary
// working directory.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(dir)
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")

	out, err := run(t, dir, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created/updated: "+path)

	config, err := witness.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, witness.DefaultConfig(), config)
}

func TestInitDefaultPath(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, defaultConfigFile))
}

func TestOptimizeText(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "(map f (map g x))")

	out, err := run(t, dir, "optimize", input, "--no-progress")
	require.NoError(t, err)

	assert.Contains(t, out, "rewrite: map-fusion")
	assert.Contains(t, out, "+ | (map (compose f g) x)")
	assert.Contains(t, out, "candidate: size")
	assert.Contains(t, out, "converged after 2 iteration(s)")
}

func TestOptimizeJSON(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "(map f (map g x))")

	out, err := run(t, dir, "optimize", input, "--json")
	require.NoError(t, err)

	var docs map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	assert.Contains(t, docs, "graph")
	assert.Contains(t, docs, "trace")
	assert.Contains(t, docs, "nbest")

	var cands []candidate.Candidate
	require.NoError(t, json.Unmarshal(docs["nbest"], &cands))
	require.NotEmpty(t, cands)
	assert.Equal(t, "size", cands[0].Name)
	assert.Equal(t, "(map (compose f g) x)", cands[0].Expr)
}

func TestOptimizeOutputDir(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "(filter p (filter q x))")
	outDir := filepath.Join(dir, "out")

	out, err := run(t, dir, "optimize", input, "--no-progress", "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Documents written to: "+outDir)

	for _, name := range []string{export.GraphFile, export.TraceFile, export.NBestFile} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.True(t, json.Valid(data), name)
	}
}

func TestOptimizeFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "(map f (map g x))")
	writeFile(t, dir, defaultConfigFile, "name: test\niterations: 8\n")

	out, err := run(t, dir, "optimize", input, "--no-progress", "--iters", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "iteration cap reached after 1 iteration(s)")

	out, err = run(t, dir, "optimize", input, "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "converged after 2 iteration(s)")
}

func TestOptimizeRulesFile(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "(foo a)")
	rules := writeFile(t, dir, "rules.yaml", `rules:
  - name: foo-to-bar
    pattern: (foo ?x)
    replacement: (bar ?x)
`)

	out, err := run(t, dir, "optimize", input, "--no-progress", "--rules", rules)
	require.NoError(t, err)
	assert.Contains(t, out, "rewrite: foo-to-bar")
	assert.Contains(t, out, "+ | (bar a)")
}

func TestOptimizeErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "(map f (map g x))")
	duplicate := writeFile(t, dir, "dup.yaml", `rules:
  - name: map-fusion
    pattern: (f ?x)
    replacement: (g ?x)
`)

	tests := []struct {
		name string
		args []string
		is   error
	}{
		{name: "missing input", args: []string{"optimize", filepath.Join(dir, "nope.wl"), "--no-progress"}},
		{name: "zero iterations", args: []string{"optimize", input, "--iters", "0"}, is: witness.ErrInvalidParams},
		{name: "negative lambda", args: []string{"optimize", input, "--lambda", "-1"}, is: witness.ErrInvalidParams},
		{name: "infinite lambda", args: []string{"optimize", input, "--lambda", "inf"}, is: witness.ErrInvalidParams},
		{name: "duplicate rule", args: []string{"optimize", input, "--rules", duplicate}},
		{name: "explicit missing config", args: []string{"optimize", input, "--config", filepath.Join(dir, "missing.yaml")}},
		{name: "no input", args: []string{"optimize"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, dir, tt.args...)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestOptimizeInvalidExpression(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "(map f")

	_, err := run(t, dir, "optimize", input, "--no-progress")
	assert.ErrorIs(t, err, witness.ErrInvalidInput)
}

func TestRulesCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, defaultConfigFile, `rules:
  - name: foo-to-bar
    pattern: (foo ?x)
    replacement: (bar ?x)
`)

	out, err := run(t, dir, "rules")
	require.NoError(t, err)
	for _, name := range []string{
		"NAME", "map-fusion", "filter-fusion", "filter-push-map",
		"normalize-idem", "add-comm", "mul-comm", "foo-to-bar",
	} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "(map ?f (map ?g ?x))")
}

func TestRunServeStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "(normalize (normalize x))")
	logger = zaptest.NewLogger(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, input, "127.0.0.1:0", witness.DefaultParams(), nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestRunServeInvalidInput(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "")
	logger = zaptest.NewLogger(t)

	err := runServe(context.Background(), input, "127.0.0.1:0", witness.DefaultParams(), nil)
	assert.ErrorIs(t, err, witness.ErrInvalidInput)
}

func TestReloaderCountsOnlyFreshRuns(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "input.wl", "(normalize (normalize x))")
	logger = zaptest.NewLogger(t)

	m := metrics.NewSaturation()
	srv := server.New(logger, m)
	results := cache.New(0, 0)
	reload := newReloader(input, witness.DefaultParams(), nil, srv, m, results)

	require.NoError(t, reload(context.Background()))
	require.NoError(t, reload(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("converged")))
	assert.Equal(t, 1, results.Len())

	writeFile(t, dir, "input.wl", "(map f (map g x))")
	require.NoError(t, reload(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("converged")))

	writeFile(t, dir, "input.wl", "(normalize (normalize x))")
	require.NoError(t, reload(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("converged")), "reverted input is served from the cache")
	assert.Equal(t, 2, results.Len())
}
