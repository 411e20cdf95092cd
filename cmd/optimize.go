package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/witness"
	"github.com/gnoswap-labs/witness/formatter"
	"github.com/gnoswap-labs/witness/internal/rewrite"
	"github.com/gnoswap-labs/witness/internal/saturate"
)

var (
	iterations  int
	lambda      float64
	nbest       int
	maxAttempts int
	rulesFile   string
	outDir      string
	jsonOutput  bool
	noProgress  bool
)

// optimizeCmd: witness optimize <input>
var optimizeCmd = &cobra.Command{
	Use:   "optimize <input>",
	Short: "Saturate an expression and print the rewrite trace and candidates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, rules, err := resolveRun(cmd)
		if err != nil {
			logger.Error("Error loading configuration", zap.Error(err))
			return err
		}
		return runOptimize(cmd, args[0], params, rules)
	},
}

func init() {
	optimizeCmd.Flags().IntVar(&iterations, "iters", 0, "Maximum number of saturation rounds (overrides the config)")
	optimizeCmd.Flags().Float64Var(&lambda, "lambda", 0, "Base ache weight of the candidate sweep (overrides the config)")
	optimizeCmd.Flags().IntVarP(&nbest, "nbest", "n", 0, "Number of distinct candidates to extract (overrides the config)")
	optimizeCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Maximum weights tried while collecting candidates (overrides the config)")
	optimizeCmd.Flags().StringVar(&rulesFile, "rules", "", "YAML file with extra rewrite rules")
	optimizeCmd.Flags().StringVarP(&outDir, "output", "o", "", "Directory to write graph.json, trace.json and nbest.json into")
	optimizeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the documents as JSON instead of text")
	optimizeCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not draw the progress bar")
}

// resolveRun merges the configuration file, the optional rules file and
// the flags that were set explicitly.
func resolveRun(cmd *cobra.Command) (witness.Params, []*rewrite.Rule, error) {
	config, err := loadConfig(cmd)
	if err != nil {
		return witness.Params{}, nil, err
	}

	params := config.Params
	flags := cmd.Flags()
	if flags.Changed("iters") {
		params.MaxIterations = iterations
	}
	if flags.Changed("lambda") {
		params.Lambda = lambda
	}
	if flags.Changed("nbest") {
		params.Candidates = nbest
	}
	if flags.Changed("max-attempts") {
		params.MaxAttempts = maxAttempts
	}
	if err := params.Validate(); err != nil {
		return params, nil, err
	}

	rules, err := config.RuleSet()
	if err != nil {
		return params, nil, err
	}
	if rulesFile != "" {
		extra, err := rewrite.Load(rulesFile)
		if err != nil {
			return params, nil, err
		}
		rules, err = mergeRules(rules, extra)
		if err != nil {
			return params, nil, err
		}
	}
	return params, rules, nil
}

func mergeRules(base, extra []*rewrite.Rule) ([]*rewrite.Rule, error) {
	seen := make(map[string]bool, len(base))
	for _, r := range base {
		seen[r.Name()] = true
	}
	merged := append([]*rewrite.Rule(nil), base...)
	for _, r := range extra {
		if seen[r.Name()] {
			return nil, fmt.Errorf("duplicate rule name %q", r.Name())
		}
		seen[r.Name()] = true
		merged = append(merged, r)
	}
	return merged, nil
}

func runOptimize(cmd *cobra.Command, path string, params witness.Params, rules []*rewrite.Rule) error {
	var hooks []saturate.Hook
	var bar *progressbar.ProgressBar
	if !noProgress && !jsonOutput {
		bar = newProgressBar(cmd.ErrOrStderr(), path, params.MaxIterations)
		hooks = append(hooks, func(saturate.IterationStats) {
			_ = bar.Add(1)
		})
	}

	res, err := witness.OptimizeFile(logger, path, rules, params, hooks...)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		logger.Error("Error optimizing", zap.String("path", path), zap.Error(err))
		return err
	}

	docs, err := res.Documents()
	if err != nil {
		return err
	}
	if outDir != "" {
		if err := docs.WriteDir(outDir); err != nil {
			logger.Error("Error writing documents", zap.String("dir", outDir), zap.Error(err))
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, map[string]json.RawMessage{
			"graph": docs.Graph.Body,
			"trace": docs.Trace.Body,
			"nbest": docs.NBest.Body,
		})
	}

	fmt.Fprint(out, formatter.GenerateFormattedTrace(res.Trace))
	fmt.Fprint(out, formatter.GenerateFormattedCandidates(res.Candidates))
	fmt.Fprint(out, formatter.Summary(res, params.Candidates))
	if outDir != "" {
		fmt.Fprintf(out, "Documents written to: %s\n", outDir)
	}
	return nil
}

func newProgressBar(w io.Writer, description string, max int) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
