package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnoswap-labs/witness"
	"github.com/gnoswap-labs/witness/internal/cache"
	"github.com/gnoswap-labs/witness/internal/metrics"
	"github.com/gnoswap-labs/witness/internal/rewrite"
	"github.com/gnoswap-labs/witness/internal/server"
)

var (
	port  int
	watch bool
)

// serveCmd: witness serve <input>
var serveCmd = &cobra.Command{
	Use:   "serve <input>",
	Short: "Optimize an expression and serve the documents over HTTP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, rules, err := resolveRun(cmd)
		if err != nil {
			logger.Error("Error loading configuration", zap.Error(err))
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, args[0], fmt.Sprintf(":%d", port), params, rules)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run the optimization when the input file changes")
	serveCmd.Flags().IntVar(&iterations, "iters", 0, "Maximum number of saturation rounds (overrides the config)")
	serveCmd.Flags().Float64Var(&lambda, "lambda", 0, "Base ache weight of the candidate sweep (overrides the config)")
	serveCmd.Flags().IntVarP(&nbest, "nbest", "n", 0, "Number of distinct candidates to extract (overrides the config)")
	serveCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Maximum weights tried while collecting candidates (overrides the config)")
	serveCmd.Flags().StringVar(&rulesFile, "rules", "", "YAML file with extra rewrite rules")
}

func runServe(ctx context.Context, path, addr string, params witness.Params, rules []*rewrite.Rule) error {
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.NewSaturation()
	srv := server.New(logger, m)

	reload := newReloader(path, params, rules, srv, m, cache.New(cache.DefaultMaxEntries, cache.DefaultMaxAge))
	if err := reload(ctx); err != nil {
		logger.Error("Error optimizing", zap.String("path", path), zap.Error(err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, addr)
	})
	if watch {
		g.Go(func() error {
			return server.Watch(gctx, logger, path, server.DefaultDebounce, reload)
		})
	}
	return g.Wait()
}

// newReloader returns a func that optimizes the file at path and
// publishes the result. A content already seen is republished from the
// cache without running or counting a new run.
func newReloader(path string, params witness.Params, rules []*rewrite.Rule, srv *server.Server, m *metrics.Saturation, results *cache.Cache) func(context.Context) error {
	return func(context.Context) error {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		key := cache.Key(string(src), params, rules)
		if res, ok := results.Get(key); ok {
			logger.Debug("input unchanged, reusing run", zap.String("run_id", res.RunID.String()))
			return srv.Publish(res)
		}
		res, err := witness.OptimizeSource(logger, string(src), rules, params, m.Hook())
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		m.Finish(res.State, len(res.Candidates))
		results.Set(key, res)
		return srv.Publish(res)
	}
}
