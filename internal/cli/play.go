package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wader/gifcat/internal/config"
	"github.com/wader/gifcat/internal/framecache"
	"github.com/wader/gifcat/internal/gifsource"
	"github.com/wader/gifcat/internal/player"
	"github.com/wader/gifcat/internal/render"
	"github.com/wader/gifcat/internal/render/all"
)

// playerOptions maps config to player and cache options
func playerOptions(cfg *config.Config, log logrus.FieldLogger, reg prometheus.Registerer) ([]player.Option, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	quality, err := cfg.PredrawQuality()
	if err != nil {
		return nil, err
	}

	opts := []player.Option{
		player.WithLogger(log),
		player.WithStatus(cfg.Status),
		player.WithPredraw(cfg.Predraw, quality),
		player.WithMemoryLimit(cfg.MemoryLimit(), cfg.MemoryPoll),
		player.WithCacheOptions(
			framecache.WithPolicy(policy),
			framecache.WithWindowCap(cfg.MaxWindow),
			framecache.WithOptimalSize(cfg.OptimalWindow),
			framecache.WithSizeClasses(cfg.SizeClasses()),
			framecache.WithWorkers(cfg.Workers),
			framecache.WithSlowdown(cfg.Slowdown),
		),
	}
	if lc, ok := cfg.LoopCount(); ok {
		opts = append(opts, player.WithLoopCount(lc))
	}
	if reg != nil {
		opts = append(opts, player.WithMetrics(reg))
	}

	return opts, nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) func() {
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Errorf("metrics: %s", err)
		}
	}()
	a.log.Infof("serving metrics on %s", a.cfg.MetricsAddr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (a *app) play(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	t := render.Terminal{In: os.Stdin, Out: a.stdout}
	r, err := all.Find(a.cfg.Renderer, t)
	if err != nil {
		return err
	}
	statusRows := 0
	if a.cfg.Status {
		statusRows = 1
	}

	var reg prometheus.Registerer
	if a.cfg.MetricsAddr != "" {
		pr := prometheus.NewRegistry()
		reg = pr
		defer a.serveMetrics(pr)()
	}

	opts, err := playerOptions(a.cfg, a.log, reg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	return playFiles(ctx, a.stderr, args, func(ctx context.Context, path string) error {
		asset, err := gifsource.LoadFile(path, gifsource.WithLogger(a.log.WithField("file", path)))
		if err != nil {
			return err
		}
		out, err := r.Output(t, statusRows)
		if err != nil {
			return err
		}
		defer out.Close()

		p := player.New(asset, out, opts...)
		a.log.WithField("session", p.ID()).Debugf("playing %s with %s", path, out)
		return p.Run(ctx)
	})
}

// playFiles plays each path, a failing file is reported and skipped.
// Cancellation stops at the current file.
func playFiles(ctx context.Context, stderr io.Writer, paths []string, playFile func(ctx context.Context, path string) error) error {
	failed := 0
	for _, path := range paths {
		if err := playFile(ctx, path); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			fmt.Fprintf(stderr, "%s: %s\n", path, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}
