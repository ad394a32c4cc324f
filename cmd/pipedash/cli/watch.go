package cli

import (
	"context"
	"errors"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/davarch/pipedash/internal/application"
	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/infrastructure/cache_fs"
	"github.com/davarch/pipedash/internal/infrastructure/config"
	"github.com/davarch/pipedash/internal/infrastructure/logging"
	"github.com/davarch/pipedash/internal/infrastructure/notify_libnotify"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const reloadDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll dashboards, notify on failed or fixed pipelines and keep the cache file fresh",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.RequireToken(); err != nil {
			return err
		}
		log := logging.New(debug || cfg.Log.Debug)
		defer func() { _ = log.Sync() }()

		targets := targetsOf(cfg)
		if len(targets) == 0 {
			return errors.New("no enabled projects (watch.projects or dashboard.organization/project)")
		}

		dash := newDashboardService(cfg, log, nil)
		note := notify_libnotify.NewSoft(notify_libnotify.Options{Expire: 10 * time.Second})
		cache := cache_fs.New(cfg.Cache.Path)

		uc := application.NewWatchUseCase(log, dash, domain.Credentials{}, note, cache)
		sched := application.NewScheduler(log, uc, targets, cfg.Watch.Interval, cfg.Watch.PauseFile)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		watchAndReload(ctx, cfgPath, log, sched)

		log.Info("start",
			zap.String("version", version),
			zap.Int("projects", len(targets)),
			zap.Duration("every", cfg.Watch.Interval),
			zap.String("cache", cfg.Cache.Path),
			zap.String("upstream", cfg.Upstream.BaseURL),
			zap.String("pause_file", cfg.Watch.PauseFile),
		)
		sched.Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func targetsOf(cfg config.Config) []domain.Target {
	var out []domain.Target
	for _, p := range cfg.EnabledProjects() {
		out = append(out, domain.Target{Organization: p.Organization, Project: p.Project})
	}
	return out
}

// watchAndReload swaps the scheduler's targets whenever the config file
// changes. Editors often write in bursts, so reloads are debounced.
func watchAndReload(ctx context.Context, cfgPath string, log *zap.Logger, sched *application.Scheduler) {
	if cfgPath == "" {
		return
	}

	dir := filepath.Dir(cfgPath)
	base := filepath.Base(cfgPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify init failed", zap.Error(err))
		return
	}

	if err := w.Add(dir); err != nil {
		log.Warn("fsnotify add dir failed", zap.String("dir", dir), zap.Error(err))
		_ = w.Close()
		return
	}

	reload := func() {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Warn("config reload failed", zap.Error(err))
			return
		}
		targets := targetsOf(cfg)
		if len(targets) == 0 {
			log.Warn("config reload: no enabled projects")
		}
		sched.UpdateTargets(targets)
	}

	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.AfterFunc(reloadDebounce, reload)
				} else {
					timer.Reset(reloadDebounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("fsnotify error", zap.Error(err))
			}
		}
	}()
}
