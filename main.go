// Command vlayer plays a video file in a window, presenting frames in step
// with the display refresh.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/njyeung/vlayer/host"
	"github.com/njyeung/vlayer/internal/config"
	"github.com/njyeung/vlayer/internal/logging"
	"github.com/njyeung/vlayer/internal/media"
	"github.com/njyeung/vlayer/player"
	"github.com/njyeung/vlayer/render"
)

// controls routes window input to the surface and its resize controller.
type controls struct {
	*render.Surface
	*render.ResizeController
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := config.LoadEnv(".env")
	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, logging.IsTerminal(os.Stderr))
	if err != nil {
		return err
	}
	defer log.Sync()
	if envErr != nil {
		log.Warn(".env file not loaded", zap.Error(envErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var target string
	if len(os.Args) > 1 {
		target = os.Args[1]
	}
	resolver := &media.Resolver{CacheDir: cfg.CacheDir, AWS: cfg.AWS, Log: log.Named("media")}
	path, err := resolver.Resolve(ctx, target)
	if err != nil {
		return &render.FatalError{Stage: render.StageMedia, Err: err}
	}

	win, err := host.NewWindow(host.Config{
		Title:  cfg.Title,
		Width:  cfg.Width,
		Height: cfg.Height,
		Logger: log,
	})
	if err != nil {
		return err
	}
	defer win.Destroy()

	opts := cfg.EngineOptions()
	hz := win.RefreshRate(opts.DisplayFPS(cfg.DisplayFPS))
	log.Info("starting", zap.String("media", path), zap.Float64("refresh", hz))

	queue := render.NewQueue()
	defer queue.Close()
	bridge := render.NewBridge(player.Factory, log)
	surface := render.NewSurface(win, bridge, queue, render.SurfaceConfig{
		Options:  opts,
		Target:   path,
		NewTimer: func() render.RefreshTimer { return render.NewTickerTimer(hz) },
		Logger:   log,
	})
	resize := render.NewResizeController(surface)

	fatal := make(chan error, 1)
	comp := host.NewCompositor(surface, win.DisplayRequests(), hz, func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}, log)

	app := func() error {
		comp.Start()
		defer surface.Close()
		defer comp.Stop()

		interrupt := ctx.Done()
		for {
			select {
			case <-win.Terminated():
				return nil
			case err := <-fatal:
				return err
			case <-interrupt:
				log.Info("interrupted")
				interrupt = nil
				surface.Quit()
			}
		}
	}
	return win.Run(controls{surface, resize}, app)
}
