package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/hatch/internal/app"
	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/notify"
	"github.com/Additional-Code/hatch/internal/view"
)

type viewFlags struct {
	driverID  int64
	number    string
	lateAfter time.Duration
	interval  time.Duration
	once      bool
}

func newViewCmd() *cobra.Command {
	var flags viewFlags
	cmd := &cobra.Command{
		Use:       "view <kitchen|till|driver|tracking>",
		Short:     "Show a live order board",
		Long:      "Show a live order board. Type r and enter to refresh now, d to dismiss an error, q to quit.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"kitchen", "till", "driver", "tracking"},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := view.Options{
				OrderNumber: flags.number,
				Interval:    flags.interval,
			}
			if flags.driverID > 0 {
				opts.DriverID = pointer.ToInt64(flags.driverID)
			}
			profile, err := view.Lookup(args[0], opts)
			if err != nil {
				return err
			}
			return runView(cmd.Context(), profile, flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int64Var(&flags.driverID, "driver", 0, "Only show orders assigned to this driver")
	cmd.Flags().StringVar(&flags.number, "number", "", "Order number to track, e.g. ST-001")
	cmd.Flags().DurationVar(&flags.lateAfter, "late-after", 0, "Flag orders older than this (default VIEW_LATE_AFTER)")
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "Override the refresh interval")
	cmd.Flags().BoolVar(&flags.once, "once", false, "Print the board once and exit")
	return cmd
}

func runView(ctx context.Context, profile view.Profile, flags viewFlags, in io.Reader, out io.Writer) error {
	var (
		cfg    config.Config
		logger *zap.Logger
		hub    *notify.Hub
	)
	application := fx.New(app.View, fx.NopLogger, fx.Populate(&cfg, &logger, &hub))
	if err := application.Err(); err != nil {
		return err
	}

	profile.LateAfter = cfg.View.LateAfter
	if flags.lateAfter > 0 {
		profile.LateAfter = flags.lateAfter
	}

	var mu sync.Mutex
	render := func(s view.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if err := view.Render(out, s); err != nil {
			logger.Warn("render view", zap.Error(err))
		}
		fmt.Fprintln(out)
	}

	source := view.NewHTTPSource(cfg.View)
	if flags.once {
		v := view.New(profile, source, view.WithLogger(logger))
		err := v.Poll(ctx)
		render(v.Snapshot())
		return err
	}

	v := view.New(profile, source, view.WithLogger(logger), view.OnChange(render))
	unsubscribe := hub.Subscribe("view:"+profile.Name, v)
	defer unsubscribe()

	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()

	runCtx, quit := context.WithCancel(ctx)
	defer quit()

	commands := make(chan string)
	go readCommands(in, commands)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return v.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case c, ok := <-commands:
				if !ok {
					return nil
				}
				switch c {
				case "r":
					_ = v.Retry(gctx)
				case "d":
					v.Dismiss()
					render(v.Snapshot())
				case "q":
					quit()
					return nil
				}
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil && runCtx.Err() == nil {
		return err
	}
	return nil
}

func readCommands(in io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		out <- strings.ToLower(strings.TrimSpace(scanner.Text()))
	}
}
