package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kass/echo-trails/pkg/geo"
	"github.com/kass/echo-trails/pkg/metrics"
	"github.com/kass/echo-trails/pkg/models"
	"github.com/kass/echo-trails/pkg/store"
	"github.com/kass/echo-trails/pkg/unlock"
	"github.com/kass/echo-trails/pkg/watch"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch drops from the backend and save a snapshot",
		Long:  `Download the current drop collection and store it in the snapshot file for --offline use.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := store.Refresh(cmd.Context(), a.client(), a.cfg.SnapshotFile, a.cfg.BackendURL)
			if err != nil {
				return err
			}
			a.newPrinter().line("Saved %d drops to %s", len(snap.Drops), a.cfg.SnapshotFile)
			return nil
		},
	}
}

// evaluate fetches the drops and runs them through the evaluator at now
func (a *app) evaluate(ctx context.Context, now time.Time) ([]unlock.Evaluation, unlock.Report, error) {
	raws, err := a.source().FetchDrops(ctx)
	if err != nil {
		return nil, unlock.Report{}, err
	}
	evals, report, err := a.evaluator().Annotate(a.position(), now, raws)
	if err != nil {
		return nil, report, err
	}
	a.logSkipped(report)
	return evals, report, nil
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show the drops unlocked at your location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.now()
			evals, report, err := a.evaluate(cmd.Context(), now)
			if err != nil {
				return err
			}

			p := a.newPrinter()
			pos := a.position()
			p.title("Unlocked drops at (%.5f, %.5f)", pos.Lat, pos.Lon)
			for _, ev := range evals {
				if ev.Result.Unlocked {
					p.evaluation(ev, now)
				}
			}
			if report.Unlocked == 0 {
				p.line("No drops unlocked here yet.")
			}
			p.report(report)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every drop with its lock status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.now()
			evals, report, err := a.evaluate(cmd.Context(), now)
			if err != nil {
				return err
			}

			p := a.newPrinter()
			p.title("Drops")
			for _, ev := range evals {
				p.evaluation(ev, now)
				p.details(ev.Drop)
			}
			for _, s := range report.Skipped {
				p.dim("skipped  %s  %s", s.ID, s.Reason)
			}
			p.report(report)
			return nil
		},
	}
}

func newNearbyCmd(a *app) *cobra.Command {
	var (
		radius float64
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "Show drops around you, nearest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.now()
			evals, _, err := a.evaluate(cmd.Context(), now)
			if err != nil {
				return err
			}

			drops := make([]models.AudioDrop, len(evals))
			for i, ev := range evals {
				drops[i] = ev.Drop
			}

			index := geo.NewDropIndex()
			index.IndexDrops(drops)

			pos := a.position()
			matches, err := index.QueryRadius(pos, radius)
			if err != nil {
				return err
			}
			if limit > 0 && len(matches) > limit {
				matches = matches[:limit]
			}

			p := a.newPrinter()
			p.title("%d drops within %s of (%.5f, %.5f)", len(matches), formatMeters(radius), pos.Lat, pos.Lon)
			for _, m := range matches {
				p.evaluation(evals[m.Index], now)
			}
			return nil
		},
	}

	cmd.Flags().Float64VarP(&radius, "radius", "r", 1000, "Search radius in meters")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of drops to show (0 = all)")
	return cmd
}

func newDistanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "distance LAT1 LON1 LAT2 LON2",
		Short: "Print the great-circle distance between two points in meters",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v [4]float64
			for i, arg := range args {
				f, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return errors.Wrapf(err, "argument %d", i+1)
				}
				v[i] = f
			}

			from := models.GeoPoint{Lat: v[0], Lon: v[1]}
			to := models.GeoPoint{Lat: v[2], Lon: v[3]}
			if a.cfg.StrictCoordinates {
				for _, pt := range []models.GeoPoint{from, to} {
					if err := geo.Validate(pt); err != nil {
						return err
					}
				}
			}

			a.newPrinter().line("%.3f", geo.Distance(from, to))
			return nil
		},
	}
}

func newDownloadCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download ID",
		Short: "Download the audio of an unlocked drop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			evals, _, err := a.evaluate(cmd.Context(), a.now())
			if err != nil {
				return err
			}

			var found *unlock.Evaluation
			for i := range evals {
				if evals[i].Drop.ID == id {
					found = &evals[i]
					break
				}
			}
			if found == nil {
				return errors.Errorf("drop %s not found", id)
			}
			if !found.Result.Unlocked {
				return errors.Errorf("drop %s is %s", id, status(found.Result))
			}

			if output == "" && found.Drop.FileName != "" {
				output = filepath.Base(found.Drop.FileName)
			}
			if output == "" {
				output = id + ".mp3"
			}

			file, err := os.Create(output)
			if err != nil {
				return errors.Wrap(err, "failed to create file")
			}
			n, err := a.client().DownloadAudio(cmd.Context(), id, file)
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(output)
				return err
			}

			a.newPrinter().line("Saved %s (%d bytes) to %s", displayTitle(found.Drop), n, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: the drop's file name)")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Notify when drops unlock around you",
		Long:  `Re-evaluate the drops every poll interval and print a notification the first time each drop becomes playable. Stops on SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.cfg.MetricsAddr
			}

			var recorder *metrics.Recorder
			if metricsAddr != "" {
				recorder = metrics.NewRecorder()
			}

			w := watch.New(
				a.source(),
				watch.StaticLocator{Point: a.position()},
				watch.MultiNotifier{
					watch.NewWriterNotifier(a.out),
					watch.LogNotifier{Logger: a.logger},
				},
				watch.Options{
					Interval:  a.cfg.PollInterval,
					Evaluator: a.evaluator(),
					Logger:    a.logger,
					Metrics:   recorder,
					Now:       a.now,
				},
			)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return w.Run(ctx) })
			if recorder != nil {
				g.Go(func() error { return recorder.Serve(ctx, metricsAddr) })
			}

			a.logger.WithFields(log.Fields{
				"lat":     a.cfg.Lat,
				"lon":     a.cfg.Lon,
				"offline": a.offline,
			}).Info("Watcher started")
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address, e.g. :9090")
	return cmd
}
