package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kass/echo-trails/pkg/client"
	"github.com/kass/echo-trails/pkg/config"
	"github.com/kass/echo-trails/pkg/logging"
	"github.com/kass/echo-trails/pkg/models"
	"github.com/kass/echo-trails/pkg/store"
	"github.com/kass/echo-trails/pkg/unlock"
)

// app carries flag values and the state built from them before each command
type app struct {
	configFile string
	envFile    string
	lat        float64
	lon        float64
	snapshot   string
	offline    bool
	strict     bool
	verbose    bool

	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
	styled bool
	now    func() time.Time
}

func newRootCmd(out io.Writer) *cobra.Command {
	return newAppCmd(&app{out: out, now: time.Now})
}

func newAppCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "echotrails",
		Short: "Find the EchoTrails audio drops you can play right now",
		Long: `echotrails fetches geo-anchored audio drops from the EchoTrails backend and
tells you which ones are unlocked: their time-lock has passed and you are
standing within their range.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "YAML config file")
	flags.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded when present")
	flags.Float64Var(&a.lat, "lat", 0, "Your latitude (overrides config)")
	flags.Float64Var(&a.lon, "lon", 0, "Your longitude (overrides config)")
	flags.StringVarP(&a.snapshot, "snapshot", "f", "", "Drop snapshot file (overrides config)")
	flags.BoolVar(&a.offline, "offline", false, "Read drops from the snapshot instead of the backend")
	flags.BoolVar(&a.strict, "strict", false, "Reject out-of-range coordinates")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newFetchCmd(a),
		newCheckCmd(a),
		newListCmd(a),
		newNearbyCmd(a),
		newDistanceCmd(a),
		newDownloadCmd(a),
		newWatchCmd(a),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configFile, a.envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("lat") {
		cfg.Lat = a.lat
	}
	if flags.Changed("lon") {
		cfg.Lon = a.lon
	}
	if flags.Changed("snapshot") {
		cfg.SnapshotFile = a.snapshot
	}
	if flags.Changed("strict") {
		cfg.StrictCoordinates = a.strict
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	if f, ok := a.out.(*os.File); ok {
		a.styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return nil
}

func (a *app) client() *client.Client {
	return client.NewClient(a.cfg.BackendURL, a.cfg.Token, a.cfg.HTTPTimeout, a.logger)
}

// source returns the snapshot in offline mode and the cached backend otherwise
func (a *app) source() client.DropSource {
	if a.offline {
		return store.NewSource(a.cfg.SnapshotFile)
	}
	return client.NewCachedSource(a.client(), a.cfg.CacheTTL)
}

func (a *app) evaluator() unlock.Evaluator {
	return unlock.Evaluator{StrictCoordinates: a.cfg.StrictCoordinates}
}

func (a *app) position() models.GeoPoint {
	return a.cfg.Position()
}

func (a *app) logSkipped(report unlock.Report) {
	for _, s := range report.Skipped {
		a.logger.WithFields(log.Fields{
			"drop_id": s.ID,
			"reason":  s.Reason,
		}).WithError(s.Err).Warn("Skipping drop")
	}
}
