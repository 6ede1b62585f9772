package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/common"
	"himawari-desktop/internal/config"
	"himawari-desktop/internal/logging"
	"himawari-desktop/internal/taskqueue"
	"himawari-desktop/internal/video"
)

// cliOptions holds flag values shared by every command
type cliOptions struct {
	verbose      bool
	settingsPath string

	outputDir       string
	format          string
	level           string
	margins         string
	storeLatestOnly bool
	force           bool
	setWallpaper    bool
	workers         int
	tileTimeout     time.Duration
	baseURL         string
	quality         int
	noCache         bool
}

// cli carries the process fundamentals into command handlers
type cli struct {
	opts   cliOptions
	getenv func(string) string
	stdout *os.File
	stderr *os.File
}

func newRootCommand(getenv func(string) string, stdout, stderr *os.File) *cobra.Command {
	c := &cli{getenv: getenv, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "himawari-desktop",
		Short: "Download the latest Himawari-8 full-disk image",
		Long: "Downloads the most recent full-disk image of the Earth taken by the Himawari-8\n" +
			"satellite, stitches it together from tiles, saves it and optionally sets it\n" +
			"as the desktop wallpaper. Without a subcommand it runs fetch.",
		Version:       AppVersion,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.runFetch,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.opts.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&c.opts.settingsPath, "settings", "", "Settings file (default ~/.himawari-desktop/settings/settings.json)")
	pf.StringVarP(&c.opts.outputDir, "output-dir", "o", "", "Directory to save images in")
	pf.StringVarP(&c.opts.format, "format", "f", "", "Output format: jpeg, png, tiff or webp")
	pf.StringVarP(&c.opts.level, "level", "l", "", "Resolution level: 4, 8, 16 or 20")
	pf.StringVarP(&c.opts.margins, "margins", "m", "", "Margins in pixels: TOP[,RIGHT][,BOTTOM][,LEFT]")
	pf.BoolVarP(&c.opts.storeLatestOnly, "store-latest-only", "s", false, "Only keep the latest image, overwriting it every run")
	pf.BoolVar(&c.opts.force, "force", false, "Overwrite an image that was already downloaded")
	pf.BoolVarP(&c.opts.setWallpaper, "set-wallpaper", "w", false, "Set the image as desktop wallpaper")
	pf.IntVar(&c.opts.workers, "workers", 0, "Number of concurrent tile downloads")
	pf.DurationVar(&c.opts.tileTimeout, "tile-timeout", 0, "Timeout for a single tile request (e.g. 30s, 2m)")
	pf.StringVar(&c.opts.baseURL, "base-url", "", "Base URL of the imagery server")
	pf.IntVar(&c.opts.quality, "quality", 0, "JPEG quality (1-100)")
	pf.BoolVar(&c.opts.noCache, "no-cache", false, "Disable the tile cache for this run")

	root.AddCommand(
		&cobra.Command{
			Use:   "fetch",
			Short: "Download the latest image once",
			Args:  cobra.NoArgs,
			RunE:  c.runFetch,
		},
		c.newWatchCommand(),
		c.newHistoryCommand(),
		c.newTimelapseCommand(),
		c.newCacheCommand(),
		c.newSettingsCommand(),
	)

	return root
}

// setup loads settings, applies explicit flags and builds the app
func (c *cli) setup(cmd *cobra.Command, overlay func(*config.UserSettings)) (*App, error) {
	logger := slog.New(logging.NewTerminalHandler(c.stderr, logging.Level(c.opts.verbose)))

	paths := resolvePaths(c.getenv, c.opts.settingsPath)
	settings, err := config.LoadSettingsFrom(paths.settings)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "failed to load settings", err)
	}

	if err := applyFlags(cmd.Flags(), &c.opts, settings); err != nil {
		return nil, err
	}
	if overlay != nil {
		overlay(settings)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	app := NewApp(settings, paths, c.getenv, logger, c.stderr)
	app.SetForce(c.opts.force)
	return app, nil
}

// applyFlags overrides settings with the flags the user actually set
func applyFlags(flags *pflag.FlagSet, opts *cliOptions, s *config.UserSettings) error {
	if flags.Changed("output-dir") {
		s.OutputDir = opts.outputDir
	}
	if flags.Changed("format") {
		format, err := common.ParseOutputFormat(opts.format)
		if err != nil {
			return err
		}
		s.OutputFormat = format
	}
	if flags.Changed("level") {
		level, err := common.ParseLevel(opts.level)
		if err != nil {
			return err
		}
		s.Level = level
	}
	if flags.Changed("margins") {
		margins, err := common.ParseMargins(opts.margins)
		if err != nil {
			return err
		}
		s.Margins = margins
	}
	if flags.Changed("store-latest-only") {
		s.StoreLatestOnly = opts.storeLatestOnly
	}
	if flags.Changed("set-wallpaper") {
		s.SetWallpaper = opts.setWallpaper
	}
	if flags.Changed("workers") {
		s.Workers = opts.workers
	}
	if flags.Changed("tile-timeout") {
		s.TileTimeoutSeconds = int(opts.tileTimeout / time.Second)
	}
	if flags.Changed("base-url") {
		s.BaseURL = opts.baseURL
	}
	if flags.Changed("quality") {
		s.JPEGQuality = opts.quality
	}
	if flags.Changed("no-cache") {
		s.Cache.Enabled = !opts.noCache
	}
	return nil
}

func (c *cli) runFetch(cmd *cobra.Command, _ []string) error {
	app, err := c.setup(cmd, nil)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	record, err := app.Fetch(cmd.Context())
	if err != nil {
		return err
	}

	if record.Status == taskqueue.RunStatusSkipped {
		fmt.Fprintf(c.stdout, "Already up to date: %s\n", record.OutputPath)
		return nil
	}
	fmt.Fprintf(c.stdout, "Saved %s (%s)\n", record.OutputPath, common.FormatDisplay(record.ImageTime))
	return nil
}

func (c *cli) newWatchCommand() *cobra.Command {
	var (
		schedule  string
		serveAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Download now and then every time a new image is due",
		Long: "Runs fetch immediately and then on a cron schedule until interrupted.\n" +
			"The default schedule fires two minutes after every ten-minute scan.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.setup(cmd, func(s *config.UserSettings) {
				if cmd.Flags().Changed("schedule") {
					s.WatchSchedule = schedule
				}
			})
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if err := taskqueue.ValidateSchedule(app.settings.WatchSchedule); err != nil {
				return err
			}
			return app.Watch(cmd.Context(), serveAddr)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", `Cron schedule, e.g. "*/10 * * * *" or "@every 10m" (default from settings)`)
	cmd.Flags().StringVar(&serveAddr, "serve", "", `Also serve the newest image, history and cached tiles on this address, e.g. "127.0.0.1:8642"`)
	return cmd
}

func (c *cli) newHistoryCommand() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.setup(cmd, nil)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			records, err := app.History(limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(c.stdout, records)
			}
			return writeHistory(c.stdout, records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func writeHistory(w io.Writer, records []*taskqueue.RunRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded yet")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTRIGGER\tSTATUS\tIMAGE\tTILES\tHOLES\tCACHED\tDETAIL")
	for _, r := range records {
		image := "-"
		if !r.ImageTime.IsZero() {
			image = common.FormatDisplay(r.ImageTime)
		}
		detail := r.OutputPath
		if r.Status == taskqueue.RunStatusFailed {
			detail = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.Trigger, r.Status, image, r.Tiles, r.Holes, r.Cached, detail)
	}
	return tw.Flush()
}

func (c *cli) newTimelapseCommand() *cobra.Command {
	var (
		since    time.Duration
		format   string
		output   string
		noDate   bool
		defaults = video.DefaultOptions()
		opts     = defaults
	)

	cmd := &cobra.Command{
		Use:   "timelapse",
		Short: "Build a timelapse from saved images",
		Long: "Stitches the timestamped images in the output directory into a Motion JPEG\n" +
			"AVI or an animated GIF. Images saved with --store-latest-only are not used.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := video.ParseFormat(format)
			if err != nil {
				return err
			}
			opts.Format = f
			opts.ShowDate = !noDate

			app, err := c.setup(cmd, nil)
			if err != nil {
				return err
			}
			defer app.Shutdown()
			opts.Quality = app.settings.JPEGQuality

			path, err := app.ExportTimelapse(cmd.Context(), opts, time.Now().Add(-since), output)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Saved %s\n", path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&since, "since", 24*time.Hour, "Use images taken within this long before now")
	flags.StringVar(&format, "video-format", string(defaults.Format), "Container: avi or gif")
	flags.StringVar(&output, "out", "", "Output file (default: named after the covered range in the output directory)")
	flags.IntVar(&opts.Size, "size", defaults.Size, "Frame width and height in pixels")
	flags.IntVar(&opts.FPS, "fps", defaults.FPS, "Frames per second")
	flags.BoolVar(&noDate, "no-date", false, "Do not stamp the image time on each frame")
	return cmd
}

func (c *cli) newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the tile cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show tile cache usage",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := c.setup(cmd, nil)
				if err != nil {
					return err
				}
				defer app.Shutdown()

				stats := app.GetCacheStats()
				if !stats.Enabled {
					fmt.Fprintf(c.stdout, "Tile cache disabled (%s)\n", stats.CachePath)
					return nil
				}
				fmt.Fprintf(c.stdout, "Path:    %s\n", stats.CachePath)
				fmt.Fprintf(c.stdout, "Tiles:   %d\n", stats.Entries)
				fmt.Fprintf(c.stdout, "Size:    %.1f MB of %.0f MB\n", stats.SizeMB, stats.MaxMB)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached tile",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := c.setup(cmd, nil)
				if err != nil {
					return err
				}
				defer app.Shutdown()

				if err := app.ClearCache(); err != nil {
					return fmt.Errorf("failed to clear cache: %w", err)
				}
				fmt.Fprintln(c.stdout, "Cache cleared")
				return nil
			},
		},
	)
	return cmd
}

func (c *cli) newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or persist settings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings, including flag overrides",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := c.setup(cmd, nil)
				if err != nil {
					return err
				}
				defer app.Shutdown()

				settings, err := app.GetSettings()
				if err != nil {
					return err
				}
				return writeJSON(c.stdout, settings)
			},
		},
		&cobra.Command{
			Use:   "save",
			Short: "Write the effective settings to the settings file",
			Long:  "Persists the current settings with any flags given on the command line applied.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := c.setup(cmd, nil)
				if err != nil {
					return err
				}
				defer app.Shutdown()

				settings, err := app.GetSettings()
				if err != nil {
					return err
				}
				if err := app.SaveSettings(settings); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "Settings saved to %s\n", app.GetSettingsPath())
				return nil
			},
		},
	)
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
