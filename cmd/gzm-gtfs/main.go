package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/MKuranowski/GZMGTFS/cache"
	"github.com/MKuranowski/GZMGTFS/calendar"
	"github.com/MKuranowski/GZMGTFS/catalog"
	"github.com/MKuranowski/GZMGTFS/config"
	"github.com/MKuranowski/GZMGTFS/feed"
	"github.com/MKuranowski/GZMGTFS/gtfs"
	"github.com/MKuranowski/GZMGTFS/store"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := &cli.App{
		Name:    "gzm-gtfs",
		Usage:   "Builds a merged GTFS package from the GZM open-data feeds",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "gzm.zip",
				Usage:   "path to the output GTFS file",
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "re-run even if the remote data has not changed",
			},
			&cli.BoolFlag{
				Name:    "from-cache",
				Aliases: []string{"c"},
				Usage:   "build from already-cached feeds without touching the network",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "feed cache directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"GZM_GTFS_CONFIG"},
			},
		},
		Action: run,
	}

	log.SetFlags(log.LstdFlags)
	log.SetOutput(os.Stderr)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	cacheDir := cfg.CacheDir
	if dir := c.String("cache-dir"); dir != "" {
		cacheDir = dir
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}

	remote := catalog.NewClient(httpClient)
	remote.Endpoint = cfg.Catalog.Endpoint
	remote.DatasetID = cfg.Catalog.DatasetID

	provider := &feed.Provider{
		Catalog:    remote,
		Cache:      cache.Dir{Path: cacheDir},
		Downloader: &cache.HTTPDownloader{Client: httpClient},
		Force:      c.Bool("force"),
		FromCache:  c.Bool("from-cache"),
	}

	feeds, err := provider.Needed()
	if errors.Is(err, feed.ErrNotModified) {
		log.Println("No new data is available, nothing to do")
		return nil
	}
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	db, err := store.New(":memory:")
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer db.Close()

	processor, err := gtfs.NewProcessor(db)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	if err := processor.LoadAll(feeds); err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	exceptions := calendar.NewSource(httpClient)
	exceptions.URL = cfg.CalendarExceptions
	holidays, err := exceptions.Holidays(calendar.RegionSlaskie)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	version := provider.PackageDate().String()
	if err := processor.Finalize(version, holidays, c.String("output")); err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	log.Printf("Wrote %s (package %s, %d feeds)", c.String("output"), version, len(feeds))
	return nil
}
