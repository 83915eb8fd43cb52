// Command collector triggers ingestion and analysis runs from the shell or
// a scheduler, using the same services as the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/app"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/config"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/db"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/middleware"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

type Options struct {
	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"warn" description:"Log level"`
}

var opts Options

// env is built lazily so "migrate" does not need a connected app.
type env struct {
	ctx context.Context
	cfg *config.Config
	log zerolog.Logger
}

func (e *env) app() (*app.App, error) {
	return app.New(e.ctx, e.cfg, e.log)
}

var current env

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = false

	mustAdd(parser, "channel", "Collect a channel", "Resolves a channel URL or @handle and stores it.", &channelCommand{})
	mustAdd(parser, "videos", "Collect recent videos", "Fetches recent uploads and comments of a channel under a new job.", &videosCommand{})
	mustAdd(parser, "scrape", "Dispatch an async scrape", "Asks the scrape provider to collect a URL; rows arrive on the webhook.", &scrapeCommand{})
	mustAdd(parser, "analyze", "Analyze a video", "Scores the comments of a video and stores its summary.", &analyzeCommand{})
	mustAdd(parser, "migrate", "Apply schema migrations", "Applies pending migrations, or rolls them all back with --down.", &migrateCommand{})

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		middleware.InitLogger(opts.LogLevel, "tubepulse-collector")
		// stdout carries the command's JSON result.
		middleware.Logger = middleware.Logger.Output(os.Stderr)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		current = env{ctx: ctx, cfg: cfg, log: middleware.Logger}
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

func mustAdd(p *flags.Parser, name, short, long string, data any) {
	if _, err := p.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type channelCommand struct {
	Args struct {
		URL string `positional-arg-name:"url" description:"Channel URL or @handle"`
	} `positional-args:"yes" required:"yes"`
}

func (c *channelCommand) Execute([]string) error {
	a, err := current.app()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Ingest.TriggerChannelCollection(current.ctx, c.Args.URL)
	if err != nil {
		return err
	}
	return printJSON(model.CollectResponse{Status: model.StatusSuccess, Channel: res.Channel, Existing: res.Existing})
}

type videosCommand struct {
	ChannelID string `long:"channel-id" description:"Channel id (UC...)"`
	Handle    string `long:"handle" description:"Channel @handle"`
	URL       string `long:"url" description:"Channel URL"`
}

func (c *videosCommand) Execute([]string) error {
	a, err := current.app()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Ingest.TriggerVideoCollection(current.ctx, model.CollectRequest{
		URL:           c.URL,
		ChannelID:     c.ChannelID,
		ChannelHandle: c.Handle,
	})
	if err != nil {
		return err
	}
	return printJSON(model.CollectResponse{
		Status:        model.StatusSuccess,
		JobID:         res.Job.ID,
		Count:         &res.Videos,
		CommentsCount: &res.Comments,
	})
}

type scrapeCommand struct {
	Kind string `long:"kind" choice:"channel" choice:"video" default:"channel" description:"Record kind to scrape"`
	Wait bool   `long:"wait" description:"Poll the job until the webhook delivers"`
	Args struct {
		URL string `positional-arg-name:"url" description:"URL to scrape"`
	} `positional-args:"yes" required:"yes"`
}

func (c *scrapeCommand) Execute([]string) error {
	a, err := current.app()
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.Ingest.DispatchScrape(current.ctx, model.ScrapeRequest{
		URL:  c.Args.URL,
		Kind: model.RecordKind(c.Kind),
		Wait: c.Wait,
	})
	if job != nil {
		if perr := printJSON(model.JobResponse{Status: model.StatusSuccess, Job: job}); perr != nil {
			return perr
		}
	}
	return err
}

type analyzeCommand struct {
	Args struct {
		VideoID string `positional-arg-name:"video-id" description:"Video id"`
	} `positional-args:"yes" required:"yes"`
}

func (c *analyzeCommand) Execute([]string) error {
	a, err := current.app()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Sentiment.Analyze(current.ctx, c.Args.VideoID)
	if err != nil {
		return err
	}
	return printJSON(model.AnalysisResponse{
		Status:           model.StatusSuccess,
		Sentiment:        res.Sentiment,
		Summary:          res.Summary,
		SummaryDegraded:  res.Degraded,
		CommentsAnalyzed: res.CommentsAnalyzed,
	})
}

type migrateCommand struct {
	Down bool `long:"down" description:"Roll back every migration"`
}

func (c *migrateCommand) Execute([]string) error {
	if current.cfg.UsesMemoryStore() {
		return fmt.Errorf("migrate needs a postgres DATABASE_URL")
	}
	version, dirty, err := db.Migrate(current.cfg.DatabaseURL, c.Down)
	if err != nil {
		return err
	}
	current.log.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}
