package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"auctionflow/config"
	"auctionflow/internal/catalog"
	"auctionflow/internal/fetch"
	"auctionflow/internal/notify"
	"auctionflow/internal/ratelimit"
	"auctionflow/internal/rules"
	"auctionflow/internal/selector"
	"auctionflow/internal/store"
	"auctionflow/logger"
	"auctionflow/models"
	"auctionflow/writer"
)

type app struct {
	cfg      *config.Config
	log      *logger.Log
	client   *fetch.Client
	db       *store.DB
	engine   *rules.Engine
	bonuses  config.BonusTable
	notifier *notify.Discord
	archiver *writer.ObservationArchiver

	clientID     string
	clientSecret string
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single ingestion cycle and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Auctionflow.Name,
		"version": cfg.Auctionflow.Version,
	}).Info("starting auctionflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}
	if cfg.Logging.ReportIntervalSec > 0 {
		logger.StartReport(ctx, log, time.Duration(cfg.Logging.ReportIntervalSec)*time.Second)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to initialize")
		os.Exit(1)
	}
	defer a.db.Close()

	if *once {
		if err := a.run(ctx); err != nil {
			log.WithError(err).Error("run failed")
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Scheduler.Cron, func() {
		if err := a.run(ctx); err != nil {
			log.WithError(err).Error("run failed")
		}
	}); err != nil {
		log.WithError(err).Error("invalid cron schedule")
		os.Exit(1)
	}
	c.Start()
	log.WithFields(logger.Fields{"schedule": cfg.Scheduler.Cron}).Info("scheduler started")

	// First run happens immediately; cron handles the rest.
	go func() {
		if err := a.run(ctx); err != nil {
			log.WithError(err).Error("run failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	cancel()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Info("auctionflow stopped")
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Log) (*app, error) {
	limiter, err := ratelimit.New(cfg.Source.RequestsPerSecond)
	if err != nil {
		return nil, err
	}

	bonuses, err := config.LoadBonuses(cfg.Paths.BonusesFile)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Storage.SQLite.Path)
	if err != nil {
		return nil, err
	}

	archiver, err := writer.NewObservationArchiver(ctx, cfg.Storage.S3, cfg.Auctionflow.Version, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	notifierCfg := cfg.Notifier
	if url := os.Getenv("DISCORD_WEBHOOK_URL"); url != "" {
		notifierCfg.WebhookURL = url
	}

	return &app{
		cfg:          cfg,
		log:          log,
		client:       fetch.NewClient(cfg.Source, limiter),
		db:           db,
		engine:       rules.NewEngine(&cfg.Rules, bonuses),
		bonuses:      bonuses,
		notifier:     notify.NewDiscord(notifierCfg, log),
		archiver:     archiver,
		clientID:     os.Getenv("BLIZZARD_CLIENT_ID"),
		clientSecret: os.Getenv("BLIZZARD_CLIENT_SECRET"),
	}, nil
}

// run executes one full ingestion cycle: fetch snapshots and item metadata,
// parse, persist minima, qualify against the historical baseline, announce.
func (a *app) run(ctx context.Context) error {
	runID := uuid.New().String()
	log := a.log.WithComponent("main").WithRun(runID)
	summary := models.RunSummary{RunID: runID, StartedAt: time.Now().UTC()}

	if err := a.client.ExchangeToken(ctx, a.clientID, a.clientSecret); err != nil {
		return err
	}

	realmIDs, err := a.client.ConnectedRealmIDs(ctx)
	if err != nil {
		return err
	}
	realmIDs = filterRealms(realmIDs, a.cfg.Source.Realms)
	log.WithFields(logger.Fields{"realms": len(realmIDs)}).Info("realm set resolved")

	fetchRes, err := a.client.FetchAuctions(ctx, realmIDs, a.cfg.Paths.AuctionsDir, a.cfg.Fetcher.MaxWorkers)
	if err != nil {
		return err
	}
	summary.SnapshotsFetched = fetchRes.Fetched
	summary.SnapshotsFailed = fetchRes.Failed

	cat := catalog.New(a.cfg.Paths.ItemsDir)
	sel := selector.New(a.engine, cat, a.bonuses, a.log)

	parseRes, err := sel.ParseSnapshots(ctx, a.cfg.Paths.AuctionsDir, a.cfg.Fetcher.MaxWorkers)
	if err != nil {
		return err
	}
	summary.SnapshotsParsed = parseRes.Parsed
	summary.SnapshotsBad = parseRes.Bad
	summary.ListingsSeen = len(parseRes.Listings)

	// Top up item metadata for anything never seen before.
	itemIDs := make(map[int64]struct{})
	for _, l := range parseRes.Listings {
		itemIDs[l.ItemID] = struct{}{}
	}
	dirs := fetch.ItemDirs{
		ItemsDir:        a.cfg.Paths.ItemsDir,
		MediaDir:        a.cfg.Paths.MediaDir,
		EncounteredFile: a.cfg.Paths.EncounteredFile,
	}
	if _, err := a.client.FetchNewItems(ctx, itemIDs, dirs, a.cfg.Fetcher.MaxWorkers); err != nil {
		return err
	}

	observations := selector.Minima(a.bonuses, parseRes.Listings, runID)
	if err := a.db.RecordRun(ctx, observations); err != nil {
		return err
	}

	averages, err := a.db.HistoricalAverages(ctx)
	if err != nil {
		return err
	}
	announced, err := a.db.Announced(ctx)
	if err != nil {
		return err
	}

	candidates := sel.Select(ctx, parseRes.Listings, averages, announced, a.cfg.Rules.Defaults.TopN, a.cfg.Fetcher.MaxWorkers)
	summary.CandidatesFound = len(candidates)

	if len(candidates) > 0 && a.notifier.Enabled() {
		if err := a.notifier.Deliver(ctx, candidates); err != nil {
			// Unannounced candidates stay eligible for the next run.
			log.WithError(err).Warn("delivery failed; candidates not marked announced")
		} else if err := a.db.MarkAnnounced(ctx, candidates, time.Now().UTC()); err != nil {
			return err
		} else {
			summary.CandidatesAnnounced = len(candidates)
		}
	}
	logger.AddCandidates(summary.CandidatesFound, summary.CandidatesAnnounced)

	if a.archiver != nil {
		if err := a.archiver.Archive(ctx, runID, observations, summary.StartedAt); err != nil {
			log.WithError(err).Warn("observation archive failed")
		}
	}

	summary.FinishedAt = time.Now().UTC()
	log.WithFields(logger.Fields{
		"snapshots_fetched":    summary.SnapshotsFetched,
		"snapshots_failed":     summary.SnapshotsFailed,
		"snapshots_parsed":     summary.SnapshotsParsed,
		"snapshots_bad":        summary.SnapshotsBad,
		"listings_seen":        summary.ListingsSeen,
		"candidates_found":     summary.CandidatesFound,
		"candidates_announced": summary.CandidatesAnnounced,
	}).Info("run finished")
	logger.LogPerformanceEntry(log, "main", "run", summary.FinishedAt.Sub(summary.StartedAt), nil)
	return nil
}

// filterRealms applies the configured allowlist; an empty allowlist keeps
// every realm.
func filterRealms(realmIDs, allowlist []string) []string {
	if len(allowlist) == 0 {
		return realmIDs
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, id := range allowlist {
		allowed[strings.TrimSpace(id)] = struct{}{}
	}
	var out []string
	for _, id := range realmIDs {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
