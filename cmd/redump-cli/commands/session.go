package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"redumparchive/internal/archive"
	"redumparchive/internal/components/chrono"
	"redumparchive/internal/components/telemetry"
	"redumparchive/internal/crawler"
	"redumparchive/internal/journal"
	"redumparchive/internal/scrapers/redump"
	"redumparchive/lib/restyutil"

	"github.com/spf13/cobra"
)

// session is everything a command needs to talk to the site and write
// to the output root.
type session struct {
	cfg     Config
	tel     telemetry.API
	client  *redump.Client
	layout  archive.Layout
	journal *journal.Journal

	lock     *archive.Lock
	otel     telemetry.Telemetry
	stopPerf context.CancelFunc
}

func openSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, tel: telemetry.NewSlogAPI(nil)}
	if cfg.Telemetry.Enabled() {
		s.otel, err = telemetry.Setup(ctx, "redump-cli", cfg.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("setup telemetry: %w", err)
		}
		perfCtx, cancel := context.WithCancel(ctx)
		s.stopPerf = cancel
		telemetry.InstrumentPerfStats(perfCtx, s.tel, 30*time.Second)
	}

	endpoints, err := redump.NewEndpoints(cfg.SiteUrl, cfg.ForumUrl)
	if err != nil {
		s.Close()
		return nil, err
	}

	var dump restyutil.Output
	if cfg.DumpHttp != "" {
		out, err := restyutil.NewFilesystemOutput(cfg.DumpHttp)
		if err != nil {
			s.Close()
			return nil, err
		}
		dump = out
	}

	transport, err := redump.NewRestyTransport(redump.RestyOptions{
		Endpoints:         endpoints,
		RequestsPerSecond: cfg.RequestsPerSecond,
		CloudflareBypass:  cfg.CloudflareBypass,
		Dump:              dump,
	}, s.tel)
	if err != nil {
		s.Close()
		return nil, err
	}
	retryLimit := cfg.Retries
	if retryLimit <= 0 {
		retryLimit = redump.NoRetries
	}
	s.client = redump.NewClient(transport, redump.ClientOptions{
		Endpoints:  endpoints,
		RetryLimit: retryLimit,
	}, chrono.NewStandardTime(), s.tel)

	s.layout, err = archive.NewLayout(cfg.OutputDir)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.lock, err = s.layout.Lock()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.journal, err = journal.Open(ctx, journal.Path(s.layout.Root()), chrono.NewStandardTime(), s.tel)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.login(ctx)
	return s, nil
}

// login never fails the command, an anonymous session just sees less.
func (s *session) login(ctx context.Context) {
	if s.cfg.Username == "" && s.cfg.Password == "" {
		slog.Info("no credentials configured, continuing anonymously")
		return
	}
	outcome, err := s.client.Login(ctx, s.cfg.Username, s.cfg.Password)
	switch {
	case outcome == redump.AuthSuccess:
		slog.Info("logged in", "username", s.cfg.Username, "staff", s.client.IsStaff())
	case errors.Is(err, redump.ErrInvalidCredentials):
		slog.Warn("login rejected, continuing anonymously", "username", s.cfg.Username)
	default:
		slog.Warn("login failed, continuing anonymously", "outcome", outcome.String(), "err", err)
	}
}

func (s *session) crawler(progress crawler.ProgressFunc, recorder crawler.Recorder) *crawler.Crawler {
	return crawler.NewCrawler(s.client, s.layout, crawler.Options{
		Tombstone: *rename,
		Workers:   s.cfg.Workers,
		Progress:  progress,
		Recorder:  recorder,
	}, s.tel)
}

func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.journal != nil {
		s.journal.Close()
	}
	if s.lock != nil {
		err := s.lock.Release()
		if err != nil {
			slog.Warn("failed to release output lock", "err", err)
		}
	}
	if s.stopPerf != nil {
		s.stopPerf()
	}
	err := s.otel.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}

func logProgress(e crawler.Event) {
	switch e.Kind {
	case crawler.EventPageFetched:
		slog.Info("listing page", "page", e.Page, "url", e.URL)
	case crawler.EventIDDiscovered:
		slog.Debug("discovered", "id", e.ID.String(), "catalog", e.Catalog.String())
	case crawler.EventIDProcessed:
		level := slog.LevelDebug
		if e.Outcome == crawler.OutcomePersisted || e.Outcome == crawler.OutcomeFailed {
			level = slog.LevelInfo
		}
		slog.Log(context.Background(), level, "processed", "id", e.ID.String(), "outcome", e.Outcome.String())
	case crawler.EventPackDownloaded:
		slog.Info("pack downloaded", "pack", e.Pack, "system", e.System, "path", e.Path)
	case crawler.EventPackSkipped:
		slog.Info("pack skipped", "pack", e.Pack, "system", e.System, "reason", e.Reason)
	}
}
