package crawler

import (
	"context"
	"sync"

	"redumparchive/internal/archive"
	"redumparchive/internal/components/assert"
	"redumparchive/internal/components/telemetry"
	"redumparchive/internal/scrapers/redump"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("redumparchive/crawler")
	meter  = otel.Meter("redumparchive/crawler")
)

// Fetcher is the part of the catalog session the crawler needs,
// *redump.Client implements it.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchBytes(ctx context.Context, url string) (redump.Download, error)
	IsAuthenticated() bool
	IsStaff() bool
	Endpoints() redump.Endpoints
	Parser() redump.Parser
}

// Record is the final state of one processed content id.
type Record struct {
	ID      redump.ContentID
	Catalog redump.Catalog
	Outcome Outcome
	Marker  string
}

// Recorder persists per-id outcomes. Implementations must be safe for
// concurrent use and must not fail the run.
type Recorder interface {
	Record(ctx context.Context, record Record)
}

type Options struct {
	// Tombstone moves local copies of ids that no longer exist upstream aside.
	Tombstone bool
	// Workers bounds how many ids of one batch are processed at once, defaults to 1.
	Workers  int
	Progress ProgressFunc
	Recorder Recorder
}

type Crawler struct {
	fetcher Fetcher
	parser  redump.Parser
	layout  archive.Layout
	opts    Options
	tel     telemetry.API

	progressMu sync.Mutex
	outcomes   metric.Int64Counter
}

func NewCrawler(fetcher Fetcher, layout archive.Layout, opts Options, tel telemetry.API) *Crawler {
	assert.NotNil(fetcher)
	assert.NotNil(tel)
	assert.NonNegative("workers", opts.Workers)

	if opts.Workers == 0 {
		opts.Workers = 1
	}

	outcomes, err := meter.Int64Counter(
		"redump.crawler.outcomes",
		metric.WithDescription("content ids processed, by outcome"),
	)
	if err != nil {
		tel.ReportWarning("crawler: meter.outcomes", err)
	}

	return &Crawler{
		fetcher:  fetcher,
		parser:   fetcher.Parser(),
		layout:   layout,
		opts:     opts,
		tel:      telemetry.NewScopedAPI("crawler", tel),
		outcomes: outcomes,
	}
}

func (c *Crawler) emit(event Event) {
	if c.opts.Progress == nil {
		return
	}
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.opts.Progress(event)
}

func (c *Crawler) record(ctx context.Context, record Record) {
	if c.opts.Recorder == nil {
		return
	}
	c.opts.Recorder.Record(ctx, record)
}
