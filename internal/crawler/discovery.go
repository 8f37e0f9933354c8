package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"redumparchive/internal/scrapers/redump"

	"go.opentelemetry.io/otel/attribute"
)

const (
	report_discovery_listing = "discovery.listing"
	report_discovery_run     = "discovery.run"
)

// RangeBatchSize is the most ids of a range run processed between two
// cancellation checks.
const RangeBatchSize = 100

var (
	ErrInvalidRequest = errors.New("invalid discovery request")
	ErrStaffRequired  = errors.New("the wip queue is only visible to staff")
)

type Mode int

const (
	ModeRange Mode = iota
	ModeLastModified
	ModeUser
	ModeQuery
	ModeWIP
)

func (m Mode) String() string {
	switch m {
	case ModeRange:
		return "range"
	case ModeLastModified:
		return "last-modified"
	case ModeUser:
		return "user"
	case ModeQuery:
		return "query"
	case ModeWIP:
		return "wip"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Request selects one discovery strategy and its parameters. Only the fields
// belonging to Mode are read.
type Request struct {
	Mode Mode

	Min int
	Max int

	ContinueUntilEmpty bool

	Username string

	Query          string
	Quick          bool
	ReplaceSlashes bool

	// ListOnly returns the discovered ids without fetching them.
	ListOnly bool
}

func (r Request) Validate() error {
	switch r.Mode {
	case ModeRange:
		if r.Min < 0 || r.Max < 0 {
			return fmt.Errorf("%w: range bounds must be non-negative, got [%d, %d]", ErrInvalidRequest, r.Min, r.Max)
		}
		if r.Min > r.Max {
			return fmt.Errorf("%w: range min %d is greater than max %d", ErrInvalidRequest, r.Min, r.Max)
		}
	case ModeLastModified, ModeWIP:
	case ModeUser:
		if strings.TrimSpace(r.Username) == "" {
			return fmt.Errorf("%w: username is required", ErrInvalidRequest)
		}
	case ModeQuery:
		if strings.TrimSpace(r.Query) == "" {
			return fmt.Errorf("%w: query is required", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidRequest, int(r.Mode))
	}
	return nil
}

func (r Request) Catalog() redump.Catalog {
	if r.Mode == ModeWIP {
		return redump.CatalogWIP
	}
	return redump.CatalogDiscs
}

// SubmittedQuery is the query text as it is sent to the site.
func (r Request) SubmittedQuery() string {
	query := strings.TrimSpace(r.Query)
	if r.ReplaceSlashes {
		query = strings.ReplaceAll(query, "/", "-")
	}
	return query
}

// Result is the outcome of one discovery run.
type Result struct {
	// IDs holds the persisted ids (or every discovered id for list-only runs)
	// in discovery order.
	IDs        []redump.ContentID
	Discovered int
	Outcomes   map[Outcome]int
}

// source produces candidate ids one batch at a time, done reports that no
// further batches exist. The next batch is never requested before the
// previous one has been fully processed.
type source interface {
	next(ctx context.Context) (batch []redump.ContentID, done bool)
}

type rangeSource struct {
	cursor int
	max    int
}

func (s *rangeSource) next(context.Context) ([]redump.ContentID, bool) {
	if s.cursor > s.max {
		return nil, true
	}
	end := s.max
	if s.max-s.cursor >= RangeBatchSize {
		end = s.cursor + RangeBatchSize - 1
	}
	batch := make([]redump.ContentID, 0, end-s.cursor+1)
	for id := s.cursor; ; id++ {
		batch = append(batch, redump.ContentID(id))
		if id == end {
			break
		}
	}
	if end == s.max {
		return batch, true
	}
	s.cursor = end + 1
	return batch, false
}

// listingSource walks paginated listing pages.
type listingSource struct {
	c       *Crawler
	catalog redump.Catalog
	url     func(page int) string
	// maxPages <= 0 means until the listing runs out.
	maxPages int

	page int
	seen map[redump.ContentID]bool
}

func (s *listingSource) next(ctx context.Context) ([]redump.ContentID, bool) {
	s.page++
	last := s.maxPages > 0 && s.page >= s.maxPages

	url := s.url(s.page)
	page, err := s.c.fetcher.FetchText(ctx, url)
	if err != nil {
		s.c.tel.ReportWarning(report_discovery_listing, err, url)
		return nil, true
	}
	s.c.emit(Event{Kind: EventPageFetched, Page: s.page, URL: url})

	parser := s.c.parser
	if parser.IsEmptyResult(page) {
		return nil, true
	}
	if parser.IsSinglePageRedirect(page) {
		id, ok := parser.ExtractSingleID(page)
		if !ok || s.seen[id] {
			return nil, true
		}
		s.seen[id] = true
		return []redump.ContentID{id}, true
	}

	var batch []redump.ContentID
	for _, id := range parser.ExtractListedIDs(page, s.catalog) {
		if s.seen[id] {
			continue
		}
		s.seen[id] = true
		batch = append(batch, id)
	}
	// a page with nothing new means the site is repeating its last page
	if len(batch) == 0 {
		return nil, true
	}
	return batch, last
}

func (c *Crawler) newSource(req Request) source {
	endpoints := c.fetcher.Endpoints()
	listing := func(url func(int) string, maxPages int) source {
		return &listingSource{
			c:        c,
			catalog:  req.Catalog(),
			url:      url,
			maxPages: maxPages,
			seen:     map[redump.ContentID]bool{},
		}
	}

	switch req.Mode {
	case ModeRange:
		return &rangeSource{cursor: req.Min, max: req.Max}
	case ModeLastModified:
		maxPages := 1
		if req.ContinueUntilEmpty {
			maxPages = 0
		}
		return listing(endpoints.LastModified, maxPages)
	case ModeUser:
		username := strings.TrimSpace(req.Username)
		return listing(func(page int) string {
			return endpoints.UserListing(username, page)
		}, 0)
	case ModeQuery:
		query := req.SubmittedQuery()
		return listing(func(page int) string {
			if req.Quick {
				return endpoints.QuickSearch(query, page)
			}
			return endpoints.FullSearch(query, page)
		}, 0)
	case ModeWIP:
		return listing(func(int) string {
			return endpoints.WIPListing()
		}, 1)
	}
	return nil
}

// Run discovers ids with the strategy selected by req and feeds them through
// the fetch pipeline. Only an invalid request fails before any network
// activity. When ctx is cancelled the in-flight ids are finished and the
// partial result is returned along with the context error.
func (c *Crawler) Run(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "crawler:Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("redump.mode", req.Mode.String()),
		attribute.Bool("redump.list_only", req.ListOnly),
	)

	result := Result{IDs: []redump.ContentID{}, Outcomes: map[Outcome]int{}}

	err := req.Validate()
	if err != nil {
		return result, err
	}
	if req.Mode == ModeWIP && !c.fetcher.IsStaff() {
		return result, ErrStaffRequired
	}

	layout := c.layout
	if req.Catalog() == redump.CatalogWIP && !req.ListOnly {
		layout, err = c.layout.Sub("wip")
		if err != nil {
			c.tel.ReportBroken(report_discovery_run, err)
			return result, err
		}
	}

	src := c.newSource(req)
	for {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		batch, done := src.next(ctx)
		result.Discovered += len(batch)
		for _, id := range batch {
			c.emit(Event{Kind: EventIDDiscovered, ID: id, Catalog: req.Catalog()})
		}

		if req.ListOnly {
			result.IDs = append(result.IDs, batch...)
		} else if len(batch) > 0 {
			outcomes := c.processBatch(ctx, req.Catalog(), layout, batch)
			for i, outcome := range outcomes {
				if outcome == OutcomeSkipped {
					continue
				}
				result.Outcomes[outcome]++
				if outcome == OutcomePersisted {
					result.IDs = append(result.IDs, batch[i])
				}
			}
		}

		if done {
			break
		}
	}

	c.tel.ReportCount("discovery.discovered", int64(result.Discovered))
	c.tel.ReportCount("discovery.persisted", int64(len(result.IDs)))
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}
