package crawler

import (
	"context"
	"fmt"

	"redumparchive/internal/archive"
	"redumparchive/internal/scrapers/redump"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	report_pipeline_tombstone      = "pipeline.tombstone"
	report_pipeline_read_primary   = "pipeline.read-primary"
	report_pipeline_fetch_artifact = "pipeline.fetch-artifact"
	report_pipeline_write          = "pipeline.write"
)

// Outcome is the terminal state of one content id.
type Outcome int

const (
	// OutcomeSkipped ids were discovered but never processed because the run was cancelled.
	OutcomeSkipped Outcome = iota
	OutcomeNotFound
	OutcomeUnchanged
	OutcomePersisted
	// OutcomeFailed ids could not be written locally.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomePersisted:
		return "persisted"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// processBatch runs the pipeline over batch with up to Workers ids in
// flight, outcomes are returned in batch order. Ids not yet started when
// ctx is cancelled are left as OutcomeSkipped, started ones always finish.
func (c *Crawler) processBatch(ctx context.Context, catalog redump.Catalog, layout archive.Layout, batch []redump.ContentID) []Outcome {
	outcomes := make([]Outcome, len(batch))

	group := errgroup.Group{}
	group.SetLimit(c.opts.Workers)
	for i, id := range batch {
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = c.processID(context.WithoutCancel(ctx), catalog, layout, id)
			return nil
		})
	}
	group.Wait()

	return outcomes
}

func (c *Crawler) processID(ctx context.Context, catalog redump.Catalog, layout archive.Layout, id redump.ContentID) Outcome {
	ctx, span := tracer.Start(ctx, "crawler:processID")
	defer span.End()
	span.SetAttributes(
		attribute.Int("redump.id", int(id)),
		attribute.String("redump.catalog", catalog.String()),
	)

	outcome, marker := c.fetchID(ctx, catalog, layout, id)

	span.SetAttributes(attribute.String("redump.outcome", outcome.String()))
	if outcome == OutcomeFailed {
		span.SetStatus(codes.Error, "local write failed")
	}
	if c.outcomes != nil {
		c.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
	}

	c.record(ctx, Record{ID: id, Catalog: catalog, Outcome: outcome, Marker: marker})
	c.emit(Event{Kind: EventIDProcessed, ID: id, Catalog: catalog, Outcome: outcome})
	return outcome
}

func (c *Crawler) fetchID(ctx context.Context, catalog redump.Catalog, layout archive.Layout, id redump.ContentID) (Outcome, string) {
	page, err := c.fetcher.FetchText(ctx, c.fetcher.Endpoints().DetailPage(catalog, id))
	if err != nil || c.parser.NotFound(page, id, catalog) {
		if c.opts.Tombstone {
			_, err := layout.Tombstone(id)
			if err != nil {
				c.tel.ReportWarning(report_pipeline_tombstone, err, id)
			}
		}
		return OutcomeNotFound, ""
	}

	marker, _ := c.parser.ExtractChangeMarker(page, catalog)

	previous, exists, err := layout.ReadPrimary(id)
	if err != nil {
		c.tel.ReportBroken(report_pipeline_read_primary, err, id)
		return OutcomeFailed, marker
	}
	if exists {
		// a missing marker on both sides also counts as unchanged
		previousMarker, _ := c.parser.ExtractChangeMarker(previous, catalog)
		if previousMarker == marker {
			return OutcomeUnchanged, marker
		}
	}

	err = layout.EnsureDir(id)
	if err != nil {
		c.tel.ReportBroken(report_pipeline_write, err, layout.Dir(id))
		return OutcomeFailed, marker
	}

	for _, artifact := range redump.Manifest {
		if artifact.RequiresStaff && !c.fetcher.IsStaff() {
			continue
		}
		if !c.parser.ArtifactPresent(page, id, artifact) {
			continue
		}
		c.fetchArtifact(ctx, layout, id, artifact)
	}

	err = layout.WritePrimary(id, page)
	if err != nil {
		c.tel.ReportBroken(report_pipeline_write, err, layout.PrimaryPath(id))
		return OutcomeFailed, marker
	}
	return OutcomePersisted, marker
}

// fetchArtifact downloads and stores one artifact, failures only affect
// that artifact.
func (c *Crawler) fetchArtifact(ctx context.Context, layout archive.Layout, id redump.ContentID, artifact redump.Artifact) {
	url := c.fetcher.Endpoints().Artifact(id, artifact)
	download, err := c.fetcher.FetchBytes(ctx, url)
	if err != nil {
		c.tel.ReportWarning(report_pipeline_fetch_artifact, err, id, string(artifact.Kind))
		return
	}
	err = layout.WriteArtifact(id, artifact.Filename(id), download.Body)
	if err != nil {
		c.tel.ReportBroken(report_pipeline_write, err, id, string(artifact.Kind))
	}
}
