package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"

	"redumparchive/internal/archive"
	"redumparchive/internal/scrapers/redump"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
)

const (
	report_packs_download = "packs.download"
	report_packs_place    = "packs.place"
)

const (
	SkipUnavailable = "unavailable"
	SkipRestricted  = "restricted"
	SkipExists      = "exists"
	SkipFailed      = "failed"
)

type PackRequest struct {
	Types []redump.PackType
	// Systems defaults to every known system.
	Systems []redump.System
	// Subfolders places each pack under a folder named after its system.
	Subfolders bool
}

func (r PackRequest) Validate() error {
	if len(r.Types) == 0 {
		return fmt.Errorf("%w: at least one pack type is required", ErrInvalidRequest)
	}
	return nil
}

// Packs downloads one bundled archive per requested type and system. Packs
// that already exist locally are left alone. It returns the paths written.
func (c *Crawler) Packs(ctx context.Context, req PackRequest) ([]string, error) {
	written := []string{}

	err := req.Validate()
	if err != nil {
		return written, err
	}
	systems := req.Systems
	if len(systems) == 0 {
		systems = redump.Systems
	}

	for _, pack := range req.Types {
		for _, system := range systems {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}

			skip := func(reason string) {
				c.emit(Event{Kind: EventPackSkipped, Pack: pack.Name, System: system.Short, Reason: reason})
			}
			if !system.Offers(pack) {
				skip(SkipUnavailable)
				continue
			}
			if system.Banned && !c.fetcher.IsAuthenticated() {
				skip(SkipRestricted)
				continue
			}

			path, size, err := c.downloadPack(ctx, pack, system, req.Subfolders)
			switch {
			case errors.Is(err, archive.ErrPackExists):
				skip(SkipExists)
			case err != nil:
				skip(SkipFailed)
			default:
				written = append(written, path)
				c.emit(Event{
					Kind:   EventPackDownloaded,
					Pack:   pack.Name,
					System: system.Short,
					Path:   path,
					Size:   size,
				})
			}
		}
	}

	c.tel.ReportCount("packs.written", int64(len(written)))
	return written, nil
}

func (c *Crawler) downloadPack(ctx context.Context, pack redump.PackType, system redump.System, subfolders bool) (string, int, error) {
	ctx, span := tracer.Start(ctx, "crawler:downloadPack")
	defer span.End()
	span.SetAttributes(
		attribute.String("redump.pack", pack.Name),
		attribute.String("redump.system", system.Short),
	)

	url := c.fetcher.Endpoints().Pack(pack, system)
	download, err := c.fetcher.FetchBytes(ctx, url)
	if err != nil {
		c.tel.ReportWarning(report_packs_download, err, url)
		return "", 0, err
	}

	temp, err := c.layout.CreateTemp()
	if err != nil {
		c.tel.ReportBroken(report_packs_place, err, url)
		return "", 0, err
	}
	_, err = temp.Write(download.Body)
	closeErr := temp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		c.tel.ReportBroken(report_packs_place, err, temp.Name())
		os.Remove(temp.Name())
		return "", 0, err
	}

	subfolder := ""
	if subfolders {
		subfolder = system.Short
	}
	path, err := c.layout.PlacePack(temp.Name(), download.Filename, subfolder)
	if errors.Is(err, archive.ErrPackExists) {
		c.tel.ReportDebug("pack already present", path)
		return path, len(download.Body), err
	}
	if err != nil {
		c.tel.ReportWarning(report_packs_place, err, url)
		return "", 0, err
	}

	c.tel.ReportDebug("pack downloaded", path, humanize.Bytes(uint64(len(download.Body))))
	return path, len(download.Body), nil
}
