package crawler

import (
	"fmt"

	"redumparchive/internal/scrapers/redump"
)

type EventKind int

const (
	EventPageFetched EventKind = iota
	EventIDDiscovered
	EventIDProcessed
	EventPackDownloaded
	EventPackSkipped
)

func (k EventKind) String() string {
	switch k {
	case EventPageFetched:
		return "page_fetched"
	case EventIDDiscovered:
		return "id_discovered"
	case EventIDProcessed:
		return "id_processed"
	case EventPackDownloaded:
		return "pack_downloaded"
	case EventPackSkipped:
		return "pack_skipped"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is a progress notification, only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// listing pages
	Page int
	URL  string

	// content ids
	ID      redump.ContentID
	Catalog redump.Catalog
	Outcome Outcome

	// packs
	Pack   string
	System string
	Path   string
	Size   int
	Reason string
}

// ProgressFunc receives events in the order they happen. It may be called from
// several workers but never concurrently.
type ProgressFunc func(Event)
