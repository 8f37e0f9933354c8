package redump

import (
	"fmt"
	"regexp"
	"strings"

	"redumparchive/lib/htmlutil"
)

// Parser extracts every signal the archiver needs from raw page text.
// All site-specific markers live behind this interface.
type Parser interface {
	// IsEmptyResult reports whether a listing page says there are no results.
	IsEmptyResult(page string) bool
	// IsSinglePageRedirect reports whether a listing url resolved straight to a disc page.
	IsSinglePageRedirect(page string) bool
	ExtractSingleID(page string) (ContentID, bool)
	// ExtractListedIDs returns the detail links of page in document order.
	ExtractListedIDs(page string, catalog Catalog) []ContentID
	ExtractChangeMarker(page string, catalog Catalog) (string, bool)
	ArtifactPresent(page string, id ContentID, artifact Artifact) bool
	NotFound(page string, id ContentID, catalog Catalog) bool

	LoginToken(page string) (string, bool)
	BadCredentials(page string) bool
	StaffArea(page string) bool
}

const (
	noResultsText      = "No discs found."
	singleResultMarker = "<b>Download:</b>"
	badCredentialsText = "Incorrect username and/or password."
)

var (
	singleIdRegex   = regexp.MustCompile(`/disc/(\d+)/sfv/`)
	discLinkPath    = regexp.MustCompile(`^/disc/(\d+)/$`)
	wipLinkPath     = regexp.MustCompile(`^/newdisc/(\d+)/$`)
	lastModifiedRe  = regexp.MustCompile(`<tr><th>Last modified</th><td>(.*?)</td></tr>`)
	fullMatchIdsRe  = regexp.MustCompile(`<td class="static">full match ids: (.*?)</td>`)
	csrfTokenRegexp = regexp.MustCompile(`<input type="hidden" name="csrf_token" value="(.*?)"`)
)

// PageParser is the Parser for the redump.org html.
type PageParser struct {
	staffMarker string
}

func NewPageParser(endpoints Endpoints) PageParser {
	return PageParser{staffMarker: endpoints.StaffMarker()}
}

func (PageParser) IsEmptyResult(page string) bool {
	return strings.Contains(page, noResultsText)
}

func (PageParser) IsSinglePageRedirect(page string) bool {
	return strings.Contains(page, singleResultMarker)
}

func (PageParser) ExtractSingleID(page string) (ContentID, bool) {
	groups := singleIdRegex.FindStringSubmatch(page)
	if len(groups) < 2 {
		return 0, false
	}
	id, err := ParseContentID(groups[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

func (PageParser) ExtractListedIDs(page string, catalog Catalog) []ContentID {
	pattern := discLinkPath
	if catalog == CatalogWIP {
		pattern = wipLinkPath
	}

	doc, err := htmlutil.ParseDocument(page)
	if err != nil {
		return nil
	}

	ids := []ContentID{}
	seen := map[ContentID]bool{}
	for _, a := range htmlutil.GetAnchors(nil, doc.Find("a[href]")) {
		groups := pattern.FindStringSubmatch(a.Url.Path)
		if len(groups) < 2 {
			continue
		}
		id, err := ParseContentID(groups[1])
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func (PageParser) ExtractChangeMarker(page string, catalog Catalog) (string, bool) {
	re := lastModifiedRe
	if catalog == CatalogWIP {
		re = fullMatchIdsRe
	}
	groups := re.FindStringSubmatch(page)
	if len(groups) < 2 {
		return "", false
	}
	marker := strings.TrimSpace(groups[1])
	return marker, marker != ""
}

func (PageParser) ArtifactPresent(page string, id ContentID, artifact Artifact) bool {
	return strings.Contains(page, fmt.Sprintf(`<a href="/disc/%d/%s"`, int(id), artifact.Suffix))
}

func (PageParser) NotFound(page string, id ContentID, catalog Catalog) bool {
	text := fmt.Sprintf(`Disc with ID "%d" doesn't exist`, int(id))
	if catalog == CatalogWIP {
		text = fmt.Sprintf(`WIP disc with ID "%d" doesn't exist`, int(id))
	}
	return strings.Contains(page, text)
}

func (PageParser) LoginToken(page string) (string, bool) {
	doc, err := htmlutil.ParseDocument(page)
	if err == nil {
		token := doc.Find("input[name=csrf_token]").AttrOr("value", "")
		if token != "" {
			return token, true
		}
	}
	groups := csrfTokenRegexp.FindStringSubmatch(page)
	if len(groups) < 2 || groups[1] == "" {
		return "", false
	}
	return groups[1], true
}

func (PageParser) BadCredentials(page string) bool {
	return strings.Contains(page, badCredentialsText)
}

func (p PageParser) StaffArea(page string) bool {
	return strings.Contains(page, p.staffMarker)
}
