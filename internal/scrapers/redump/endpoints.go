package redump

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultSiteURL  = "http://redump.org"
	DefaultForumURL = "https://forum.redump.org"
)

// ContentID identifies one catalog entry, disc or WIP submission.
type ContentID int

// String returns the canonical 6-digit zero-padded form.
func (id ContentID) String() string {
	return fmt.Sprintf("%06d", int(id))
}

func ParseContentID(s string) (ContentID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse content id %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse content id %q: negative", s)
	}
	return ContentID(n), nil
}

// Catalog selects between the published disc catalog and the
// work-in-progress submission queue, they have separate url spaces.
type Catalog int

const (
	CatalogDiscs Catalog = iota
	CatalogWIP
)

func (c Catalog) String() string {
	switch c {
	case CatalogDiscs:
		return "discs"
	case CatalogWIP:
		return "wip"
	}
	return fmt.Sprintf("catalog(%d)", int(c))
}

// Endpoints builds every url the archiver talks to from the site and forum bases.
type Endpoints struct {
	site  string
	forum string
}

func NewEndpoints(siteUrl, forumUrl string) (Endpoints, error) {
	for _, raw := range []string{siteUrl, forumUrl} {
		parsed, err := url.Parse(raw)
		if err != nil {
			return Endpoints{}, err
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return Endpoints{}, fmt.Errorf("endpoint %q must be an absolute url", raw)
		}
	}
	return Endpoints{
		site:  strings.TrimRight(siteUrl, "/"),
		forum: strings.TrimRight(forumUrl, "/"),
	}, nil
}

func DefaultEndpoints() Endpoints {
	return Endpoints{site: DefaultSiteURL, forum: DefaultForumURL}
}

func (e Endpoints) Site() string  { return e.site }
func (e Endpoints) Forum() string { return e.forum }

// Hosts returns the hostnames redirects are allowed to go to.
func (e Endpoints) Hosts() []string {
	var hosts []string
	for _, raw := range []string{e.site, e.forum} {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		hosts = append(hosts, parsed.Hostname())
	}
	return hosts
}

func (e Endpoints) DetailPage(catalog Catalog, id ContentID) string {
	if catalog == CatalogWIP {
		return fmt.Sprintf("%s/newdisc/%d/", e.site, int(id))
	}
	return fmt.Sprintf("%s/disc/%d/", e.site, int(id))
}

func (e Endpoints) Artifact(id ContentID, artifact Artifact) string {
	return e.DetailPage(CatalogDiscs, id) + artifact.Suffix
}

func (e Endpoints) LastModified(page int) string {
	return fmt.Sprintf("%s/discs/sort/modified/dir/desc?page=%d", e.site, page)
}

func (e Endpoints) UserListing(username string, page int) string {
	return fmt.Sprintf("%s/discs/dumper/%s/?page=%d", e.site, url.PathEscape(username), page)
}

func (e Endpoints) QuickSearch(query string, page int) string {
	return fmt.Sprintf("%s/discs/quicksearch/%s/?page=%d", e.site, url.PathEscape(query), page)
}

func (e Endpoints) FullSearch(query string, page int) string {
	return fmt.Sprintf("%s/results/%s/?page=%d", e.site, url.PathEscape(query), page)
}

func (e Endpoints) WIPListing() string {
	return e.site + "/discs-wip/"
}

func (e Endpoints) Pack(pack PackType, system System) string {
	return fmt.Sprintf("%s/%s/%s/", e.site, pack.Path, system.Short)
}

func (e Endpoints) LoginForm() string {
	return e.forum + "/login/"
}

func (e Endpoints) LoginPost() string {
	return e.forum + "/login/?action=in"
}

// StaffMarker is the forum link only rendered for staff accounts.
func (e Endpoints) StaffMarker() string {
	return fmt.Sprintf(`<a href="%s/forum/9/staff/">Staff</a>`, e.forum)
}
