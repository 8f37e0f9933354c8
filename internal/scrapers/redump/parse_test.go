package redump

import (
	_ "embed"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var (
	//go:embed testdata/disc_full.html
	discFullPage string
	//go:embed testdata/disc_bare.html
	discBarePage string
	//go:embed testdata/disc_missing.html
	discMissingPage string
	//go:embed testdata/wip_detail.html
	wipDetailPage string
	//go:embed testdata/wip_missing.html
	wipMissingPage string
	//go:embed testdata/listing.html
	listingPage string
	//go:embed testdata/listing_empty.html
	listingEmptyPage string
	//go:embed testdata/listing_wip.html
	listingWipPage string
	//go:embed testdata/login_form.html
	loginFormPage string
	//go:embed testdata/login_bad.html
	loginBadPage string
	//go:embed testdata/login_staff.html
	loginStaffPage string
	//go:embed testdata/login_member.html
	loginMemberPage string
)

func TestListingSentinels(t *testing.T) {
	parser := NewPageParser(DefaultEndpoints())

	require.True(t, parser.IsEmptyResult(listingEmptyPage))
	require.False(t, parser.IsEmptyResult(listingPage))

	require.True(t, parser.IsSinglePageRedirect(discFullPage))
	require.False(t, parser.IsSinglePageRedirect(listingPage))

	id, ok := parser.ExtractSingleID(discFullPage)
	require.True(t, ok)
	require.Equal(t, ContentID(4321), id)

	_, ok = parser.ExtractSingleID(discBarePage)
	require.False(t, ok)
}

func TestExtractListedIDs(t *testing.T) {
	parser := NewPageParser(DefaultEndpoints())

	discs := parser.ExtractListedIDs(listingPage, CatalogDiscs)
	if diff := cmp.Diff([]ContentID{300, 12, 45}, discs); diff != "" {
		t.Fatalf("listed disc ids mismatch (-want +got):\n%s", diff)
	}

	wip := parser.ExtractListedIDs(listingWipPage, CatalogWIP)
	if diff := cmp.Diff([]ContentID{501, 502}, wip); diff != "" {
		t.Fatalf("listed wip ids mismatch (-want +got):\n%s", diff)
	}

	require.Empty(t, parser.ExtractListedIDs(listingEmptyPage, CatalogDiscs))
	require.Empty(t, parser.ExtractListedIDs("", CatalogDiscs))
}

func TestExtractChangeMarker(t *testing.T) {
	parser := NewPageParser(DefaultEndpoints())

	table := []struct {
		name     string
		page     string
		catalog  Catalog
		expected string
		found    bool
	}{
		{name: "last modified", page: discFullPage, catalog: CatalogDiscs, expected: "2021-11-02 17:41", found: true},
		{name: "no marker", page: discBarePage, catalog: CatalogDiscs},
		{name: "empty marker", page: "<tr><th>Last modified</th><td> </td></tr>", catalog: CatalogDiscs},
		{name: "full match ids", page: wipDetailPage, catalog: CatalogWIP, expected: "1200, 1201", found: true},
		{name: "disc marker ignored for wip", page: discFullPage, catalog: CatalogWIP},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			marker, ok := parser.ExtractChangeMarker(row.page, row.catalog)
			require.Equal(t, row.found, ok)
			require.Equal(t, row.expected, marker)
		})
	}
}

func TestArtifactPresent(t *testing.T) {
	parser := NewPageParser(DefaultEndpoints())

	present := map[ArtifactKind]bool{}
	for _, artifact := range Manifest {
		present[artifact.Kind] = parser.ArtifactPresent(discFullPage, 4321, artifact)
	}
	require.Equal(t, map[ArtifactKind]bool{
		ArtifactHistory: true,
		ArtifactCue:     true,
		ArtifactEdit:    true,
		ArtifactGdi:     false,
		ArtifactKey:     false,
		ArtifactLsd:     false,
		ArtifactMd5:     true,
		ArtifactSbi:     true,
		ArtifactSfv:     true,
		ArtifactSha1:    true,
	}, present)

	// markers reference the id, links to another disc do not count.
	sfv, _ := LookupArtifact(ArtifactSfv)
	require.False(t, parser.ArtifactPresent(discFullPage, 432, sfv))
}

func TestNotFound(t *testing.T) {
	parser := NewPageParser(DefaultEndpoints())

	require.True(t, parser.NotFound(discMissingPage, 250, CatalogDiscs))
	require.False(t, parser.NotFound(discMissingPage, 251, CatalogDiscs))
	require.False(t, parser.NotFound(discFullPage, 4321, CatalogDiscs))

	require.True(t, parser.NotFound(wipMissingPage, 77, CatalogWIP))
	require.False(t, parser.NotFound(discMissingPage, 250, CatalogWIP))
}

func TestLoginSignals(t *testing.T) {
	parser := NewPageParser(DefaultEndpoints())

	token, ok := parser.LoginToken(loginFormPage)
	require.True(t, ok)
	require.Equal(t, "5f1c0ffee7a1b2c3", token)

	_, ok = parser.LoginToken(loginBadPage)
	require.False(t, ok)

	require.True(t, parser.BadCredentials(loginBadPage))
	require.False(t, parser.BadCredentials(loginStaffPage))

	require.True(t, parser.StaffArea(loginStaffPage))
	require.False(t, parser.StaffArea(loginMemberPage))

	other, err := NewEndpoints("http://localhost:8080", "http://localhost:8081")
	require.NoError(t, err)
	require.False(t, NewPageParser(other).StaffArea(loginStaffPage))
}
