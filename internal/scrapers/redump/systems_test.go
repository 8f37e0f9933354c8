package redump

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupSystem(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "psx", expected: "psx"},
		{input: "PSX", expected: "psx"},
		{input: "Sega Dreamcast", expected: "dc"},
		{input: "  sega   dreamcast ", expected: "dc"},
		{input: "pc-fx", expected: "pc-fx"},
	}
	for _, row := range table {
		system, err := LookupSystem(row.input)
		require.NoError(t, err, row.input)
		require.Equal(t, row.expected, system.Short)
	}

	_, err := LookupSystem("sega dreamcst")
	require.ErrorContains(t, err, "did you mean")
	require.ErrorContains(t, err, "Sega Dreamcast")

	_, err = LookupSystem("zzzzzzzz")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "did you mean")
}

func TestSystemOffers(t *testing.T) {
	dc, err := LookupSystem("dc")
	require.NoError(t, err)
	require.True(t, dc.Offers(PackGdi))
	require.True(t, dc.Offers(PackCues))
	require.False(t, dc.Offers(PackSbi))

	psx, err := LookupSystem("psx")
	require.NoError(t, err)
	require.True(t, psx.Offers(PackSbi))
	require.True(t, psx.Offers(PackLsd))
	require.False(t, psx.Offers(PackKeys))

	for _, system := range Systems {
		require.True(t, system.Offers(PackDat), "every system has a datfile: %s", system.Short)
	}
}

func TestLookupPackType(t *testing.T) {
	dat, err := LookupPackType("datfile")
	require.NoError(t, err)
	require.Equal(t, PackDat, dat)

	dat, err = LookupPackType("DAT")
	require.NoError(t, err)
	require.Equal(t, PackDat, dat)

	_, err = LookupPackType("iso")
	require.Error(t, err)
}

func TestEndpoints(t *testing.T) {
	e := DefaultEndpoints()

	require.Equal(t, "http://redump.org/disc/100/", e.DetailPage(CatalogDiscs, 100))
	require.Equal(t, "http://redump.org/newdisc/100/", e.DetailPage(CatalogWIP, 100))

	md5, ok := LookupArtifact(ArtifactMd5)
	require.True(t, ok)
	require.Equal(t, "http://redump.org/disc/100/md5/", e.Artifact(100, md5))

	require.Equal(t, "http://redump.org/discs/sort/modified/dir/desc?page=2", e.LastModified(2))
	require.Equal(t, "http://redump.org/discs/dumper/some%20one/?page=1", e.UserListing("some one", 1))
	require.Equal(t, "http://redump.org/discs/quicksearch/foo-bar/?page=1", e.QuickSearch("foo-bar", 1))
	require.Equal(t, "http://redump.org/results/foo%2Fbar/?page=3", e.FullSearch("foo/bar", 3))

	psx, err := LookupSystem("psx")
	require.NoError(t, err)
	require.Equal(t, "http://redump.org/datfile/psx/", e.Pack(PackDat, psx))

	require.Equal(t, "https://forum.redump.org/login/?action=in", e.LoginPost())
	require.ElementsMatch(t, []string{"redump.org", "forum.redump.org"}, e.Hosts())

	_, err = NewEndpoints("redump.org", DefaultForumURL)
	require.Error(t, err)

	custom, err := NewEndpoints("http://localhost:9000/", "http://localhost:9001")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000/disc/1/", custom.DetailPage(CatalogDiscs, 1))
}

func TestManifest(t *testing.T) {
	require.Len(t, Manifest, 10)

	seen := map[ArtifactKind]bool{}
	for _, artifact := range Manifest {
		require.False(t, seen[artifact.Kind], "duplicate kind %s", artifact.Kind)
		seen[artifact.Kind] = true
		require.NotEqual(t, PrimaryFilename, artifact.Filename(1))
	}

	cue, _ := LookupArtifact(ArtifactCue)
	require.Equal(t, "000123.cue", cue.Filename(123))
	history, _ := LookupArtifact(ArtifactHistory)
	require.Equal(t, "changes.html", history.Filename(123))

	edit, _ := LookupArtifact(ArtifactEdit)
	require.True(t, edit.RequiresStaff)

	_, ok := LookupArtifact("iso")
	require.False(t, ok)
}

func TestContentID(t *testing.T) {
	require.Equal(t, "000007", ContentID(7).String())
	require.Equal(t, "123456", ContentID(123456).String())
	require.Equal(t, "1234567", ContentID(1234567).String())

	id, err := ParseContentID(" 000250 ")
	require.NoError(t, err)
	require.Equal(t, ContentID(250), id)

	_, err = ParseContentID("-1")
	require.Error(t, err)
	_, err = ParseContentID("abc")
	require.Error(t, err)
}
