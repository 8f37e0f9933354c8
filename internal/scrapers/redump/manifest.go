package redump

// ArtifactKind is one of the secondary files hanging off a disc page.
type ArtifactKind string

const (
	ArtifactHistory ArtifactKind = "history"
	ArtifactCue     ArtifactKind = "cue"
	ArtifactEdit    ArtifactKind = "edit"
	ArtifactGdi     ArtifactKind = "gdi"
	ArtifactKey     ArtifactKind = "key"
	ArtifactLsd     ArtifactKind = "lsd"
	ArtifactMd5     ArtifactKind = "md5"
	ArtifactSbi     ArtifactKind = "sbi"
	ArtifactSfv     ArtifactKind = "sfv"
	ArtifactSha1    ArtifactKind = "sha1"
)

type Artifact struct {
	Kind ArtifactKind
	// Suffix is appended to the disc page url, it is also what the disc page links to.
	Suffix string
	// Name is the local filename, when PerID is set it is an extension
	// appended to the padded id instead.
	Name  string
	PerID bool
	// RequiresStaff artifacts are only linked (and only readable) for staff sessions.
	RequiresStaff bool
}

func (a Artifact) Filename(id ContentID) string {
	if a.PerID {
		return id.String() + a.Name
	}
	return a.Name
}

// PrimaryFilename is the name of the disc page inside a content directory.
const PrimaryFilename = "disc.html"

// Manifest is the fixed, ordered set of artifacts fetched for a changed disc.
var Manifest = []Artifact{
	{Kind: ArtifactHistory, Suffix: "changes/", Name: "changes.html"},
	{Kind: ArtifactCue, Suffix: "cue/", Name: ".cue", PerID: true},
	{Kind: ArtifactEdit, Suffix: "edit/", Name: "edit.html", RequiresStaff: true},
	{Kind: ArtifactGdi, Suffix: "gdi/", Name: ".gdi", PerID: true},
	{Kind: ArtifactKey, Suffix: "key/", Name: ".key", PerID: true},
	{Kind: ArtifactLsd, Suffix: "lsd/", Name: ".lsd", PerID: true},
	{Kind: ArtifactMd5, Suffix: "md5/", Name: ".md5", PerID: true},
	{Kind: ArtifactSbi, Suffix: "sbi/", Name: ".sbi", PerID: true},
	{Kind: ArtifactSfv, Suffix: "sfv/", Name: ".sfv", PerID: true},
	{Kind: ArtifactSha1, Suffix: "sha1/", Name: ".sha1", PerID: true},
}

func LookupArtifact(kind ArtifactKind) (Artifact, bool) {
	for _, a := range Manifest {
		if a.Kind == kind {
			return a, true
		}
	}
	return Artifact{}, false
}
