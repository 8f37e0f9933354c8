package redump

import (
	"fmt"
	"strings"

	"redumparchive/lib/textutil"
)

// PackSet is a bitset of the pack types a system offers.
type PackSet uint8

const (
	PackSetCues PackSet = 1 << iota
	PackSetDat
	PackSetDkeys
	PackSetGdi
	PackSetKeys
	PackSetLsd
	PackSetSbi
)

// PackType is one kind of per-system bundled archive.
type PackType struct {
	Name string
	Path string
	bit  PackSet
}

var (
	PackCues          = PackType{Name: "cues", Path: "cues", bit: PackSetCues}
	PackDat           = PackType{Name: "dat", Path: "datfile", bit: PackSetDat}
	PackDecryptedKeys = PackType{Name: "dkeys", Path: "dkeys", bit: PackSetDkeys}
	PackGdi           = PackType{Name: "gdi", Path: "gdi", bit: PackSetGdi}
	PackKeys          = PackType{Name: "keys", Path: "keys", bit: PackSetKeys}
	PackLsd           = PackType{Name: "lsd", Path: "lsd", bit: PackSetLsd}
	PackSbi           = PackType{Name: "sbi", Path: "sbi", bit: PackSetSbi}
)

var PackTypes = []PackType{PackCues, PackDat, PackDecryptedKeys, PackGdi, PackKeys, PackLsd, PackSbi}

func LookupPackType(name string) (PackType, error) {
	for _, p := range PackTypes {
		if strings.EqualFold(p.Name, name) || strings.EqualFold(p.Path, name) {
			return p, nil
		}
	}
	return PackType{}, fmt.Errorf("unknown pack type %q", name)
}

type System struct {
	Short string
	Name  string
	// Banned systems are only served to logged in users.
	Banned bool
	Packs  PackSet
}

func (s System) Offers(pack PackType) bool {
	return s.Packs&pack.bit != 0
}

const discPacks = PackSetCues | PackSetDat

var Systems = []System{
	{Short: "3do", Name: "Panasonic 3DO Interactive Multiplayer", Packs: discPacks},
	{Short: "ajcd", Name: "Atari Jaguar CD Interactive Multimedia System", Packs: discPacks},
	{Short: "arch", Name: "Acorn Archimedes", Packs: discPacks},
	{Short: "cdi", Name: "Philips CD-i", Packs: discPacks},
	{Short: "chihiro", Name: "Sega Chihiro", Banned: true, Packs: PackSetDat | PackSetGdi},
	{Short: "dc", Name: "Sega Dreamcast", Packs: discPacks | PackSetGdi},
	{Short: "fmt", Name: "Fujitsu FM Towns series", Packs: discPacks},
	{Short: "gc", Name: "Nintendo GameCube", Packs: PackSetDat},
	{Short: "mac", Name: "Apple Macintosh", Packs: discPacks},
	{Short: "mcd", Name: "Sega Mega-CD & Sega CD", Packs: discPacks},
	{Short: "naomi", Name: "Sega NAOMI", Banned: true, Packs: PackSetDat | PackSetGdi},
	{Short: "naomi2", Name: "Sega NAOMI 2", Banned: true, Packs: PackSetDat | PackSetGdi},
	{Short: "ngcd", Name: "SNK Neo Geo CD", Packs: discPacks},
	{Short: "pc", Name: "IBM PC compatible", Packs: discPacks},
	{Short: "pce", Name: "NEC PC Engine CD & TurboGrafx CD", Packs: discPacks},
	{Short: "pc-fx", Name: "NEC PC-FX & PC-FXGA", Packs: discPacks},
	{Short: "ps2", Name: "Sony PlayStation 2", Packs: discPacks},
	{Short: "ps3", Name: "Sony PlayStation 3", Packs: PackSetDat | PackSetDkeys | PackSetKeys},
	{Short: "psp", Name: "Sony PlayStation Portable", Packs: PackSetDat},
	{Short: "psx", Name: "Sony PlayStation", Packs: discPacks | PackSetLsd | PackSetSbi},
	{Short: "ss", Name: "Sega Saturn", Packs: discPacks},
	{Short: "triforce", Name: "Namco - Sega - Nintendo Triforce", Banned: true, Packs: PackSetDat | PackSetGdi},
	{Short: "wii", Name: "Nintendo Wii", Packs: PackSetDat},
	{Short: "xbox", Name: "Microsoft Xbox", Packs: PackSetDat},
	{Short: "xbox360", Name: "Microsoft Xbox 360", Packs: PackSetDat},
	{Short: "dvd-video", Name: "DVD-Video", Banned: true, Packs: PackSetDat},
	{Short: "bd-video", Name: "BD-Video", Banned: true, Packs: PackSetDat},
	{Short: "hddvd-video", Name: "HD DVD-Video", Banned: true, Packs: PackSetDat},
}

// LookupSystem resolves a short name or full name, on failure the error
// lists the closest known systems.
func LookupSystem(name string) (System, error) {
	for _, s := range Systems {
		if strings.EqualFold(s.Short, name) || textutil.NormalizeName(s.Name) == textutil.NormalizeName(name) {
			return s, nil
		}
	}

	candidates := make([]string, 0, len(Systems)*2)
	for _, s := range Systems {
		candidates = append(candidates, s.Short, s.Name)
	}
	matches := textutil.Closest(name, candidates, 0.8, 3)
	if len(matches) == 0 {
		return System{}, fmt.Errorf("unknown system %q", name)
	}
	suggestions := make([]string, len(matches))
	for i, m := range matches {
		suggestions[i] = m.Candidate
	}
	return System{}, fmt.Errorf("unknown system %q, did you mean: %s", name, strings.Join(suggestions, ", "))
}
