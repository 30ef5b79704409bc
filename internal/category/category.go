// Package category maps library material-type codes to the catalogue groups
// shown to readers.
package category

import (
	"sort"
	"strings"
)

// Unknown is the group reported for codes missing from the taxonomy.
const Unknown = "unknown"

type MaterialType struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Group struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Types []MaterialType `json:"types"`
}

// Count is the number of catalogue items of one material type.
type Count struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

type GroupTotal struct {
	Group string `json:"group"`
	Name  string `json:"name"`
	Total int    `json:"total"`
}

var groups = [...]Group{
	{ID: "books", Name: "Books", Types: []MaterialType{
		{Code: "LBOOK", Name: "Lending Book"},
		{Code: "RBOOK", Name: "Reference Book"},
		{Code: "EBOOK", Name: "Electronic Books"},
		{Code: "SLBOOK", Name: "Sri Lanka Collection - Books"},
		{Code: "PREF", Name: "Permanent Reference"},
		{Code: "SREF", Name: "Special Reference"},
	}},
	{ID: "research", Name: "Research Publications", Types: []MaterialType{
		{Code: "RPAPER", Name: "Research Papers"},
		{Code: "RNARA", Name: "Research Reports - NARA"},
		{Code: "THESIS", Name: "Thesis"},
		{Code: "PROC", Name: "Proceedings"},
		{Code: "JR", Name: "Journal"},
		{Code: "EJART", Name: "e-Journal Articles"},
	}},
	{ID: "reports", Name: "Reports", Types: []MaterialType{
		{Code: "BOBP", Name: "BOBP Reports"},
		{Code: "FAO", Name: "FAO Reports"},
		{Code: "IOC", Name: "IOC Reports"},
		{Code: "IWMI", Name: "IWMI Reports"},
		{Code: "SLREP", Name: "Sri Lanka Collection - Reports"},
		{Code: "EREP", Name: "e-Reports"},
	}},
	{ID: "maps", Name: "Maps", Types: []MaterialType{
		{Code: "MAP", Name: "Maps"},
		{Code: "DMAP", Name: "Digital Map"},
	}},
	{ID: "collections", Name: "Special Collections", Types: []MaterialType{
		{Code: "ATC", Name: "Atapattu Collection"},
		{Code: "UACOL", Name: "Prof. Upali Amarasinghe Collection"},
		{Code: "WFISH", Name: "World Fisheries Collection"},
	}},
	{ID: "legal_media", Name: "Legal and Media", Types: []MaterialType{
		{Code: "ACT", Name: "Acts"},
		{Code: "NEWS", Name: "Newspaper Articles"},
		{Code: "CD", Name: "CDs"},
	}},
}

var (
	groupByCode = make(map[string]int)
	typeByCode  = make(map[string]MaterialType)
)

func init() {
	for i, g := range groups {
		for _, mt := range g.Types {
			if _, dup := groupByCode[mt.Code]; dup {
				panic("category: duplicate material code " + mt.Code)
			}
			groupByCode[mt.Code] = i
			typeByCode[mt.Code] = mt
		}
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GroupOf returns the group id for a material code, case-insensitively.
func GroupOf(code string) (string, bool) {
	i, ok := groupByCode[normalize(code)]
	if !ok {
		return "", false
	}
	return groups[i].ID, true
}

// Lookup returns the material type for a code.
func Lookup(code string) (MaterialType, bool) {
	mt, ok := typeByCode[normalize(code)]
	return mt, ok
}

// Groups returns a copy of the taxonomy in display order.
func Groups() []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{ID: g.ID, Name: g.Name, Types: append([]MaterialType(nil), g.Types...)}
	}
	return out
}

// MaterialTypes returns every known material type sorted by code.
func MaterialTypes() []MaterialType {
	out := make([]MaterialType, 0, len(typeByCode))
	for _, mt := range typeByCode {
		out = append(out, mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Aggregate sums per-code counts into one total per group, in display order.
// Every group is present even when its total is zero. Counts for codes outside
// the taxonomy are reported under an Unknown total appended at the end.
func Aggregate(counts []Count) []GroupTotal {
	totals := make([]GroupTotal, len(groups))
	for i, g := range groups {
		totals[i] = GroupTotal{Group: g.ID, Name: g.Name}
	}
	unknown := 0
	hasUnknown := false
	for _, c := range counts {
		if i, ok := groupByCode[normalize(c.Code)]; ok {
			totals[i].Total += c.Count
			continue
		}
		hasUnknown = true
		unknown += c.Count
	}
	if hasUnknown {
		totals = append(totals, GroupTotal{Group: Unknown, Name: "Unclassified", Total: unknown})
	}
	return totals
}
