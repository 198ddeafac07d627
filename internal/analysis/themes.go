package analysis

import (
	"sort"
	"strings"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/sectors"
)

const (
	minThemeMembers      = 2
	maxRepresentatives   = 3
	representativeRate   = 0.7
	representativeVolume = 0.3
)

type candidate struct {
	name    string
	kind    domain.ThemeKind
	members []domain.ClassifiedStock
}

// IdentifyThemes clusters surging stocks by sector and by keyword matches in
// their names. A stock may belong to a sector group and a keyword group at the
// same time. A keyword theme named like a sector replaces that sector group.
// Groups with fewer than two members are dropped.
func IdentifyThemes(surge []domain.ClassifiedStock, table []sectors.KeywordTheme) []domain.Theme {
	if len(surge) == 0 {
		return []domain.Theme{}
	}

	index := make(map[string]int)
	var groups []candidate

	for _, s := range surge {
		name := s.Sector
		if name == "" {
			name = sectors.SectorOther
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, candidate{name: name, kind: domain.ThemeKindSector})
		}
		groups[i].members = append(groups[i].members, s)
	}

	for _, kt := range table {
		var matched []domain.ClassifiedStock
		for _, s := range surge {
			if containsAny(s.Name, kt.Keywords) {
				matched = append(matched, s)
			}
		}
		if len(matched) == 0 {
			continue
		}
		c := candidate{name: kt.Name, kind: domain.ThemeKindKeyword, members: matched}
		if i, ok := index[kt.Name]; ok {
			groups[i] = c
			continue
		}
		index[kt.Name] = len(groups)
		groups = append(groups, c)
	}

	themes := make([]domain.Theme, 0, len(groups))
	for _, g := range groups {
		if len(g.members) < minThemeMembers {
			continue
		}
		themes = append(themes, buildTheme(g))
	}

	sort.SliceStable(themes, func(i, j int) bool {
		si, sj := themes[i].Score(), themes[j].Score()
		if si != sj {
			return si > sj
		}
		return themes[i].Name < themes[j].Name
	})
	return themes
}

func buildTheme(g candidate) domain.Theme {
	rates := make([]float64, len(g.members))
	var volume int64
	for i, m := range g.members {
		rates[i] = m.ChangeRate
		volume += m.Volume
	}

	reps := make([]domain.ClassifiedStock, len(g.members))
	copy(reps, g.members)
	sort.SliceStable(reps, func(i, j int) bool {
		si, sj := representativeScore(reps[i]), representativeScore(reps[j])
		if si != sj {
			return si > sj
		}
		return reps[i].Ticker < reps[j].Ticker
	})

	return domain.Theme{
		Name:                 g.name,
		Kind:                 g.kind,
		MegaSector:           sectors.MegaSector(g.name),
		StockCount:           len(g.members),
		AvgChangeRate:        domain.Round(mean(rates), 2),
		TotalVolume:          volume,
		RepresentativeStocks: limit(reps, maxRepresentatives),
		Description:          sectors.Description(g.name),
	}
}

func representativeScore(s domain.ClassifiedStock) float64 {
	return s.ChangeRate*representativeRate + float64(s.Volume)/1_000_000*representativeVolume
}

// containsAny is case-sensitive literal substring matching
func containsAny(name string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(name, k) {
			return true
		}
	}
	return false
}
