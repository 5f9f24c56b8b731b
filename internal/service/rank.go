package service

import (
	"sort"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/utils"
)

// Rank returns the nearest available candidates to origin, closest first,
// capped at topN and filtered to maxRadiusKm. Ties break on candidate id so
// the ordering is stable across input permutations. An empty result is a
// valid outcome, not an error.
func Rank(origin models.Location, candidates []models.Candidate, topN int, maxRadiusKm float64) []models.RankedCandidate {
	ranked := make([]models.RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Status != models.CandidateAvailable {
			continue
		}
		d := utils.HaversineKm(origin.Lat, origin.Lon, c.Location.Lat, c.Location.Lon)
		if maxRadiusKm > 0 && d > maxRadiusKm {
			continue
		}
		ranked = append(ranked, models.RankedCandidate{Candidate: c, DistanceKm: d})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].DistanceKm == ranked[j].DistanceKm {
			return ranked[i].Candidate.ID < ranked[j].Candidate.ID
		}
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
