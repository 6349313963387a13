package prize

import (
	"math"
	"math/rand/v2"
	"sort"

	"salescamp-controlplane/pkg/errutil"
)

// FactorSource draws the overachievement bonus factor, uniform in
// [0.10, 0.20] in production. Injectable so tests are deterministic.
type FactorSource func() float64

// UniformFactor returns the production factor source.
func UniformFactor() FactorSource {
	return func() float64 {
		return 0.10 + rand.Float64()*0.10
	}
}

// FixedFactor always returns f; test use.
func FixedFactor(f float64) FactorSource {
	return func() float64 { return f }
}

// AverageAchievement is the arithmetic mean over the supplied tier
// percentages.
func AverageAchievement(percentages []float64) (float64, error) {
	if len(percentages) == 0 {
		return 0, errutil.ValidationFailed("no achievement percentages supplied")
	}

	var sum float64
	for _, p := range percentages {
		sum += p
	}
	return sum / float64(len(percentages)), nil
}

// TierFor maps an average achievement to its reward tier. Band lower bounds
// are inclusive.
func TierFor(average float64) Tier {
	switch {
	case average >= 180:
		return TierPlatinum
	case average >= 140:
		return TierOuro
	case average >= 100:
		return TierPrata
	default:
		return TierBronze
	}
}

// BaseAmount is the step function of average achievement. Upper bounds are
// exclusive.
func BaseAmount(average float64) int64 {
	switch {
	case average < 70:
		return 0
	case average < 100:
		return 500
	case average < 150:
		return 1200
	case average < 200:
		return 2000
	default:
		return 3000
	}
}

// Bonus is floor(base * factor) once the average reaches 100, zero below.
func Bonus(average float64, factor float64) int64 {
	if average < 100 {
		return 0
	}
	return int64(math.Floor(float64(BaseAmount(average)) * factor))
}

// Rank orders standings by descending average, ties broken by ascending
// participant id. Positions are 1-based and contiguous, no shared ranks.
func Rank(standings []Standing) []Standing {
	ranked := make([]Standing, len(standings))
	copy(ranked, standings)

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Average != ranked[j].Average {
			return ranked[i].Average > ranked[j].Average
		}
		return ranked[i].ID < ranked[j].ID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Compute scores the complete participant snapshot: tier, base, bonus, total
// and rank per participant. The snapshot must be fully validated; partial
// sets produce wrong ranks.
func Compute(participants []Participant, factor FactorSource) ([]Result, error) {
	if factor == nil {
		factor = UniformFactor()
	}

	standings := make([]Standing, 0, len(participants))
	byID := make(map[string]Participant, len(participants))

	for _, p := range participants {
		avg, err := AverageAchievement(p.Achievements)
		if err != nil {
			return nil, err
		}
		standings = append(standings, Standing{ID: p.ID, Average: avg})
		byID[p.ID] = p
	}

	results := make([]Result, 0, len(standings))
	for _, st := range Rank(standings) {
		base := BaseAmount(st.Average)
		bonus := Bonus(st.Average, factor())

		results = append(results, Result{
			ParticipantID: st.ID,
			Name:          byID[st.ID].Name,
			Average:       st.Average,
			Tier:          TierFor(st.Average),
			BaseAmount:    base,
			BonusAmount:   bonus,
			TotalAmount:   base + bonus,
			Rank:          st.Rank,
		})
	}
	return results, nil
}
