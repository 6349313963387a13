package prize

// Tier is the reward level derived from average achievement.
// Ordering matters: Bronze < Prata < Ouro < Platinum.
type Tier int

const (
	TierBronze Tier = iota
	TierPrata
	TierOuro
	TierPlatinum
)

func (t Tier) String() string {
	switch t {
	case TierPlatinum:
		return "Platinum"
	case TierOuro:
		return "Ouro"
	case TierPrata:
		return "Prata"
	default:
		return "Bronze"
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Participant is one scored entrant: id plus achievement percentages across
// evaluation tiers (national, divisional, individual, ...).
type Participant struct {
	ID           string
	Name         string
	Achievements []float64
}

// Standing pairs a participant with its average achievement for ranking.
type Standing struct {
	ID      string  `json:"participant_id"`
	Average float64 `json:"average_achievement"`
	Rank    int     `json:"rank"`
}

// Result is the full prize computation for one participant.
type Result struct {
	ParticipantID string  `json:"participant_id"`
	Name          string  `json:"name"`
	Average       float64 `json:"average_achievement"`
	Tier          Tier    `json:"tier"`
	BaseAmount    int64   `json:"base_amount"`
	BonusAmount   int64   `json:"bonus_amount"`
	TotalAmount   int64   `json:"total_amount"`
	Rank          int     `json:"rank"`
}
