package evaluation

// Tier is a letter grade band over the overall score, bounds inclusive
type Tier struct {
	Letter string `json:"tier"`
	Label  string `json:"tier_label"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
}

// Tiers are ordered best first and partition [0,100]
var Tiers = []Tier{
	{Letter: "A+", Label: "Elite Closer", Min: 90, Max: 100},
	{Letter: "A", Label: "Strong Performer", Min: 80, Max: 89},
	{Letter: "B", Label: "Solid", Min: 70, Max: 79},
	{Letter: "C", Label: "Needs Improvement", Min: 60, Max: 69},
	{Letter: "D", Label: "Needs Training", Min: 0, Max: 59},
}

var fallbackTier = Tiers[len(Tiers)-1]

// ResolveTier is total: scores outside every band resolve to D
func ResolveTier(score int) Tier {
	for _, t := range Tiers {
		if score >= t.Min && score <= t.Max {
			return t
		}
	}
	return fallbackTier
}
