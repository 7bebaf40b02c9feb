package domain

// MiningStats on-chain mining figures for one wallet, preformatted for display.
type MiningStats struct {
	Hashrate       string
	PowerPercent   string
	MinedPerDay    string
	CurrentlyMined string
	Status         Status
}

// DefaultMiningStats values shown before any read succeeds.
func DefaultMiningStats() MiningStats {
	return MiningStats{
		Hashrate:       "0",
		PowerPercent:   "0.0000",
		MinedPerDay:    "0",
		CurrentlyMined: "0.00",
	}
}
