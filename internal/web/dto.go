package web

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/fundboard/internal/domain"
)

type contributionDTO struct {
	Address    string  `json:"address"`
	Name       string  `json:"name,omitempty"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type contributionsResponse struct {
	TotalReceived float64           `json:"totalReceived"`
	Target        float64           `json:"target"`
	Contributions []contributionDTO `json:"contributions"`
}

type tokenCollectionResponse struct {
	Collected     float64           `json:"collected"`
	Goal          float64           `json:"goal"`
	Contributions []contributionDTO `json:"contributions"`
}

type claimedResponse struct {
	Claimed float64 `json:"claimed"`
}

type miningStatsResponse struct {
	Hashrate       string `json:"hashrate"`
	PowerPercent   string `json:"powerPercent"`
	MinedPerDay    string `json:"minedPerDay"`
	CurrentlyMined string `json:"currentlyMined"`
}

type leaderboardEntry struct {
	Rank       int     `json:"rank"`
	Address    string  `json:"address"`
	Name       string  `json:"name,omitempty"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type leaderboardResponse struct {
	Asset   string             `json:"asset"`
	Entries []leaderboardEntry `json:"entries"`
}

type raiseValueResponse struct {
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	TotalReceived    float64 `json:"totalReceived"`
	TotalReceivedUsd float64 `json:"totalReceivedUsd"`
	Source           string  `json:"source,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func toContributionDTOs(entries []domain.ContributorEntry) []contributionDTO {
	out := make([]contributionDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, contributionDTO{
			Address:    e.Address,
			Name:       e.Alias,
			Amount:     num(e.Amount),
			Percentage: num(e.Percentage),
		})
	}
	return out
}

func newContributionsResponse(s domain.ContributionSummary) contributionsResponse {
	return contributionsResponse{
		TotalReceived: num(s.TotalCollected),
		Target:        num(s.Goal),
		Contributions: toContributionDTOs(s.Contributions),
	}
}

func newTokenCollectionResponse(s domain.ContributionSummary) tokenCollectionResponse {
	return tokenCollectionResponse{
		Collected:     num(s.TotalCollected),
		Goal:          num(s.Goal),
		Contributions: toContributionDTOs(s.Contributions),
	}
}

func newLeaderboardResponse(kind domain.AssetKind, entries []domain.ContributorEntry) leaderboardResponse {
	resp := leaderboardResponse{Asset: kind.String(), Entries: make([]leaderboardEntry, 0, len(entries))}
	for i, e := range entries {
		resp.Entries = append(resp.Entries, leaderboardEntry{
			Rank:       i + 1,
			Address:    e.Address,
			Name:       e.Alias,
			Amount:     num(e.Amount),
			Percentage: num(e.Percentage),
		})
	}
	return resp
}

func newMiningStatsResponse(s domain.MiningStats) miningStatsResponse {
	return miningStatsResponse{
		Hashrate:       s.Hashrate,
		PowerPercent:   s.PowerPercent,
		MinedPerDay:    s.MinedPerDay,
		CurrentlyMined: s.CurrentlyMined,
	}
}

func newRaiseValueResponse(rv domain.RaiseValue) raiseValueResponse {
	return raiseValueResponse{
		Symbol:           rv.Quote.Pair.String(),
		Price:            num(rv.Quote.Price),
		TotalReceived:    num(rv.TotalReceived),
		TotalReceivedUsd: num(rv.TotalValue),
		Source:           rv.Quote.Source,
	}
}
