// Package domain defines core data structures used throughout the dashboard.
package domain

import (
	"strings"
	"time"
)

// AssetKind distinguishes the chain's base currency from fungible-token transfers.
type AssetKind int

const (
	AssetNative AssetKind = iota
	AssetToken
)

const (
	assetStringNative = "native"
	assetStringToken  = "token"
)

// String returns the string representation.
func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return assetStringNative
	case AssetToken:
		return assetStringToken
	default:
		return "unknown"
	}
}

// ParseAssetKind converts "native"/"eth" or "token" into an AssetKind.
func ParseAssetKind(s string) (AssetKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case assetStringNative, "eth", "":
		return AssetNative, true
	case assetStringToken:
		return AssetToken, true
	}
	return AssetNative, false
}

// TransferRecord is one raw transfer as reported by the block explorer.
// Value is an integer in the asset's smallest unit.
type TransferRecord struct {
	Hash           string
	BlockNumber    uint64
	TimeStamp      time.Time
	From           string
	To             string
	Value          string
	IsError        bool
	TokenDecimal   *int32
	// InvalidDecimal marks a token decimal field that was present but not an integer.
	InvalidDecimal bool
}

// NormalizeAddress lowercases and trims an address for case-insensitive comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SameAddress reports whether a and b name the same account, ignoring case.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
