package core

import "fmt"

// Difficulty gates eligibility and selects the reward table of a game.
type Difficulty string

const (
	DifficultyPractice Difficulty = "practice"
	DifficultyPlayer   Difficulty = "player"
	DifficultyPro      Difficulty = "pro"
)

// Validate rejects unknown difficulty values.
func (d Difficulty) Validate() error {
	switch d {
	case DifficultyPractice, DifficultyPlayer, DifficultyPro:
		return nil
	}
	return fmt.Errorf("unknown difficulty %q", string(d))
}

// OfferDecision is the listing owner's answer to an offer.
type OfferDecision string

const (
	OfferAccept OfferDecision = "accept"
	OfferReject OfferDecision = "reject"
)

// Property is one catalog entry a player guesses the price of.
type Property struct {
	ID           uint32 `json:"id"`
	PropertyType string `json:"property_type"`
	Bedrooms     uint32 `json:"bedrooms"`
	Bathrooms    uint32 `json:"bathrooms"`
	City         string `json:"city"`
	PostCode     string `json:"post_code"`
	KeyFeatures  string `json:"key_features"`
}

// CheckLimits verifies every string field fits in limit bytes.
func (p *Property) CheckLimits(limit int) error {
	fields := []struct{ name, v string }{
		{"property_type", p.PropertyType},
		{"city", p.City},
		{"post_code", p.PostCode},
		{"key_features", p.KeyFeatures},
	}
	for _, f := range fields {
		if len(f.v) > limit {
			return fmt.Errorf("%s is %d bytes, limit %d: %w", f.name, len(f.v), limit, ErrStringTooLong)
		}
	}
	return nil
}

// GameSession is one live guessing game bound to a player.
type GameSession struct {
	ID         uint32     `json:"id"`
	Difficulty Difficulty `json:"difficulty"`
	Player     string     `json:"player"`
	Property   Property   `json:"property"`
	ExpiresAt  int64      `json:"expires_at"`
}

// Listing is an NFT held in escrow for trade.
type Listing struct {
	ID           uint32 `json:"id"`
	Owner        string `json:"owner"`
	CollectionID uint32 `json:"collection_id"`
	ItemID       uint32 `json:"item_id"`
}

// Offer is an escrowed NFT proposed in exchange for a listing.
type Offer struct {
	ID           uint32 `json:"id"`
	Owner        string `json:"owner"`
	ListingID    uint32 `json:"listing_id"`
	CollectionID uint32 `json:"collection_id"`
	ItemID       uint32 `json:"item_id"`
}

// Counter names an auto-incrementing id sequence.
type Counter string

const (
	CounterGame       Counter = "game"
	CounterListing    Counter = "listing"
	CounterOffer      Counter = "offer"
	CounterCollection Counter = "collection"
)

// Params holds chain-wide engine configuration fixed at genesis.
type Params struct {
	GameOrigin           string `json:"game_origin"`
	PalletID             string `json:"pallet_id"`
	MaxOngoingGames      int    `json:"max_ongoing_games"`
	MaxProperty          int    `json:"max_property"`
	StringLimit          int    `json:"string_limit"`
	LeaderboardLimit     int    `json:"leaderboard_limit"`
	MaxAdmins            int    `json:"max_admins"`
	RegistrationFunds    uint64 `json:"registration_funds"`
	TokenAmount          uint64 `json:"token_amount"`
	TokenRequestCooldown int64  `json:"token_request_cooldown"`
}

// DefaultParams returns the engine defaults. GameOrigin is left empty.
func DefaultParams() Params {
	return Params{
		PalletID:             "py/ppgme",
		MaxOngoingGames:      64,
		MaxProperty:          100,
		StringLimit:          200,
		LeaderboardLimit:     10,
		MaxAdmins:            10,
		RegistrationFunds:    1_000_000,
		TokenAmount:          1_000_000,
		TokenRequestCooldown: 100,
	}
}
