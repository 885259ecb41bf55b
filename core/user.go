package core

import "fmt"

// Color is one of the eight NFT colors a player collects during a round.
type Color uint8

const (
	ColorOrange Color = iota
	ColorPink
	ColorBlue
	ColorCyan
	ColorCoral
	ColorPurple
	ColorLeafGreen
	ColorGreen

	NumColors = 8
)

var colorNames = [NumColors]string{"orange", "pink", "blue", "cyan", "coral", "purple", "leafgreen", "green"}

// ColorFromIndex maps 0..7 to a Color.
func ColorFromIndex(i int) (Color, error) {
	if i < 0 || i >= NumColors {
		return 0, fmt.Errorf("color index %d: %w", i, ErrInvalidIndex)
	}
	return Color(i), nil
}

func (c Color) String() string {
	if int(c) < NumColors {
		return colorNames[c]
	}
	return fmt.Sprintf("color(%d)", uint8(c))
}

// CollectedColors counts how many NFTs of each color a user holds in the
// current round.
type CollectedColors [NumColors]uint32

// Count returns the counter for c.
func (cc *CollectedColors) Count(c Color) uint32 {
	if int(c) >= NumColors {
		return 0
	}
	return cc[c]
}

// Add increments the counter for c.
func (cc *CollectedColors) Add(c Color) error {
	if int(c) >= NumColors {
		return ErrInvalidIndex
	}
	n, err := AddU32(cc[c], 1)
	if err != nil {
		return err
	}
	cc[c] = n
	return nil
}

// Sub decrements the counter for c.
func (cc *CollectedColors) Sub(c Color) error {
	if int(c) >= NumColors {
		return ErrInvalidIndex
	}
	n, err := SubU32(cc[c], 1)
	if err != nil {
		return err
	}
	cc[c] = n
	return nil
}

// HasFourOfAll reports whether every color has been collected at least four times.
func (cc *CollectedColors) HasFourOfAll() bool {
	for _, n := range cc {
		if n < 4 {
			return false
		}
	}
	return true
}

// User is a registered player.
type User struct {
	Points           uint32          `json:"points"`
	Wins             uint32          `json:"wins"`
	Losses           uint32          `json:"losses"`
	PracticeRounds   uint8           `json:"practice_rounds"`
	LastPlayedRound  uint32          `json:"last_played_round"`
	NextTokenRequest int64           `json:"next_token_request"`
	Nfts             CollectedColors `json:"nfts"`
}

// StartingPoints is the balance every freshly registered user receives.
const StartingPoints = 50

// NewUser returns a user with the starting point balance.
func NewUser() *User {
	return &User{Points: StartingPoints}
}

// gainTiers is indexed by the color count after the increment.
var gainTiers = [5]uint32{0, 100, 120, 220, 340}

// lossTiers is indexed by the color count after the decrement.
var lossTiers = [4]uint32{100, 120, 220, 340}

// CalculatePoints returns the reward for holding the current count of c.
// Call it after AddColor.
func (u *User) CalculatePoints(c Color) uint32 {
	n := u.Nfts.Count(c)
	if n < uint32(len(gainTiers)) {
		return gainTiers[n]
	}
	return 0
}

// SubtractingCalculatePoints returns the cost of the copy of c just given up.
// Call it after SubColor.
func (u *User) SubtractingCalculatePoints(c Color) uint32 {
	n := u.Nfts.Count(c)
	if n < uint32(len(lossTiers)) {
		return lossTiers[n]
	}
	return 0
}

// GainColor records a new copy of c and credits its tier reward.
func (u *User) GainColor(c Color) error {
	if err := u.Nfts.Add(c); err != nil {
		return err
	}
	pts, err := AddU32(u.Points, u.CalculatePoints(c))
	if err != nil {
		return err
	}
	u.Points = pts
	return nil
}

// LoseColor removes a copy of c and debits its tier value.
func (u *User) LoseColor(c Color) error {
	if err := u.Nfts.Sub(c); err != nil {
		return err
	}
	pts, err := SubU32(u.Points, u.SubtractingCalculatePoints(c))
	if err != nil {
		return err
	}
	u.Points = pts
	return nil
}

// EnterRound moves u into round. Colors collected in earlier rounds do not
// count towards the new round's set. It reports whether u changed.
func (u *User) EnterRound(round uint32) bool {
	if u.LastPlayedRound == round {
		return false
	}
	u.Nfts = CollectedColors{}
	u.LastPlayedRound = round
	return true
}

// HasFourOfAllColors reports whether the user completed the round's set.
func (u *User) HasFourOfAllColors() bool {
	return u.Nfts.HasFourOfAll()
}
