package core

import "sort"

// LeaderboardEntry is one ranked account.
type LeaderboardEntry struct {
	Account string `json:"account"`
	Points  uint32 `json:"points"`
}

// Leaderboard is kept sorted by points, highest first.
type Leaderboard []LeaderboardEntry

// Update records points for account and returns the new board. An existing
// entry is rescored. A new entry is admitted only with positive points and
// only while the board has room or when it beats the current minimum, which
// is then evicted.
func (lb Leaderboard) Update(account string, points uint32, limit int) (Leaderboard, error) {
	out := make(Leaderboard, len(lb))
	copy(out, lb)

	for i := range out {
		if out[i].Account == account {
			out[i].Points = points
			out.sort()
			return out, nil
		}
	}

	if points == 0 || limit <= 0 {
		return out, nil
	}
	var min uint32
	if n := len(out); n > 0 {
		min = out[n-1].Points
	}
	if len(out) < limit || points > min {
		for len(out) >= limit {
			out = out[:len(out)-1]
		}
		out = append(out, LeaderboardEntry{Account: account, Points: points})
		out.sort()
	}
	if len(out) > limit {
		return nil, ErrInvalidIndex
	}
	return out, nil
}

func (lb Leaderboard) sort() {
	sort.SliceStable(lb, func(i, j int) bool { return lb[i].Points > lb[j].Points })
}
