package game

import "github.com/tolelom/propchain/core"

// outcome is the effect of one answer on the player's score.
type outcome struct {
	mint     bool
	practice bool
	delta    int32
}

// bucketEdges are the inclusive upper bounds, in per-mille of the price, of
// each error bucket. Anything above the last edge falls in the final bucket.
var bucketEdges = [...]uint32{10, 30, 50, 100, 150, 200, 250, 300}

// Bucket 0 mints a color instead of paying points.
var (
	proDeltas    = [len(bucketEdges) + 1]int32{0, 50, 30, 10, -10, -20, -30, -40, -50}
	playerDeltas = [len(bucketEdges) + 1]int32{0, 25, 15, 5, -5, -10, -15, -20, -25}
)

func bucket(diff uint32) int {
	for i, edge := range bucketEdges {
		if diff <= edge {
			return i
		}
	}
	return len(bucketEdges)
}

func resultFor(d core.Difficulty, diff uint32) outcome {
	var table *[len(bucketEdges) + 1]int32
	switch d {
	case core.DifficultyPro:
		table = &proDeltas
	case core.DifficultyPlayer:
		table = &playerDeltas
	default:
		return outcome{practice: true}
	}
	b := bucket(diff)
	if b == 0 {
		return outcome{mint: true}
	}
	return outcome{delta: table[b]}
}
