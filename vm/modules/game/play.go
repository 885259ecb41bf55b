package game

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/randomness"
	"github.com/tolelom/propchain/vm"
)

// expiryHorizon is the number of blocks a session stays open.
func expiryHorizon(d core.Difficulty) int64 {
	switch d {
	case core.DifficultyPro:
		return 5
	case core.DifficultyPlayer:
		return 8
	default:
		return 10
	}
}

func checkEligible(u *core.User, d core.Difficulty) error {
	switch d {
	case core.DifficultyPro, core.DifficultyPlayer:
		if u.PracticeRounds == 0 {
			return core.ErrNoPractise
		}
		min := uint32(playerMinPoints)
		if d == core.DifficultyPro {
			min = proMinPoints
		}
		if u.Points < min {
			return core.ErrNotEnoughPoints
		}
	default:
		if u.PracticeRounds >= maxPracticeRounds {
			return core.ErrTooManyPractise
		}
	}
	return nil
}

// randomU32 draws a word from the block randomness seeded by gameID.
func randomU32(ctx *vm.Context, gameID uint32) (uint32, error) {
	out, _ := ctx.Random.Random([]byte{byte(gameID % 256)})
	if len(out) < 8 {
		return 0, core.ErrConversion
	}
	return randomness.Uint32(out), nil
}

func handlePlayGame(ctx *vm.Context, payload json.RawMessage) error {
	var req core.PlayGamePayload
	if err := decode(payload, &req, core.TxPlayGame); err != nil {
		return err
	}
	if err := req.Difficulty.Validate(); err != nil {
		return err
	}
	player := ctx.Sender()
	u, err := LoadUser(ctx, player)
	if err != nil {
		return err
	}
	if err := checkEligible(u, req.Difficulty); err != nil {
		return err
	}
	active, err := ctx.State.GetRoundActive()
	if err != nil {
		return err
	}
	if !active {
		return core.ErrNoActiveRound
	}
	round, err := ctx.State.GetCurrentRound()
	if err != nil {
		return err
	}
	if u.EnterRound(round) {
		if err := ctx.State.SetUser(player, u); err != nil {
			return err
		}
	}
	props, err := ctx.State.GetProperties()
	if err != nil {
		return err
	}
	if len(props) == 0 {
		return core.ErrNoProperty
	}
	p, err := ctx.Params()
	if err != nil {
		return err
	}

	gameID, err := core.NextID(ctx.State, core.CounterGame)
	if err != nil {
		return err
	}
	expiresAt, err := core.AddHeight(ctx.Height(), expiryHorizon(req.Difficulty))
	if err != nil {
		return err
	}
	expiring, err := ctx.State.GetExpiring(expiresAt)
	if err != nil {
		return err
	}
	if len(expiring) >= p.MaxOngoingGames {
		return core.ErrTooManyGames
	}
	if err := ctx.State.SetExpiring(expiresAt, append(expiring, gameID)); err != nil {
		return err
	}

	r, err := randomU32(ctx, gameID)
	if err != nil {
		return err
	}
	session := &core.GameSession{
		ID:         gameID,
		Difficulty: req.Difficulty,
		Player:     player,
		Property:   props[r%uint32(len(props))],
		ExpiresAt:  expiresAt,
	}
	if err := ctx.State.SetGame(session); err != nil {
		return err
	}
	ctx.Emit(events.EventGameStarted, map[string]any{"player": player, "game_id": gameID})
	return nil
}

func handleSubmitAnswer(ctx *vm.Context, payload json.RawMessage) error {
	var req core.SubmitAnswerPayload
	if err := decode(payload, &req, core.TxSubmitAnswer); err != nil {
		return err
	}
	session, err := ctx.State.GetGame(req.GameID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNoActiveGame
	}
	if err != nil {
		return err
	}
	if session.Player != ctx.Sender() {
		return core.ErrNoThePlayer
	}
	price, err := ctx.State.GetPrice(session.Property.ID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNoProperty
	}
	if err != nil {
		return err
	}
	diff, err := core.GuessDifference(price, req.Guess)
	if err != nil {
		return err
	}
	if err := ctx.State.DeleteGame(req.GameID); err != nil {
		return err
	}
	if err := applyResult(ctx, session, diff); err != nil {
		return err
	}
	ctx.Emit(events.EventAnswerSubmitted, map[string]any{"player": session.Player, "game_id": req.GameID})
	return nil
}

// applyResult scores a resolved session and updates the leaderboard.
func applyResult(ctx *vm.Context, session *core.GameSession, diff uint32) error {
	u, err := LoadUser(ctx, session.Player)
	if err != nil {
		return err
	}
	out := resultFor(session.Difficulty, diff)
	switch {
	case out.practice:
		if u.PracticeRounds == 255 {
			return core.ErrArithmeticOverflow
		}
		u.PracticeRounds++
		if u.Points, err = core.AddU32(u.Points, practiceReward); err != nil {
			return err
		}
	case out.mint:
		if err := mintColor(ctx, session, u); err != nil {
			return err
		}
	default:
		if u.Points, err = core.ApplyDelta(u.Points, out.delta); err != nil {
			return err
		}
	}
	if out.delta > 0 || out.mint {
		u.Wins, err = core.AddU32(u.Wins, 1)
	} else if out.delta < 0 {
		u.Losses, err = core.AddU32(u.Losses, 1)
	}
	if err != nil {
		return err
	}
	if err := ctx.State.SetUser(session.Player, u); err != nil {
		return err
	}
	if err := UpdateLeaderboard(ctx, session.Player, u.Points); err != nil {
		return err
	}
	if out.mint && u.HasFourOfAllColors() {
		return EndRound(ctx, session.Player)
	}
	return nil
}

// mintColor mints a locked NFT of a random color of the current round to
// the session's player and credits its tier reward.
func mintColor(ctx *vm.Context, session *core.GameSession, u *core.User) error {
	p, err := ctx.Params()
	if err != nil {
		return err
	}
	round, err := ctx.State.GetCurrentRound()
	if err != nil {
		return err
	}
	prev, err := core.SubU32(round, 1)
	if err != nil {
		return err
	}
	r, err := randomU32(ctx, session.ID)
	if err != nil {
		return err
	}
	if prev > (1<<32-1)/core.NumColors {
		return core.ErrArithmeticOverflow
	}
	collectionID, err := core.AddU32(r%core.NumColors, core.NumColors*prev)
	if err != nil {
		return err
	}
	color, err := ctx.State.GetCollectionColor(collectionID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("collection %d: %w", collectionID, core.ErrCollectionUnknown)
	}
	if err != nil {
		return err
	}
	itemID, err := ctx.State.GetNextColorID(collectionID)
	if err != nil {
		return err
	}
	next, err := core.AddU32(itemID, 1)
	if err != nil {
		return err
	}
	if err := ctx.State.SetNextColorID(collectionID, next); err != nil {
		return err
	}
	if err := ctx.NFTs.Mint(collectionID, itemID, session.Player, Escrow(p)); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if err := ctx.NFTs.LockItemTransfer(collectionID, itemID); err != nil {
		return err
	}
	return u.GainColor(color)
}

// expireGames closes every session scheduled to expire at this height and
// charges the no-answer penalty. Sessions resolved earlier are absent and
// skipped.
func expireGames(ctx *vm.Context) error {
	height := ctx.Height()
	ids, err := ctx.State.GetExpiring(height)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.State.DeleteExpiring(height); err != nil {
		return err
	}
	for _, id := range ids {
		session, err := ctx.State.GetGame(id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := ctx.State.DeleteGame(id); err != nil {
			return err
		}
		penalty, err := noAnswerResult(ctx, session)
		if err != nil {
			log.Warn().Err(err).Uint32("game_id", id).Int64("height", height).
				Str("player", session.Player).Msg("no-answer penalty skipped")
			penalty = 0
		}
		ctx.Emit(events.EventGameExpired, map[string]any{
			"player": session.Player, "game_id": id, "penalty": penalty,
		})
	}
	return nil
}

// noAnswerResult applies the timeout penalty. The new score and board are
// both computed before either is written, so a failed penalty leaves the
// user and the leaderboard untouched.
func noAnswerResult(ctx *vm.Context, session *core.GameSession) (uint32, error) {
	if session.Difficulty == core.DifficultyPractice {
		return 0, nil
	}
	u, err := LoadUser(ctx, session.Player)
	if err != nil {
		return 0, err
	}
	if u.Points, err = core.SubU32(u.Points, noAnswerPenalty); err != nil {
		return 0, err
	}
	p, err := ctx.Params()
	if err != nil {
		return 0, err
	}
	lb, err := ctx.State.GetLeaderboard()
	if err != nil {
		return 0, err
	}
	if lb, err = lb.Update(session.Player, u.Points, p.LeaderboardLimit); err != nil {
		return 0, err
	}
	if err := ctx.State.SetUser(session.Player, u); err != nil {
		return 0, err
	}
	if err := ctx.State.SetLeaderboard(lb); err != nil {
		return 0, err
	}
	return noAnswerPenalty, nil
}
