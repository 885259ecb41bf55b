// Package game implements the property-price guessing game: rounds, users,
// the property catalog, game sessions with block-based expiry, rewards and
// the leaderboard.
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/vm"
)

func init() {
	vm.Register(core.TxSetupGame, handleSetupGame)
	vm.Register(core.TxRegisterUser, handleRegisterUser)
	vm.Register(core.TxGivePoints, handleGivePoints)
	vm.Register(core.TxRequestToken, handleRequestToken)
	vm.Register(core.TxAddProperty, handleAddProperty)
	vm.Register(core.TxRemoveProperty, handleRemoveProperty)
	vm.Register(core.TxAddAdmin, handleAddAdmin)
	vm.Register(core.TxRemoveAdmin, handleRemoveAdmin)
	vm.Register(core.TxPlayGame, handlePlayGame)
	vm.Register(core.TxSubmitAnswer, handleSubmitAnswer)
	vm.RegisterHook("game_expiry", expireGames)
}

const (
	givePointsAmount  = 100
	maxPracticeRounds = 5
	playerMinPoints   = 25
	proMinPoints      = 50
	practiceReward    = 5
	noAnswerPenalty   = 10
)

func decode(payload json.RawMessage, v any, typ core.TxType) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", typ, err)
	}
	return nil
}

// requireGameOrigin fails unless the signer is the configured game origin.
func requireGameOrigin(ctx *vm.Context) (*core.Params, error) {
	p, err := ctx.Params()
	if err != nil {
		return nil, err
	}
	if p.GameOrigin == "" || ctx.Sender() != p.GameOrigin {
		return nil, core.ErrBadOrigin
	}
	return p, nil
}

// Escrow returns the module account that owns game collections and holds
// listed NFTs.
func Escrow(p *core.Params) string {
	return crypto.ModuleAccount(p.PalletID)
}

// LoadUser returns the registered user for account.
func LoadUser(ctx *vm.Context, account string) (*core.User, error) {
	u, err := ctx.State.GetUser(account)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrUserNotRegistered
	}
	return u, err
}

// UpdateLeaderboard records account's new score on the bounded board.
func UpdateLeaderboard(ctx *vm.Context, account string, points uint32) error {
	p, err := ctx.Params()
	if err != nil {
		return err
	}
	lb, err := ctx.State.GetLeaderboard()
	if err != nil {
		return err
	}
	lb, err = lb.Update(account, points, p.LeaderboardLimit)
	if err != nil {
		return err
	}
	return ctx.State.SetLeaderboard(lb)
}

// EndRound closes the current round with winner as its champion.
func EndRound(ctx *vm.Context, winner string) error {
	round, err := ctx.State.GetCurrentRound()
	if err != nil {
		return err
	}
	if err := ctx.State.SetRoundActive(false); err != nil {
		return err
	}
	if err := ctx.State.SetRoundChampion(round, winner); err != nil {
		return err
	}
	ctx.Emit(events.EventRoundEnded, map[string]any{"round": round, "champion": winner})
	return nil
}

func handleSetupGame(ctx *vm.Context, payload json.RawMessage) error {
	p, err := requireGameOrigin(ctx)
	if err != nil {
		return err
	}
	escrow := Escrow(p)
	for i := 0; i < core.NumColors; i++ {
		id, err := ctx.NFTs.CreateCollection(escrow, escrow)
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		color, err := core.ColorFromIndex(i)
		if err != nil {
			return err
		}
		if err := ctx.State.SetCollectionColor(id, color); err != nil {
			return err
		}
	}

	round, err := ctx.State.GetCurrentRound()
	if err != nil {
		return err
	}
	if round == 0 {
		if err := seedCatalog(ctx); err != nil {
			return err
		}
	}
	if round, err = core.AddU32(round, 1); err != nil {
		return err
	}
	if err := ctx.State.SetCurrentRound(round); err != nil {
		return err
	}
	if err := ctx.State.SetRoundActive(true); err != nil {
		return err
	}
	ctx.Emit(events.EventRoundStarted, map[string]any{"round": round})
	return nil
}

func handleRegisterUser(ctx *vm.Context, payload json.RawMessage) error {
	var req core.RegisterUserPayload
	if err := decode(payload, &req, core.TxRegisterUser); err != nil {
		return err
	}
	if req.Player == "" {
		return errors.New("player required")
	}
	admins, err := ctx.State.GetAdmins()
	if err != nil {
		return err
	}
	if !slices.Contains(admins, ctx.Sender()) {
		return core.ErrNotAdmin
	}
	if _, err := ctx.State.GetUser(req.Player); err == nil {
		return core.ErrPlayerAlreadyRegistered
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	p, err := ctx.Params()
	if err != nil {
		return err
	}
	if err := ctx.State.SetUser(req.Player, core.NewUser()); err != nil {
		return err
	}
	if err := ctx.Currency.MakeFreeBalanceBe(req.Player, p.RegistrationFunds); err != nil {
		return fmt.Errorf("fund player: %w", err)
	}
	ctx.Emit(events.EventNewPlayerRegistered, map[string]any{"player": req.Player})
	return nil
}

func handleGivePoints(ctx *vm.Context, payload json.RawMessage) error {
	var req core.GivePointsPayload
	if err := decode(payload, &req, core.TxGivePoints); err != nil {
		return err
	}
	if _, err := requireGameOrigin(ctx); err != nil {
		return err
	}
	u, err := LoadUser(ctx, req.Receiver)
	if err != nil {
		return err
	}
	if u.Points, err = core.AddU32(u.Points, givePointsAmount); err != nil {
		return err
	}
	if err := ctx.State.SetUser(req.Receiver, u); err != nil {
		return err
	}
	if err := UpdateLeaderboard(ctx, req.Receiver, u.Points); err != nil {
		return err
	}
	ctx.Emit(events.EventPointsReceived, map[string]any{"receiver": req.Receiver, "amount": uint32(givePointsAmount)})
	return nil
}

func handleRequestToken(ctx *vm.Context, payload json.RawMessage) error {
	caller := ctx.Sender()
	u, err := LoadUser(ctx, caller)
	if err != nil {
		return err
	}
	if ctx.Height() < u.NextTokenRequest {
		return fmt.Errorf("next request at block %d: %w", u.NextTokenRequest, core.ErrTokenRequestTooEarly)
	}
	p, err := ctx.Params()
	if err != nil {
		return err
	}
	if err := ctx.Currency.MakeFreeBalanceBe(caller, p.TokenAmount); err != nil {
		return err
	}
	if u.NextTokenRequest, err = core.AddHeight(ctx.Height(), p.TokenRequestCooldown); err != nil {
		return err
	}
	if err := ctx.State.SetUser(caller, u); err != nil {
		return err
	}
	ctx.Emit(events.EventTokenReceived, map[string]any{"player": caller})
	return nil
}
