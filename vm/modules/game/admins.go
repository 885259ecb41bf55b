package game

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/vm"
)

func handleAddAdmin(ctx *vm.Context, payload json.RawMessage) error {
	var req core.AdminPayload
	if err := decode(payload, &req, core.TxAddAdmin); err != nil {
		return err
	}
	if req.Account == "" {
		return errors.New("account required")
	}
	p, err := requireGameOrigin(ctx)
	if err != nil {
		return err
	}
	admins, err := ctx.State.GetAdmins()
	if err != nil {
		return err
	}
	if slices.Contains(admins, req.Account) {
		return core.ErrAccountAlreadyAdmin
	}
	if len(admins) >= p.MaxAdmins {
		return core.ErrTooManyAdmins
	}
	if err := ctx.State.SetAdmins(append(admins, req.Account)); err != nil {
		return err
	}
	ctx.Emit(events.EventNewAdminAdded, map[string]any{"new_admin": req.Account})
	return nil
}

func handleRemoveAdmin(ctx *vm.Context, payload json.RawMessage) error {
	var req core.AdminPayload
	if err := decode(payload, &req, core.TxRemoveAdmin); err != nil {
		return err
	}
	if _, err := requireGameOrigin(ctx); err != nil {
		return err
	}
	admins, err := ctx.State.GetAdmins()
	if err != nil {
		return err
	}
	i := slices.Index(admins, req.Account)
	if i < 0 {
		return core.ErrNotAdmin
	}
	if err := ctx.State.SetAdmins(slices.Delete(admins, i, i+1)); err != nil {
		return err
	}
	ctx.Emit(events.EventAdminRemoved, map[string]any{"admin": req.Account})
	return nil
}
