package game

import (
	"encoding/json"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/vm"
)

type pricedProperty struct {
	core.Property
	price uint32
}

// defaultCatalog seeds a chain that has never run a round.
var defaultCatalog = []pricedProperty{
	{core.Property{ID: 1, PropertyType: "Apartment", Bedrooms: 2, Bathrooms: 2,
		City: "Drays Yard, Norwich", PostCode: "GB", KeyFeatures: "Second floor apartment located a short"}, 220000},
	{core.Property{ID: 2, PropertyType: "Apartment", Bedrooms: 4, Bathrooms: 2,
		City: "Norwich", PostCode: "GB", KeyFeatures: "A historic and idiosyncratic Grade II"}, 650000},
	{core.Property{ID: 3, PropertyType: "Town House", Bedrooms: 3, Bathrooms: 2,
		City: "Willow Lane, Norwich NR2", PostCode: "GB", KeyFeatures: "A truly rare opportunity to secure"}, 525000},
	{core.Property{ID: 4, PropertyType: "Apartment", Bedrooms: 4, Bathrooms: 4,
		City: "Trafalgar Street, Norwich", PostCode: "GB", KeyFeatures: "A HIGHLY IMPRESSIVE BLOCK OF FOUR FLATS"}, 500000},
}

func seedCatalog(ctx *vm.Context) error {
	props, err := ctx.State.GetProperties()
	if err != nil || len(props) > 0 {
		return err
	}
	for _, pp := range defaultCatalog {
		if err := insertProperty(ctx, pp.Property, pp.price); err != nil {
			return err
		}
	}
	return nil
}

func insertProperty(ctx *vm.Context, prop core.Property, price uint32) error {
	p, err := ctx.Params()
	if err != nil {
		return err
	}
	if err := prop.CheckLimits(p.StringLimit); err != nil {
		return err
	}
	props, err := ctx.State.GetProperties()
	if err != nil {
		return err
	}
	if len(props) >= p.MaxProperty {
		return core.ErrTooManyTest
	}
	if err := ctx.State.SetProperties(append(props, prop)); err != nil {
		return err
	}
	if err := ctx.State.SetPrice(prop.ID, price); err != nil {
		return err
	}
	ctx.Emit(events.EventPropertyAdded, map[string]any{"property_id": prop.ID})
	return nil
}

func handleAddProperty(ctx *vm.Context, payload json.RawMessage) error {
	var req core.AddPropertyPayload
	if err := decode(payload, &req, core.TxAddProperty); err != nil {
		return err
	}
	if _, err := requireGameOrigin(ctx); err != nil {
		return err
	}
	return insertProperty(ctx, req.Property, req.Price)
}

// handleRemoveProperty drops every catalog entry with the id and its price.
func handleRemoveProperty(ctx *vm.Context, payload json.RawMessage) error {
	var req core.RemovePropertyPayload
	if err := decode(payload, &req, core.TxRemoveProperty); err != nil {
		return err
	}
	if _, err := requireGameOrigin(ctx); err != nil {
		return err
	}
	props, err := ctx.State.GetProperties()
	if err != nil {
		return err
	}
	kept := props[:0]
	for _, prop := range props {
		if prop.ID != req.PropertyID {
			kept = append(kept, prop)
		}
	}
	if err := ctx.State.SetProperties(kept); err != nil {
		return err
	}
	if err := ctx.State.DeletePrice(req.PropertyID); err != nil {
		return err
	}
	ctx.Emit(events.EventPropertyRemoved, map[string]any{"property_id": req.PropertyID})
	return nil
}
