// Package feeder pulls property listings from an external JSON feed and
// submits them to the catalog as add_property transactions. It runs outside
// the state transition and is best effort: a failed fetch or submission
// only costs one catalog entry.
package feeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tolelom/propchain/core"
)

// FetchTimeout bounds one feed request.
const FetchTimeout = 2 * time.Second

const maxFeedBytes = 4 << 20

// ErrEmptyFeed is returned when the feed holds no records.
var ErrEmptyFeed = errors.New("property feed is empty")

// Record is one entry of the property feed.
type Record struct {
	ID           uint32 `json:"id" validate:"required"`
	Bedrooms     uint32 `json:"bedrooms"`
	Bathrooms    uint32 `json:"bathrooms"`
	PropertyType string `json:"property_type" validate:"required"`
	City         string `json:"city" validate:"required"`
	PostCode     string `json:"post_code"`
	Summary      string `json:"summary"`
	Price        uint32 `json:"price" validate:"gt=0"`
}

// Property converts r into a catalog entry.
func (r Record) Property() core.Property {
	return core.Property{
		ID:           r.ID,
		PropertyType: r.PropertyType,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		City:         r.City,
		PostCode:     r.PostCode,
		KeyFeatures:  r.Summary,
	}
}

// Fetcher reads the property feed over HTTP.
type Fetcher struct {
	url      string
	client   *http.Client
	validate *validator.Validate
	limit    int
}

// NewFetcher returns a Fetcher for url. Text fields longer than
// stringLimit bytes are rejected before they reach the chain.
func NewFetcher(url string, stringLimit int) *Fetcher {
	return &Fetcher{
		url:      url,
		client:   &http.Client{Timeout: FetchTimeout},
		validate: validator.New(),
		limit:    stringLimit,
	}
}

// Fetch downloads the feed and returns its newest (last) record.
func (f *Fetcher) Fetch(ctx context.Context) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Record{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	var records []Record
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&records); err != nil {
		return Record{}, fmt.Errorf("decode feed: %w", err)
	}
	if len(records) == 0 {
		return Record{}, ErrEmptyFeed
	}
	rec := records[len(records)-1]
	if err := f.validate.Struct(rec); err != nil {
		return Record{}, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	prop := rec.Property()
	if err := prop.CheckLimits(f.limit); err != nil {
		return Record{}, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	return rec, nil
}
