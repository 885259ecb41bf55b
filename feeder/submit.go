package feeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/rpc"
	"github.com/tolelom/propchain/wallet"
)

// Client is a minimal JSON-RPC client for the node.
type Client struct {
	url       string
	authToken string
	http      *http.Client
	seq       atomic.Int64
}

// NewClient returns a Client posting to url. authToken may be empty.
func NewClient(url, authToken string) *Client {
	return &Client{url: url, authToken: authToken, http: &http.Client{Timeout: 5 * time.Second}}
}

// Call invokes method with params and decodes the result into out.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	rr, err := rpc.NewRequest(c.seq.Add(1), method, params)
	if err != nil {
		return err
	}
	body, err := json.Marshal(rr)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope rpc.ClientResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %w", method, envelope.Error)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

// Nonce returns the current nonce of address.
func (c *Client) Nonce(ctx context.Context, address string) (uint64, error) {
	var bal struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := c.Call(ctx, "getBalance", map[string]string{"address": address}, &bal); err != nil {
		return 0, err
	}
	return bal.Nonce, nil
}

// SendTx submits a signed transaction and returns its id.
func (c *Client) SendTx(ctx context.Context, tx *core.Transaction) (string, error) {
	var res struct {
		TxID string `json:"tx_id"`
	}
	if err := c.Call(ctx, "sendTx", tx, &res); err != nil {
		return "", err
	}
	return res.TxID, nil
}

// Submit signs rec as an add_property transaction from origin and posts it.
// The nonce is read from the node so the feeder holds no state between runs.
func Submit(ctx context.Context, c *Client, origin *wallet.Wallet, chainID string, rec Record) (string, error) {
	nonce, err := c.Nonce(ctx, origin.PubKey())
	if err != nil {
		return "", err
	}
	origin.WithChain(chainID, nonce)
	tx, err := origin.AddProperty(rec.Property(), rec.Price)
	if err != nil {
		return "", err
	}
	return c.SendTx(ctx, tx)
}

// Feeder periodically fetches the newest record and submits it.
type Feeder struct {
	Fetcher *Fetcher
	Client  *Client
	Origin  *wallet.Wallet
	ChainID string

	last uint32
}

// RunOnce performs one fetch and submit. A record with the same id as the
// previous submission is skipped.
func (f *Feeder) RunOnce(ctx context.Context) error {
	rec, err := f.Fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	if rec.ID == f.last {
		log.Debug().Uint32("property", rec.ID).Msg("feed unchanged")
		return nil
	}
	txID, err := Submit(ctx, f.Client, f.Origin, f.ChainID, rec)
	if err != nil {
		return err
	}
	f.last = rec.ID
	log.Info().Uint32("property", rec.ID).Uint32("price", rec.Price).Str("tx", txID).Msg("property submitted")
	return nil
}

// Run calls RunOnce every interval until ctx is done.
func (f *Feeder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := f.RunOnce(ctx); err != nil {
			log.Warn().Err(err).Msg("feeder run failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
