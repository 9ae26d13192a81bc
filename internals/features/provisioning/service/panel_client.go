// file: internals/features/provisioning/service/panel_client.go
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	model "playhost_backend/internals/features/orders/model"
)

/* =========================================================
   Game-panel provisioning client

   Narrow request/response contract with the external panel. Every command
   carries its own timeout; callers treat failures as retry-eligible and
   never let them block a settled payment.
========================================================= */

type PanelClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewPanelClient(baseURL, apiKey string) *PanelClient {
	return &PanelClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type createServerRequest struct {
	OrderNumber string `json:"order_number"`
	Game        string `json:"game"`
	Plan        string `json:"plan"`
	Location    string `json:"location"`
	Email       string `json:"email"`
}

type createServerResponse struct {
	ServerID string `json:"server_id"`
}

func (c *PanelClient) CreateServer(ctx context.Context, o *model.Order) (string, error) {
	body := createServerRequest{
		OrderNumber: o.OrderNumber,
		Game:        o.OrderGame,
		Plan:        o.OrderPlan,
		Location:    o.OrderLocation,
		Email:       o.OrderCustomerEmail,
	}
	var resp createServerResponse
	if err := c.post(ctx, "/api/servers", body, &resp); err != nil {
		return "", err
	}
	if resp.ServerID == "" {
		return "", fmt.Errorf("panel: create returned empty server id")
	}
	return resp.ServerID, nil
}

func (c *PanelClient) RenewServer(ctx context.Context, externalID string, paidThrough time.Time) error {
	return c.post(ctx, "/api/servers/"+externalID+"/renew", map[string]string{
		"paid_through": paidThrough.UTC().Format(time.RFC3339),
	}, nil)
}

func (c *PanelClient) SuspendServer(ctx context.Context, externalID string) error {
	return c.post(ctx, "/api/servers/"+externalID+"/suspend", nil, nil)
}

func (c *PanelClient) UnsuspendServer(ctx context.Context, externalID string) error {
	return c.post(ctx, "/api/servers/"+externalID+"/unsuspend", nil, nil)
}

func (c *PanelClient) post(ctx context.Context, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("panel: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("panel: %s returned %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("panel: decode %s response: %w", path, err)
		}
	}
	return nil
}
