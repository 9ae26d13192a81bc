// file: internals/features/payments/service/bakong_client.go
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/datatypes"

	model "playhost_backend/internals/features/payments/model"
)

/* =========================================================
   Bakong open-API client (poll rail for KHQR records)
========================================================= */

// GatewayStatus is the normalized answer to "has this been paid".
type GatewayStatus struct {
	Settled    bool
	ExternalID string
	Raw        datatypes.JSON
}

// GatewayChecker is what the poller needs from a gateway integration.
type GatewayChecker interface {
	CheckSettlement(ctx context.Context, rec *model.SettlementRecord) (*GatewayStatus, error)
}

type BakongClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewBakongClient(baseURL, token string) *BakongClient {
	return &BakongClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// TokenExpired inspects the exp claim of the configured API token. The token
// is issued by Bakong and verified on their side; we only parse it to fail
// fast with a readable error instead of opaque 401s mid-poll.
func (c *BakongClient) TokenExpired(now time.Time) bool {
	if c.Token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return false // not a JWT; let the API decide
	}
	// A token without an exp claim never expires locally.
	return !claims.VerifyExpiresAt(now.Unix(), false)
}

type bakongCheckResponse struct {
	ResponseCode int    `json:"responseCode"` // 0 = found
	ErrorCode    *int   `json:"errorCode"`
	ResponseMsg  string `json:"responseMessage"`
	Data         *struct {
		Hash          string  `json:"hash"`
		ExternalRef   string  `json:"externalRef"`
		Amount        float64 `json:"amount"`
		Currency      string  `json:"currency"`
		CreatedDateMs int64   `json:"createdDateMs"`
	} `json:"data"`
}

// CheckSettlement asks the gateway whether the record's fingerprint has been
// paid. "Not found" is the normal answer while the payer has not scanned yet.
func (c *BakongClient) CheckSettlement(ctx context.Context, rec *model.SettlementRecord) (*GatewayStatus, error) {
	if c.TokenExpired(time.Now()) {
		return nil, fmt.Errorf("bakong: api token missing or expired")
	}

	body, _ := json.Marshal(map[string]string{"md5": rec.SettlementFingerprint})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/check_transaction_by_md5", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bakong: check transaction: %w", err)
	}
	defer resp.Body.Close()

	var out bakongCheckResponse
	raw := json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("bakong: decode response: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("bakong: decode response: %w", err)
	}

	status := &GatewayStatus{Raw: datatypes.JSON(raw)}
	if resp.StatusCode == http.StatusOK && out.ResponseCode == 0 && out.Data != nil {
		status.Settled = true
		status.ExternalID = out.Data.Hash
	}
	return status, nil
}
