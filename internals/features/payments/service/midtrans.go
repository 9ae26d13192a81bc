// file: internals/features/payments/service/midtrans.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	ordermodel "playhost_backend/internals/features/orders/model"
	model "playhost_backend/internals/features/payments/model"
)

/* =========================================================
   Midtrans rail (card / e-wallet)

   The second settlement rail. The QR codec never sees these payments;
   they enter the same state machine through CheckTransaction polling and
   the signed notification webhook.
========================================================= */

type MidtransGateway struct {
	Core      coreapi.Client
	Snap      snap.Client
	ServerKey string
}

// NewMidtransGateway must be called at bootstrap.
// useProduction=true for Production, false for Sandbox.
func NewMidtransGateway(serverKey string, useProduction bool) *MidtransGateway {
	env := midtrans.Sandbox
	if useProduction {
		env = midtrans.Production
	}
	g := &MidtransGateway{ServerKey: serverKey}
	g.Core.New(serverKey, env)
	g.Snap.New(serverKey, env)
	return g
}

// GenerateCheckoutURL creates a hosted-checkout session for an invoice. The
// settlement external ref doubles as the Midtrans order id, which is what
// the notification webhook echoes back.
func (g *MidtransGateway) GenerateCheckoutURL(externalRef string, o *ordermodel.Order, amount float64, description string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("midtrans: invalid amount %v", amount)
	}
	gross := int64(math.Round(amount))

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  externalRef,
			GrossAmt: gross,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:       o.OrderNumber,
				Price:    gross,
				Qty:      1,
				Name:     truncate(description, 50),
				Category: "game-server",
			},
		},
	}
	if o.OrderCustomerEmail != "" {
		req.CustomerDetail = &midtrans.CustomerDetails{Email: o.OrderCustomerEmail}
	}

	resp, err := g.Snap.CreateTransaction(req)
	if err != nil {
		return "", fmt.Errorf("midtrans: create transaction: %w", err)
	}
	return resp.RedirectURL, nil
}

// CheckSettlement polls transaction status by external ref.
func (g *MidtransGateway) CheckSettlement(ctx context.Context, rec *model.SettlementRecord) (*GatewayStatus, error) {
	resp, mErr := g.Core.CheckTransaction(rec.SettlementExternalRef)
	if mErr != nil {
		return nil, fmt.Errorf("midtrans: check transaction: %w", mErr)
	}

	settled := resp.TransactionStatus == "settlement" ||
		(resp.TransactionStatus == "capture" && resp.FraudStatus == "accept")

	raw, _ := json.Marshal(resp)
	return &GatewayStatus{
		Settled:    settled,
		ExternalID: resp.TransactionID,
		Raw:        raw,
	}, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
