package flutterwave

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/payments", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order-1-abc", body["tx_ref"])
		assert.Equal(t, "350.00", body["amount"])

		_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.example/pay/x1"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "sk_test", srv.Client())
	link, err := c.CreatePaymentLink(context.Background(), LinkRequest{
		TxRef:    "order-1-abc",
		Amount:   decimal.NewFromInt(350),
		Currency: "NGN",
		Customer: Customer{Email: "b@x.ng"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/pay/x1", link.URL)
}

func TestCreatePaymentLinkGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"Invalid currency"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "sk", srv.Client()).CreatePaymentLink(context.Background(), LinkRequest{TxRef: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid currency")
}

func TestVerifyByReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/transactions/verify_by_reference", r.URL.Path)
		assert.Equal(t, "delivery-9-x", r.URL.Query().Get("tx_ref"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"id":4411,"tx_ref":"delivery-9-x","status":"successful","amount":1500,"currency":"NGN"}}`))
	}))
	defer srv.Close()

	tx, err := New(srv.URL, "sk", srv.Client()).VerifyByReference(context.Background(), "delivery-9-x")
	require.NoError(t, err)
	assert.Equal(t, "successful", tx.Status)
	assert.Equal(t, int64(4411), tx.ID)
	assert.True(t, decimal.NewFromInt(1500).Equal(tx.Amount))
}
