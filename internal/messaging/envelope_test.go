package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "surety/pkg/domain-errors"
)

func orderPaid() *OrderPaid {
	return &OrderPaid{
		PolicyID:      uuid.New(),
		PolicyNumber:  "FIA202501000001",
		CustomerID:    "cust-1",
		PremiumAmount: decimal.NewFromInt(1000),
		TransactionID: "TXN-1",
		PaymentStatus: "paid",
		PaymentMethod: "credit_card",
	}
}

func TestEncodeDecode(t *testing.T) {
	occurred := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	env := NewEnvelope(orderPaid(), occurred, "saga-1")

	raw, err := Encode(env)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, TypeOrderPaid, got.Type)
	assert.Equal(t, "saga-1", got.CorrelationID)
	assert.True(t, occurred.Equal(got.OccurredAt))

	paid, ok := got.Payload.(*OrderPaid)
	require.True(t, ok, "payload should decode to *OrderPaid")
	assert.Equal(t, "TXN-1", paid.TransactionID)
	assert.True(t, decimal.NewFromInt(1000).Equal(paid.PremiumAmount))
}

func TestDecodeRejects(t *testing.T) {
	valid, err := Encode(NewEnvelope(orderPaid(), time.Now(), ""))
	require.NoError(t, err)

	mutate := func(fn func(m map[string]any)) []byte {
		var m map[string]any
		require.NoError(t, json.Unmarshal(valid, &m))
		fn(m)
		out, err := json.Marshal(m)
		require.NoError(t, err)
		return out
	}

	cases := []struct {
		name string
		raw  []byte
	}{
		{"malformed json", []byte("{not json")},
		{"unknown type", mutate(func(m map[string]any) { m["type"] = "policy.deleted" })},
		{"unsupported version", mutate(func(m map[string]any) { m["version"] = 2 })},
		{"missing id", mutate(func(m map[string]any) { delete(m, "id") })},
		{"missing payload", mutate(func(m map[string]any) { delete(m, "payload") })},
		{"invalid payload", mutate(func(m map[string]any) {
			m["payload"].(map[string]any)["transactionId"] = ""
		})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.raw)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestEncodeRejectsMismatchedType(t *testing.T) {
	env := NewEnvelope(orderPaid(), time.Now(), "")
	env.Type = TypeBillingNotification

	_, err := Encode(env)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCreditAssessmentCompletedValidate(t *testing.T) {
	p := &CreditAssessmentCompleted{PolicyID: uuid.New(), RiskLevel: "low", Score: 1200}
	assert.Error(t, p.Validate())

	p.Score = 820
	assert.NoError(t, p.Validate())
	assert.Equal(t, "low", p.Result()["riskLevel"])
}
