package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/energy"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
)

type stubEnergyPoster struct {
	path    string
	payload map[string]interface{}
	resp    json.RawMessage
	err     error
}

func (s *stubEnergyPoster) Post(ctx context.Context, path string, payload map[string]interface{}) (json.RawMessage, error) {
	s.path = path
	s.payload = payload
	return s.resp, s.err
}

func TestEnergyServiceCreateOrderValidation(t *testing.T) {
	poster := &stubEnergyPoster{resp: json.RawMessage(`{"order_no":"E1"}`)}
	svc := NewEnergyService(poster, nil, time.Second, nil)
	ctx := context.Background()
	var appErr *appErrors.Error

	_, err := svc.CreateOrder(ctx, models.EnergyOrderRequest{ReceiveAddress: testRecipient, Energy: 31999})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "energy")

	_, err = svc.CreateOrder(ctx, models.EnergyOrderRequest{ReceiveAddress: "TFfagVe1aZpSfYaruY6xJfVPYZBuMj57FJ", Energy: 65000})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "receive_address must be a valid TRON address", appErr.Message)
	assert.Empty(t, poster.path)

	body, err := svc.CreateOrder(ctx, models.EnergyOrderRequest{ReceiveAddress: testRecipient, Energy: 65000, Duration: "1h"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"order_no":"E1"}`, string(body))
	assert.Equal(t, energy.PathCreateOrder, poster.path)
	assert.Equal(t, testRecipient, poster.payload["receive_address"])
	assert.Equal(t, int64(65000), poster.payload["energy_amount"])
	assert.Equal(t, "1h", poster.payload["rent_duration"])
}

func TestEnergyServiceCheckOrderRequiresReference(t *testing.T) {
	svc := NewEnergyService(&stubEnergyPoster{resp: json.RawMessage(`{}`)}, nil, time.Second, nil)

	_, err := svc.CheckOrder(context.Background(), models.EnergyOrderQuery{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.CheckOrder(context.Background(), models.EnergyOrderQuery{OutTradeNo: "notice-42"})
	require.NoError(t, err)
}

func TestEnergyServiceMapsUpstreamErrors(t *testing.T) {
	poster := &stubEnergyPoster{err: energy.ErrNotConfigured}
	svc := NewEnergyService(poster, nil, time.Second, nil)
	var appErr *appErrors.Error

	_, err := svc.CheckAddress(context.Background(), models.EnergyAddressQuery{Address: testRecipient})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)

	poster.err = &energy.StatusError{Status: http.StatusServiceUnavailable, Body: "busy"}
	_, err = svc.CheckAddress(context.Background(), models.EnergyAddressQuery{Address: testRecipient})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
}

func TestEnergyServiceSignsThroughClient(t *testing.T) {
	var gotSig, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotSig = r.Header.Get(energy.HeaderSignature)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer server.Close()

	client := energy.New(energy.Options{
		BaseURL: server.URL,
		APIID:   "api-1",
		APIKey:  "key-1",
		Now:     func() time.Time { return time.Unix(1700000000, 0) },
	})
	svc := NewEnergyService(client, nil, 5*time.Second, nil)

	body, err := svc.CheckAddress(context.Background(), models.EnergyAddressQuery{Address: testRecipient})
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true}`, string(body))

	_, want, err := energy.Sign([]byte("key-1"), []byte(gotBody))
	require.NoError(t, err)
	assert.Equal(t, want, gotSig)
	assert.Equal(t, `{"address":"`+testRecipient+`","api_id":"api-1","timestamp":1700000000}`, gotBody)
}
