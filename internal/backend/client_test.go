package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/checkin-pay/internal/domain"
)

func TestClient_Confirm(t *testing.T) {
	ctx := context.Background()
	req := domain.ConfirmRequest{
		OrderID:     "DINING_1700000000_42",
		PaymentKey:  "pk_test_1",
		Amount:      45000,
		Components:  domain.PaymentComponents{Cash: 45000},
		SubjectID:   "42",
		SubjectType: domain.SubjectDining,
	}

	t.Run("sends the order context", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/payments/confirm", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer srv.Close()

		c := New(Config{BaseURL: srv.URL + "/api/", AuthToken: "secret"})
		resp, err := c.Confirm(ctx, req)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, "DINING_1700000000_42", got["orderId"])
		assert.Equal(t, "pk_test_1", got["paymentKey"])
		assert.Equal(t, float64(45000), got["amount"])
		assert.Equal(t, "DINING", got["subjectType"])
		assert.Equal(t, map[string]any{"cash": float64(45000), "point": float64(0), "external": float64(0)}, got["paymentComponents"])
	})

	t.Run("error statuses are answers, not errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"alreadyProcessed":true,"message":"이미 처리된 주문입니다"}`))
		}))
		defer srv.Close()

		resp, err := New(Config{BaseURL: srv.URL}).Confirm(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.True(t, resp.AlreadyProcessed)
		assert.Equal(t, "이미 처리된 주문입니다", resp.Message)
	})

	t.Run("non json body is kept as message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		}))
		defer srv.Close()

		resp, err := New(Config{BaseURL: srv.URL}).Confirm(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "<html>bad gateway</html>", resp.Message)
	})

	t.Run("transport failure is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}).Confirm(ctx, req)
		assert.Error(t, err)
	})
}

func TestClient_Release(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body domain.ReleaseRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SubjectID == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"bad release"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, ReleasePath: "/release"})

	err := c.Release(ctx, domain.ReleaseRequest{SubjectType: domain.SubjectRoom, SubjectID: "301", Reason: "expired"})
	require.NoError(t, err)

	err = c.Release(ctx, domain.ReleaseRequest{SubjectType: domain.SubjectRoom, Reason: "expired"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(2), calls.Load())
}
