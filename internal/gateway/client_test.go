package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL, workflowURL string) *Client {
	return NewClient(Options{
		BaseURL:        baseURL,
		AdminToken:     "admin",
		WorkflowURL:    workflowURL,
		CreateTimeout:  2 * time.Second,
		RequestTimeout: 2 * time.Second,
		Logger:         zap.NewNop(),
	})
}

func TestCreateInstanceReturnsTokenAndQR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"tok-123","qrcode":"data:image/png;base64,abc","number":"5511999999999@s.whatsapp.net"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	res, err := c.CreateInstance(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", res.Token)
	assert.Equal(t, "data:image/png;base64,abc", res.QR.ImageBase64)
	assert.Equal(t, "5511999999999@s.whatsapp.net", res.Number)
}

func TestCreateInstanceWithoutTokenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"qrcode":"data:image/png;base64,abc"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.CreateInstance(context.Background(), "tenant-1")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestCreateInstanceGatewayDown(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close() // conexão recusada

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.CreateInstance(context.Background(), "tenant-1")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestFetchStatusConnectedVariants(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantConn   bool
		wantNumber string
	}{
		{
			name:       "formato status.connected",
			body:       `{"status":{"connected":true,"jid":"5511988887777@s.whatsapp.net"}}`,
			wantConn:   true,
			wantNumber: "5511988887777@s.whatsapp.net",
		},
		{
			name:       "formato instance.status",
			body:       `{"instance":{"status":"connected","owner":"5511988887777"}}`,
			wantConn:   true,
			wantNumber: "5511988887777",
		},
		{
			name:     "desconectado",
			body:     `{"status":{"connected":false}}`,
			wantConn: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "tok", r.Header.Get("token"))
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL, srv.URL)
			res, err := c.FetchStatus(context.Background(), "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.wantConn, res.Connected)
			assert.Equal(t, tt.wantNumber, res.Number)
		})
	}
}

func TestFetchStatusNon2xxMeansInstanceGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.FetchStatus(context.Background(), "tok-morto")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestFetchStatusTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.FetchStatus(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.NotErrorIs(t, err, ErrInstanceNotFound)
}

func TestNormalizeQRVariants(t *testing.T) {
	t.Run("data URI passa direto", func(t *testing.T) {
		qr := normalizeQR(map[string]interface{}{"base64": "data:image/png;base64,abc"})
		assert.Equal(t, QRKindQR, qr.Kind)
		assert.Equal(t, "data:image/png;base64,abc", qr.ImageBase64)
	})

	t.Run("base64 de PNG cru ganha o prefixo", func(t *testing.T) {
		qr := normalizeQR(map[string]interface{}{"qrcode": "iVBORw0KGgoAAAANSUhEUg"})
		assert.Equal(t, QRKindQR, qr.Kind)
		assert.True(t, strings.HasPrefix(qr.ImageBase64, "data:image/png;base64,iVBOR"))
	})

	t.Run("string de pareamento vira PNG renderizado", func(t *testing.T) {
		qr := normalizeQR(map[string]interface{}{"code": "2@AbCdEf123456,xyz"})
		assert.Equal(t, QRKindQR, qr.Kind)
		assert.True(t, strings.HasPrefix(qr.ImageBase64, "data:image/png;base64,"))
	})

	t.Run("só pairing code", func(t *testing.T) {
		qr := normalizeQR(map[string]interface{}{"pairingCode": "ABCD-1234"})
		assert.Equal(t, QRKindQR, qr.Kind)
		assert.Equal(t, "ABCD-1234", qr.PairingCode)
		assert.Empty(t, qr.ImageBase64)
	})

	t.Run("resposta vazia", func(t *testing.T) {
		qr := normalizeQR(map[string]interface{}{})
		assert.True(t, qr.Empty())
	})
}

func TestLogoutPropagatesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	err := c.Logout(context.Background(), "tenant-1", "tok")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestListAllUsesAdminToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "admin", r.Header.Get("admintoken"))
		w.Write([]byte(`[{"id":"1","name":"tenant-1","token":"tok","status":"connected"}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	instances, err := c.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "tenant-1", instances[0].Name)
}
