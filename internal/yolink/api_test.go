package yolink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) AccessToken(context.Context) (string, error) { return "", ErrAuth }

// apiServer answers device API calls with canned data per method.
func apiServer(t *testing.T, handler func(method string) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1772366400000", req["time"])

		status, body := handler(req["method"])
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAPI(url string, tokens AccessTokenSource) *APIClient {
	c := NewAPIClient(url, tokens, nil)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestListDevices(t *testing.T) {
	srv := apiServer(t, func(method string) (int, string) {
		assert.Equal(t, MethodGetDeviceList, method)
		return http.StatusOK, `{"code":"000000","time":1,"method":"Home.getDeviceList","data":{"devices":[
			{"deviceId":"d1","name":"Front Door","type":"DoorSensor","deviceUDID":"u1","token":"t1"},
			{"deviceId":"h1","name":"Hub","type":"Hub","deviceUDID":"u2","token":"t2"}]}}`
	})

	devices, err := newTestAPI(srv.URL, staticToken("tok-123")).ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, DeviceRecord{DeviceID: "d1", Name: "Front Door", Type: "DoorSensor", DeviceUDID: "u1", Token: "t1"}, devices[0])
}

func TestListDevices_EmptyData(t *testing.T) {
	srv := apiServer(t, func(string) (int, string) {
		return http.StatusOK, `{"code":"000000","data":null}`
	})

	devices, err := newTestAPI(srv.URL, staticToken("tok-123")).ListDevices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestHomeID(t *testing.T) {
	srv := apiServer(t, func(method string) (int, string) {
		assert.Equal(t, MethodGetGeneralInfo, method)
		return http.StatusOK, `{"code":"000000","data":{"id":"home-42"}}`
	})

	id, err := newTestAPI(srv.URL, staticToken("tok-123")).HomeID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "home-42", id)
}

func TestAPI_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusInternalServerError, `oops`},
		{"api error code", http.StatusOK, `{"code":"010104","desc":"Token is expired"}`},
		{"garbage body", http.StatusOK, `not json`},
		{"missing home id", http.StatusOK, `{"code":"000000","data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apiServer(t, func(string) (int, string) { return tt.status, tt.body })
			_, err := newTestAPI(srv.URL, staticToken("tok-123")).HomeID(context.Background())
			assert.ErrorIs(t, err, ErrAPI)
		})
	}
}

func TestAPI_TokenFailure(t *testing.T) {
	c := NewAPIClient("http://127.0.0.1:1", failingToken{}, nil)
	_, err := c.ListDevices(context.Background())
	require.ErrorIs(t, err, ErrAPI)
	assert.True(t, errors.Is(err, ErrAuth))
}
