package yolink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Device API method names.
const (
	MethodGetDeviceList  = "Home.getDeviceList"
	MethodGetGeneralInfo = "Home.getGeneralInfo"

	// codeSuccess is the API's success code.
	codeSuccess = "000000"

	maxResponseBody = 4 << 20
)

// DeviceRecord is one entry of Home.getDeviceList.
type DeviceRecord struct {
	DeviceID   string `json:"deviceId"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	DeviceUDID string `json:"deviceUDID"`
	Token      string `json:"token"`
}

// AccessTokenSource yields a valid bearer token. *TokenManager implements it.
type AccessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// APIClient calls the YoLink device API.
type APIClient struct {
	url        string
	tokens     AccessTokenSource
	httpClient *http.Client
	now        func() time.Time
}

// NewAPIClient creates a client for apiURL. A nil httpClient selects a
// client with a 10 second timeout.
func NewAPIClient(apiURL string, tokens AccessTokenSource, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{
		url:        apiURL,
		tokens:     tokens,
		httpClient: httpClient,
		now:        time.Now,
	}
}

type apiRequest struct {
	Method string `json:"method"`
	Time   string `json:"time"`
}

type apiResponse struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

// ListDevices returns every device registered to the home.
func (c *APIClient) ListDevices(ctx context.Context) ([]DeviceRecord, error) {
	data, err := c.call(ctx, MethodGetDeviceList)
	if err != nil {
		return nil, err
	}

	var body struct {
		Devices []DeviceRecord `json:"devices"`
	}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("%w: decoding device list: %w", ErrAPI, err)
		}
	}
	return body.Devices, nil
}

// HomeID returns the home identifier used in the MQTT report topic.
func (c *APIClient) HomeID(ctx context.Context) (string, error) {
	data, err := c.call(ctx, MethodGetGeneralInfo)
	if err != nil {
		return "", err
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("%w: decoding general info: %w", ErrAPI, err)
	}
	if body.ID == "" {
		return "", fmt.Errorf("%w: general info has no home id", ErrAPI)
	}
	return body.ID, nil
}

// call posts one method request and returns the data member of a
// successful response.
func (c *APIClient) call(ctx context.Context, method string) (json.RawMessage, error) {
	accessToken, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAPI, method, err)
	}

	payload, err := json.Marshal(apiRequest{
		Method: method,
		Time:   strconv.FormatInt(c.now().UnixMilli(), 10),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAPI, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAPI, method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAPI, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading response: %w", ErrAPI, method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrAPI, method, resp.StatusCode)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: decoding response: %w", ErrAPI, method, err)
	}
	if out.Code != codeSuccess {
		return nil, fmt.Errorf("%w: %s: code %s: %s", ErrAPI, method, out.Code, out.Desc)
	}

	return out.Data, nil
}
