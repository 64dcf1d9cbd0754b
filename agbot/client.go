package agbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client implements the API onto the Agbot sensor cloud.
//
// Beyond the request/response calls it maintains a cache of the latest fleet status,
// refreshed by Run: the vendor's view of each asset is slow-moving data and the scan
// loop should not block on it.
type Client struct {
	httpClient http.Client
	baseUrl    string
	email      string
	password   string

	tokenMaxAge            time.Duration // how old an access token can be before we get a new one
	tokenLock              sync.Mutex    // the poll loop and the monitor's calibration reports share one token
	accessToken            string
	accessTokenLastUpdated time.Time

	lock           sync.RWMutex // mutex is used to lock access to `latestStatuses`
	latestStatuses map[string]DeviceStatus

	logger *slog.Logger
}

// authResponse is the JSON body that is sent by the vendor when we query the `auth/token` endpoint
type authResponse struct {
	AccessToken string `json:"access_token"`
}

func New(httpClient http.Client, baseUrl, email, password string, tokenMaxAge time.Duration) *Client {
	client := &Client{
		httpClient:     httpClient,
		baseUrl:        baseUrl,
		email:          email,
		password:       password,
		tokenMaxAge:    tokenMaxAge,
		lock:           sync.RWMutex{},
		latestStatuses: map[string]DeviceStatus{},
		logger:         slog.Default().With("host", baseUrl),
	}

	return client
}

// Run loops forever refreshing the fleet status cache every `period`. Exits when the
// context is cancelled.
func (c *Client) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:

			statuses, err := c.FleetStatus()
			if err != nil {
				c.logger.Error("Failed to update vendor statuses", "error", err)
				continue // try again next time
			}

			byAsset := make(map[string]DeviceStatus, len(statuses))
			for _, status := range statuses {
				byAsset[status.AssetID] = status
			}

			c.lock.Lock()
			c.latestStatuses = byAsset
			c.lock.Unlock()

			c.logger.Info("Updated vendor statuses", "assets", len(byAsset))
		}
	}
}

// LatestStatus returns the cached vendor status for the given asset, if the last fleet
// refresh included it.
func (c *Client) LatestStatus(assetID string) (DeviceStatus, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	status, ok := c.latestStatuses[assetID]
	return status, ok
}

// DeviceStatus pulls the vendor's current view of the given asset.
func (c *Client) DeviceStatus(assetID string) (DeviceStatus, error) {

	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/assets/%s/status", c.baseUrl, assetID),
		nil,
	)
	if err != nil {
		return DeviceStatus{}, err
	}

	err = c.authorizeRequest(req)
	if err != nil {
		return DeviceStatus{}, fmt.Errorf("authorization: %w", err)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return DeviceStatus{}, fmt.Errorf("get status: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != 200 {
		return DeviceStatus{}, fmt.Errorf("unexpected status code: %d", response.StatusCode)
	}

	parsedResponse := statusResponse{}
	err = json.NewDecoder(response.Body).Decode(&parsedResponse)
	if err != nil {
		return DeviceStatus{}, fmt.Errorf("parse body: %w", err)
	}

	return statusFromResponse(parsedResponse)
}

// FleetStatus pulls the vendor's current view of every asset on the account.
// Assets whose metric map doesn't decode are skipped with a warning rather than
// failing the whole refresh.
func (c *Client) FleetStatus() ([]DeviceStatus, error) {

	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/assets/status", c.baseUrl),
		nil,
	)
	if err != nil {
		return nil, err
	}

	err = c.authorizeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("authorization: %w", err)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get fleet status: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != 200 {
		return nil, fmt.Errorf("unexpected status code: %d", response.StatusCode)
	}

	parsedResponses := []statusResponse{}
	err = json.NewDecoder(response.Body).Decode(&parsedResponses)
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}

	statuses := make([]DeviceStatus, 0, len(parsedResponses))
	for _, parsedResponse := range parsedResponses {
		status, err := statusFromResponse(parsedResponse)
		if err != nil {
			c.logger.Warn("Skipping undecodable vendor status", "asset_id", parsedResponse.AssetID, "error", err)
			continue
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// ReportCalibration sends an observed tank capacity back to the vendor as a
// calibration hint for the given asset.
func (c *Client) ReportCalibration(assetID string, capacityLitres float64) error {

	calibrationData, err := json.Marshal(calibrationRequest{CapacityLitres: capacityLitres})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/assets/%s/calibration", c.baseUrl, assetID),
		bytes.NewBuffer(calibrationData),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	err = c.authorizeRequest(req)
	if err != nil {
		return fmt.Errorf("authorization: %w", err)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post calibration: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != 200 {
		return fmt.Errorf("unexpected status code: %d", response.StatusCode)
	}

	c.logger.Info("Reported capacity calibration", "asset_id", assetID, "capacity_litres", capacityLitres)

	return nil
}

// authorizeRequest adds the required Authorization header with access token to the given request (updating the access token as required).
func (c *Client) authorizeRequest(req *http.Request) error {
	c.tokenLock.Lock()
	defer c.tokenLock.Unlock()

	if (time.Since(c.accessTokenLastUpdated)) >= c.tokenMaxAge {
		err := c.updateAccessToken()
		if err != nil {
			return fmt.Errorf("update access token: %w", err)
		}
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.accessToken))

	return nil
}

// updateAccessToken queries the vendor auth endpoint for a new access token and saves it
func (c *Client) updateAccessToken() error {

	// The body of the request uses url encoding
	data := url.Values{}
	data.Set("username", c.email)
	data.Set("password", c.password)

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/auth/token", c.baseUrl),
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get auth: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != 200 {
		return fmt.Errorf("unexpected status code: %d", response.StatusCode)
	}

	parsedResponse := authResponse{}
	err = json.NewDecoder(response.Body).Decode(&parsedResponse)
	if err != nil {
		return fmt.Errorf("parse body: %w", err)
	}

	c.accessToken = parsedResponse.AccessToken
	c.accessTokenLastUpdated = time.Now()

	return nil
}
