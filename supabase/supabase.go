package supabase

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	supa "github.com/nedpals/supabase-go"

	"github.com/fueltrace/tankmonitor/telemetry"
)

const (
	supabaseQueryTimeout  = time.Second * 30
	supabaseUploadTimeout = time.Second * 10
)

// Client provides an interface onto the Supabase platform.
// It hides the underlying open source supabase library and adds reconnection and timeout logic.
type Client struct {
	url     string
	anonKey string
	userKey string
	schema  string

	subClient       *supa.Client // the raw client of the underlying supabase library we are using
	shouldReconnect bool         // when true, the subClient is 'dirty' and will be re-created next time a read or write call is made
	logger          *slog.Logger
}

func New(url, anonKey, userKey, schema string) (*Client, error) {
	client := &Client{
		url:             url,
		anonKey:         anonKey,
		userKey:         userKey,
		schema:          schema,
		shouldReconnect: true, // shouldReconnect is marked as true from instantiation so the connection will be made lazily on the first request to read or write
		logger:          slog.Default().With("host", url),
	}

	return client, nil
}

// FetchReadings returns the raw telemetry rows for the given device recorded at or
// after `since`. The rows come back as they were stored - loosely typed, unsorted,
// duplicates included - and are expected to go through telemetry.Normalize before any
// analysis.
func (c *Client) FetchReadings(deviceID uuid.UUID, since time.Time) ([]telemetry.RawReading, error) {

	err := c.reconnectIfNeccesary()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// The supabase client library doesn't have good timeout support, so here we wrap the call in a timeout
	type result struct {
		rows []telemetry.RawReading
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		var rows []telemetry.RawReading
		err := c.subClient.DB.From(SUPABASE_READINGS_TABLE_NAME).
			Select("*").
			Eq("device_id", deviceID.String()).
			Gte("time", since.UTC().Format(time.RFC3339)).
			Execute(&rows)
		resultCh <- result{rows: rows, err: err}
	}()

	select {
	case <-time.After(supabaseQueryTimeout):
		c.setShouldReconnect()
		return nil, errors.New("timed out")
	case result := <-resultCh:
		if result.err != nil {
			c.setShouldReconnect()
			return nil, fmt.Errorf("select readings: %w", result.err)
		}
		return result.rows, nil
	}
}

// FetchDevices returns the fleet's device registry.
func (c *Client) FetchDevices() ([]telemetry.Device, error) {

	err := c.reconnectIfNeccesary()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	type result struct {
		rows []supabaseDevice
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		var rows []supabaseDevice
		err := c.subClient.DB.From(SUPABASE_DEVICES_TABLE_NAME).
			Select("*").
			Execute(&rows)
		resultCh <- result{rows: rows, err: err}
	}()

	select {
	case <-time.After(supabaseQueryTimeout):
		c.setShouldReconnect()
		return nil, errors.New("timed out")
	case result := <-resultCh:
		if result.err != nil {
			c.setShouldReconnect()
			return nil, fmt.Errorf("select devices: %w", result.err)
		}
		return convertDevicesFromSupabase(result.rows), nil
	}
}

// UploadSnapshots takes the given analysis snapshots of any type, and attempts to upload to the relevant supabase table.
func (c *Client) UploadSnapshots(snapshots interface{}) error {

	err := c.reconnectIfNeccesary()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	// The supabase client library doesn't have good timeout support, so here we wrap the call in a timeout
	errCh := make(chan error, 1)
	go func() {
		// Convert the analysis results (e.g. analytics.DeviceAnalytics) into the supabase types (e.g. supabaseDeviceSnapshot)
		supabaseSnapshots, supabaseTableName := convertSnapshotsForSupabase(snapshots)
		errCh <- c.subClient.DB.From(supabaseTableName).Insert(supabaseSnapshots).Execute(nil)
	}()

	select {
	case <-time.After(supabaseUploadTimeout):
		c.setShouldReconnect()
		return errors.New("timed out")
	case err := <-errCh:
		if err != nil {
			c.setShouldReconnect()
		}
		return err
	}
}

// createSubClient creates the open-source supabase library client with sensible defaults and connects to the host.
func (c *Client) createSubClient() error {

	subClient := supa.CreateClient(c.url, c.anonKey)

	// The supabase client library doesn't have a fully featured interface, here we specify options directly by
	// adding headers to the postgrest requests.
	// Use the appropriate schema:
	subClient.DB.AddHeader("Accept-Profile", c.schema)
	subClient.DB.AddHeader("Content-Profile", c.schema)

	// Use a user JWT:
	if c.userKey != "" {
		subClient.DB.AddHeader("Authorization", fmt.Sprintf("Bearer %s", c.userKey))
	}

	c.subClient = subClient

	return nil
}

// setShouldReconnect is called when there has been an error with the supabase connection that should trigger a re-connect.
func (c *Client) setShouldReconnect() {
	c.shouldReconnect = true
}

// reconnectIfNeccesary will close the old connection and reconnect if there have been problems with the connection.
func (c *Client) reconnectIfNeccesary() error {
	if !c.shouldReconnect {
		return nil
	}

	err := c.createSubClient()
	if err != nil {
		return err
	}

	c.shouldReconnect = false

	c.logger.Info("Created supabase client")

	return nil
}
