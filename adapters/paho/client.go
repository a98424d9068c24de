// Package paho implements telemetry.BusConnection over the Eclipse
// Paho MQTT client. Reconnects are delegated to Paho's auto-reconnect;
// the pipeline's OnConnect callback fires on every (re)connection so
// the subscription set is always re-derived in full.
package paho

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	telemetry "github.com/2saloni/agrolt-dashboard"
	"github.com/2saloni/agrolt-dashboard/retry"
)

// Config holds the broker connection settings.
type Config struct {
	BrokerURL string // e.g. "tcp://localhost:1883"
	ClientID  string
	Username  string
	Password  string

	// QoS for telemetry subscriptions. At-least-once (1) is the
	// default; the versioned store tolerates duplicate deliveries
	// (each becomes its own record).
	QoS byte

	// ConnectRetry governs backoff for the initial broker connection.
	// Zero value means retry.DefaultStrategy().
	ConnectRetry retry.Strategy

	// ConnectTimeout bounds each individual connection attempt.
	ConnectTimeout time.Duration
}

// Client wraps a Paho MQTT client as a telemetry.BusConnection.
type Client struct {
	cfg    Config
	logger telemetry.Logger
	mqtt   mqtt.Client
}

var _ telemetry.BusConnection = (*Client)(nil)

// NewClient creates an unconnected bus client.
func NewClient(cfg Config, logger telemetry.Logger) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "agrolt-pipeline"
	}
	if cfg.QoS == 0 {
		cfg.QoS = 1
	}
	if cfg.ConnectRetry == (retry.Strategy{}) {
		cfg.ConnectRetry = retry.DefaultStrategy()
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Client{cfg: cfg, logger: logger}
}

// Connect dials the broker, retrying with exponential backoff until the
// strategy is exhausted or ctx is cancelled. onConnect runs after every
// successful (re)connection, onConnectionLost on every drop.
func (c *Client) Connect(ctx context.Context, onConnect func(), onConnectionLost func(error)) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(c.cfg.ConnectRetry.MaxDelay).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetOrderMatters(false)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetOnConnectHandler(func(mqtt.Client) {
		onConnect()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		onConnectionLost(err)
	})

	c.mqtt = mqtt.NewClient(opts)

	attempt := 0
	for {
		token := c.mqtt.Connect()
		token.Wait()
		if token.Error() == nil {
			return nil
		}

		attempt++
		if c.cfg.ConnectRetry.Exhausted(attempt) {
			return telemetry.NewErrorWithCause(
				telemetry.ErrCodeConnectivity,
				fmt.Sprintf("broker connection failed after %d attempts", attempt),
				token.Error(),
			)
		}

		delay := c.cfg.ConnectRetry.Delay(attempt)
		c.logger.Warnf("Broker connection attempt %d failed (%v), retrying in %v",
			attempt, token.Error(), delay)
		select {
		case <-ctx.Done():
			return telemetry.NewErrorWithCause(
				telemetry.ErrCodeConnectivity, "broker connection cancelled", ctx.Err())
		case <-time.After(delay):
		}
	}
}

// Subscribe registers handler for one topic at the configured QoS.
func (c *Client) Subscribe(topic string, handler telemetry.MessageHandler) error {
	if c.mqtt == nil {
		return telemetry.NewError(telemetry.ErrCodeConnectivity, "not connected")
	}
	token := c.mqtt.Subscribe(topic, c.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return telemetry.NewErrorWithCause(
			telemetry.ErrCodeConnectivity,
			fmt.Sprintf("failed to subscribe to %s", topic),
			err,
		)
	}
	return nil
}

// IsConnected reports broker-level connectivity.
func (c *Client) IsConnected() bool {
	return c.mqtt != nil && c.mqtt.IsConnected()
}

// Disconnect tears the connection down, allowing in-flight work a short
// quiesce window.
func (c *Client) Disconnect() {
	if c.mqtt != nil {
		c.mqtt.Disconnect(250)
	}
}
