// Package mqtt mirrors every collector payload to an MQTT broker and keeps a
// retained availability topic with a last-will of "offline".
package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"ups-metric-sender/internal/config"
	"ups-metric-sender/internal/logger"
	"ups-metric-sender/internal/payload"
)

// Publisher is the optional MQTT mirror
type Publisher struct {
	client   paho.Client
	settings config.MQTTSettings
	topics   Topics
	now      func() time.Time
}

// NewPublisher creates a publisher; Connect must be called before publishing
func NewPublisher(settings config.MQTTSettings, deviceID string) *Publisher {
	topics := Topics{Prefix: settings.TopicPrefix, DeviceID: deviceID}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", settings.Broker, settings.Port))
	opts.SetClientID(settings.ClientID)
	opts.SetUsername(settings.Username)
	opts.SetPassword(settings.Password)
	opts.SetAutoReconnect(true)

	keepAlive := settings.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 60 * time.Second
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(10 * time.Second)

	// broker marks us offline if the connection drops without a clean disconnect
	opts.SetWill(topics.Status(), StatusOffline, 1, true)

	opts.SetOnConnectHandler(func(client paho.Client) {
		logger.LogInfo("📡 MQTT mirror connected to %s:%d", settings.Broker, settings.Port)
		if token := client.Publish(topics.Status(), 1, true, StatusOnline); token.Wait() && token.Error() != nil {
			logger.LogWarn("Error publishing online status on connect: %v", token.Error())
		}
	})
	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		logger.LogError("MQTT mirror disconnected: %v", err)
	})

	return newPublisher(paho.NewClient(opts), settings, topics)
}

func newPublisher(client paho.Client, settings config.MQTTSettings, topics Topics) *Publisher {
	return &Publisher{
		client:   client,
		settings: settings,
		topics:   topics,
		now:      time.Now,
	}
}

// Topics returns the topic layout
func (p *Publisher) Topics() Topics {
	return p.topics
}

// Connect connects to the broker, retrying every RetryDelay until ctx is done
func (p *Publisher) Connect(ctx context.Context) error {
	retryDelay := p.settings.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}

	for attempt := 1; ; attempt++ {
		logger.LogDebug("🔄 Connecting MQTT mirror to broker (attempt %d)...", attempt)

		token := p.client.Connect()
		select {
		case <-ctx.Done():
			return fmt.Errorf("MQTT mirror connection cancelled: %w", ctx.Err())
		case <-token.Done():
		}

		if token.Error() == nil {
			logger.LogInfo("✅ MQTT mirror connected after %d attempts", attempt)
			return nil
		}

		logger.LogError("MQTT mirror connection failed (attempt %d): %v", attempt, token.Error())
		logger.LogInfo("⏳ Retrying in %.0f seconds...", retryDelay.Seconds())

		select {
		case <-ctx.Done():
			return fmt.Errorf("MQTT mirror connection cancelled: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}
}

// Disconnect publishes "offline" and closes the connection
func (p *Publisher) Disconnect(ctx context.Context) {
	if !p.client.IsConnected() {
		return
	}
	if err := p.PublishStatusOffline(ctx); err != nil {
		logger.LogWarn("Error publishing offline status: %v", err)
	}
	p.client.Disconnect(250)
	logger.LogDebug("🔌 MQTT mirror disconnected")
}

// PublishMetrics mirrors the collector payload
func (p *Publisher) PublishMetrics(ctx context.Context, pl payload.Payload) error {
	body, err := pl.JSON()
	if err != nil {
		return fmt.Errorf("error serializing payload: %w", err)
	}
	logger.LogTrace("📤 Mirroring payload → %s", p.topics.Metrics())
	return p.publish(ctx, p.topics.Metrics(), 0, false, body)
}

func (p *Publisher) publish(ctx context.Context, topic string, qos byte, retained bool, body interface{}) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("client is not connected")
	}

	token := p.client.Publish(topic, qos, retained, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("error publishing to %s: %w", topic, token.Error())
		}
		return nil
	}
}
