package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/internal/config"
	"github.com/jgoulah/meterwatch/pkg/models"
)

// MQTTPublisher publishes each stored balance reading as a retained
// message, so home-automation consumers always see the latest balance
// on subscribe.
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
}

// NewMQTTPublisher connects to the configured broker
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = "meterwatch"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID("meterwatch")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &MQTTPublisher{
		client:      client,
		topicPrefix: topicPrefix,
	}, nil
}

type balancePayload struct {
	DeviceID    string  `json:"device_id"`
	Balance     float64 `json:"balance"`
	CollectedAt string  `json:"collected_at"`
}

// PublishReading sends one balance reading to <prefix>/<device>/balance
func (p *MQTTPublisher) PublishReading(reading models.Reading) error {
	payload, err := json.Marshal(balancePayload{
		DeviceID:    reading.DeviceID,
		Balance:     reading.Balance,
		CollectedAt: reading.CollectedAt.Format(civil.DateTimeFormat),
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/balance", p.topicPrefix, reading.DeviceID)
	if token := p.client.Publish(topic, 1, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// Close disconnects from the MQTT broker
func (p *MQTTPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
