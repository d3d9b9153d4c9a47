package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqttclient "github.com/eclipse/paho.mqtt.golang"

	"github.com/msgsight/cfgd/pkg/logging"
)

// DefaultTopicPrefix is used when MQTTConfig.TopicPrefix is empty.
const DefaultTopicPrefix = "cfgd/config"

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Username    string
	Password    string
	// ConnectTimeout bounds the initial connection. Defaults to 5s.
	ConnectTimeout time.Duration
}

// MQTTPublisher republishes change events to an MQTT broker. Object events
// go to <prefix>/<Type>/<Name> (singletons to <prefix>/<Type>), reloads to
// <prefix>/_reload.
type MQTTPublisher struct {
	client mqttclient.Client
	cfg    MQTTConfig
	log    *slog.Logger
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig, log *slog.Logger) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = "cfgd-notify"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", cfg.QoS)
	}
	if log == nil {
		log = logging.Nop()
	}

	opts := mqttclient.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqttclient.Client, err error) {
		log.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})

	client := mqttclient.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return &MQTTPublisher{client: client, cfg: cfg, log: log}, nil
}

// Topic returns the topic an event is published to.
func (p *MQTTPublisher) Topic(ev Event) string {
	if ev.Operation == OpReload {
		return p.cfg.TopicPrefix + "/_reload"
	}
	topic := p.cfg.TopicPrefix + "/" + topicLevel(ev.Type)
	if ev.Name != "" {
		topic += "/" + topicLevel(ev.Name)
	}
	return topic
}

var topicEscaper = strings.NewReplacer("%", "%25", "/", "%2F", "+", "%2B", "#", "%23")

// topicLevel escapes characters that MQTT forbids or treats as separators
// in a publish topic.
func topicLevel(s string) string { return topicEscaper.Replace(s) }

// Publish sends one event and waits for the broker acknowledgement.
func (p *MQTTPublisher) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.Topic(ev), p.cfg.QoS, false, payload)
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", p.Topic(ev))
	}
	return token.Error()
}

// Run forwards hub events until ctx is done.
func (p *MQTTPublisher) Run(ctx context.Context, hub *Hub) {
	sub := hub.Subscribe(Filter{})
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := p.Publish(ev); err != nil {
				p.log.Warn("mqtt publish failed", "event", ev.ID, "error", err)
			}
		}
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
