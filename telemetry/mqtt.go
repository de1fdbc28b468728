package telemetry

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 250 * time.Millisecond
	mqttQuiesceMS      = 250
)

// MQTTSink publishes every sample as JSON on one topic at QoS 0.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	log    zerolog.Logger
}

// DialMQTT connects to broker (tcp://host:port) and returns a sink on topic.
// The client reconnects on its own after the first connection succeeds.
func DialMQTT(broker, clientID, topic string, log zerolog.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", broker).Msg("connected to mqtt broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, errors.Errorf("connect %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect %s", broker)
	}
	return NewMQTTSink(client, topic, log), nil
}

func NewMQTTSink(client mqtt.Client, topic string, log zerolog.Logger) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, log: log}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(sample Sample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return errors.Wrap(err, "marshal sample")
	}
	token := s.client.Publish(s.topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.Errorf("publish %s: timeout", s.topic)
	}
	return errors.Wrapf(token.Error(), "publish %s", s.topic)
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(mqttQuiesceMS)
	return nil
}
