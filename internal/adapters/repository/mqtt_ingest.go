package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const DefaultMQTTTopic = "mamamind/+/readings"

// MQTTConfig holds the broker connection settings
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
}

// MQTTIngest subscribes to device reading topics and records each message.
// The subject id is the topic segment matched by the wildcard.
type MQTTIngest struct {
	client        mqtt.Client
	cfg           MQTTConfig
	vitalsService ports.VitalsService
	logger        *zap.Logger
	ctx           context.Context
}

// NewMQTTIngest connects to the broker; call Start to subscribe
func NewMQTTIngest(cfg MQTTConfig, vitalsService ports.VitalsService, logger *zap.Logger) (*MQTTIngest, error) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultMQTTTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MQTTIngest{
		cfg:           cfg,
		vitalsService: vitalsService,
		logger:        logger.With(zap.String("component", "mqtt_ingest")),
		ctx:           context.Background(),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.logger.Warn("MQTT connection lost", zap.Error(err))
	})
	// resubscribe after automatic reconnects
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(m.cfg.Topic, m.cfg.QoS, m.onMessage); token.Wait() && token.Error() != nil {
			m.logger.Error("MQTT subscribe failed", zap.String("topic", m.cfg.Topic), zap.Error(token.Error()))
			return
		}
		m.logger.Info("subscribed to MQTT topic", zap.String("topic", m.cfg.Topic))
	})

	m.client = mqtt.NewClient(opts)
	return m, nil
}

// Start connects and subscribes. ctx bounds the intake of every message.
func (m *MQTTIngest) Start(ctx context.Context) error {
	m.ctx = ctx
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	m.logger.Info("connected to MQTT broker", zap.String("broker", m.cfg.BrokerURL))
	return nil
}

func (m *MQTTIngest) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := m.HandleMessage(m.ctx, msg.Topic(), msg.Payload()); err != nil {
		m.logger.Warn("failed to ingest MQTT reading",
			zap.String("topic", msg.Topic()),
			zap.Bool("rejected", errors.Is(err, errRejected)),
			zap.Error(err),
		)
	}
}

// HandleMessage records one reading published on topic
func (m *MQTTIngest) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	subject, err := SubjectFromTopic(topic)
	if err != nil {
		return fmt.Errorf("%w: %v", errRejected, err)
	}

	result, err := ingestReading(ctx, m.vitalsService, domain.SourceMQTT, payload, subject)
	if err != nil {
		return err
	}

	m.logger.Info("reading ingested",
		zap.String("reading_id", result.Reading.ID.String()),
		zap.String("subject_id", result.Reading.SubjectID.String()),
		zap.String("status", string(result.Analysis.Status)),
	)
	return nil
}

// SubjectFromTopic extracts the subject segment from mamamind/<subject>/readings
func SubjectFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}
	return parts[1], nil
}

// Close disconnects from the broker
func (m *MQTTIngest) Close() {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}
