// Package mqtt publishes decoded signals to an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/squadracorsepolito/candecode/dispatch"
	"github.com/squadracorsepolito/candecode/internal"
	"github.com/squadracorsepolito/candecode/output"
	"go.opentelemetry.io/otel/metric"
)

var ErrConnectTimeout = errors.New("mqtt: connection timeout")

type Config struct {
	Enabled        bool          `yaml:"enabled" env:"ENABLED"`
	Broker         string        `yaml:"broker" env:"BROKER"`
	ClientID       string        `yaml:"client_id" env:"CLIENT_ID"`
	TopicPrefix    string        `yaml:"topic_prefix" env:"TOPIC_PREFIX"`
	QoS            byte          `yaml:"qos" env:"QOS"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Broker:         "tcp://localhost:1883",
		TopicPrefix:    "candecode",
		ConnectTimeout: 5 * time.Second,
	}
}

// maxPending bounds the publications in flight before Observe blocks.
const maxPending = 1024

type pendingPublish struct {
	topic string
	token paho.Token
}

// Sink publishes every decoded signal on <prefix>/<frame>/<signal>.
// Unmatched frames go to <prefix>/unmatched.
type Sink struct {
	tel *internal.Telemetry

	cfg *Config

	client paho.Client

	// publications with QoS above 0 waiting for the broker
	pending []pendingPublish

	publishedMessages metric.Int64Counter
}

func NewSink(cfg *Config) *Sink {
	tel := internal.NewTelemetry("sink", "mqtt")

	return &Sink{
		tel: tel,

		cfg: cfg,

		publishedMessages: tel.NewCounter("published_messages"),
	}
}

func (s *Sink) Init(_ context.Context) error {
	clientID := s.cfg.ClientID
	if clientID == "" {
		clientID = "candecode-" + uuid.NewString()
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)

	opts.OnConnect = func(_ paho.Client) {
		s.tel.LogInfo("connected", "broker", s.cfg.Broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		s.tel.LogWarn("connection lost", "broker", s.cfg.Broker, "reason", err)
	}

	s.client = paho.NewClient(opts)

	token := s.client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		return fmt.Errorf("%w: %s", ErrConnectTimeout, s.cfg.Broker)
	}

	return token.Error()
}

// Topic returns the topic an event is published on.
func (s *Sink) Topic(ev *dispatch.Event) string {
	if ev.Unmatched() {
		return s.cfg.TopicPrefix + "/unmatched"
	}
	return strings.Join([]string{s.cfg.TopicPrefix, ev.FrameName(), ev.SignalName()}, "/")
}

func (s *Sink) Observe(ctx context.Context, ev *dispatch.Event) {
	payload, err := output.MarshalEvent(ev)
	if err != nil {
		s.tel.LogError("failed to encode event", err)
		return
	}

	topic := s.Topic(ev)
	token := s.client.Publish(topic, s.cfg.QoS, false, payload)

	if s.cfg.QoS == 0 {
		// QoS 0 has no acknowledgement, only immediate failures are reported
		if err := token.Error(); err != nil {
			s.tel.LogError("failed to publish", err, "topic", topic)
			return
		}
	} else {
		s.track(topic, token)
	}

	s.publishedMessages.Add(ctx, 1)
}

// track records an in flight publication and collects the completed ones.
// When too many are in flight the oldest one is waited for.
func (s *Sink) track(topic string, token paho.Token) {
	s.pending = append(s.pending, pendingPublish{topic: topic, token: token})
	s.reapPending()

	if len(s.pending) >= maxPending {
		oldest := s.pending[0]
		if oldest.token.WaitTimeout(s.cfg.ConnectTimeout) {
			s.checkToken(oldest)
		} else {
			s.tel.LogWarn("publish not acknowledged", "topic", oldest.topic)
		}
		s.pending = s.pending[1:]
	}
}

func (s *Sink) reapPending() {
	n := 0
	for _, p := range s.pending {
		select {
		case <-p.token.Done():
			s.checkToken(p)
		default:
			s.pending[n] = p
			n++
		}
	}
	clear(s.pending[n:])
	s.pending = s.pending[:n]
}

func (s *Sink) checkToken(p pendingPublish) {
	if err := p.token.Error(); err != nil {
		s.tel.LogError("failed to publish", err, "topic", p.topic)
	}
}

func (s *Sink) Close(_ context.Context) error {
	for _, p := range s.pending {
		if p.token.WaitTimeout(s.cfg.ConnectTimeout) {
			s.checkToken(p)
		}
	}
	s.pending = nil

	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}
