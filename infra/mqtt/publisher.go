// Package mqtt publishes committed route plans to the simulation over
// MQTT. Publishing is the commit half of the decision-epoch protocol:
// the simulation owns vehicle movement from commit until the next
// snapshot.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/transitops/darp/core/model"
	"github.com/transitops/darp/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Topic      string `json:"topic"`
	QoS        byte   `json:"qos"`
	Retain     bool   `json:"retain"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	TimeoutMS  int    `json:"timeout_ms"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PlanPublisher implements the dispatch Committer over MQTT.
type PlanPublisher struct {
	cli     pahoClient
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
	log     logger.Logger
}

// NewPlanPublisher connects to the broker and returns a ready publisher.
func NewPlanPublisher(cfg Config) (*PlanPublisher, error) {
	opts, err := newClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt-publisher")
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PlanPublisher{
		cli:     cli,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: timeout,
		log:     log,
	}, nil
}

func newClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.CABundle != "" {
			pem, err := os.ReadFile(cfg.CABundle)
			if err != nil {
				return nil, fmt.Errorf("mqtt: read ca bundle: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("mqtt: no certificates in %s", cfg.CABundle)
			}
			tlsCfg.RootCAs = pool
		}
		if cfg.ClientCert != "" && cfg.ClientKey != "" {
			cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("mqtt: load client keypair: %w", err)
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// Wire format of a committed plan. Routes are sorted by vehicle id so
// the payload is deterministic for a given plan.
type stopMessage struct {
	Kind      string  `json:"kind"`
	TripID    string  `json:"trip_id"`
	Location  string  `json:"location"`
	Arrival   float64 `json:"arrival"`
	Departure float64 `json:"departure"`
	Load      int     `json:"load"`
}

type routeMessage struct {
	VehicleID string        `json:"vehicle_id"`
	Stops     []stopMessage `json:"stops"`
}

type planMessage struct {
	Version string         `json:"version"`
	Epoch   float64        `json:"epoch"`
	Routes  []routeMessage `json:"routes"`
}

func encodePlan(plan *model.RoutePlan) planMessage {
	msg := planMessage{Version: plan.Version, Epoch: plan.Epoch}
	vids := make([]string, 0, len(plan.Routes))
	for vid := range plan.Routes {
		vids = append(vids, vid)
	}
	sort.Strings(vids)
	for _, vid := range vids {
		route := routeMessage{VehicleID: vid}
		for _, s := range plan.Routes[vid].Stops {
			route.Stops = append(route.Stops, stopMessage{
				Kind:      s.Kind.String(),
				TripID:    s.Trip.ID,
				Location:  s.Location.Label,
				Arrival:   s.Arrival,
				Departure: s.Departure,
				Load:      s.Load,
			})
		}
		msg.Routes = append(msg.Routes, route)
	}
	return msg
}

// Commit publishes the plan on the configured topic.
func (p *PlanPublisher) Commit(plan *model.RoutePlan) error {
	payload, err := json.Marshal(encodePlan(plan))
	if err != nil {
		return fmt.Errorf("mqtt: encode plan %s: %w", plan.Version, err)
	}
	token := p.cli.Publish(p.topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt: publish of plan %s timed out after %s", plan.Version, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish plan %s: %w", plan.Version, err)
	}
	p.log.Debugf("published plan %s for epoch %.0f", plan.Version, plan.Epoch)
	return nil
}

// Close disconnects from the broker.
func (p *PlanPublisher) Close() {
	p.cli.Disconnect(250)
}
