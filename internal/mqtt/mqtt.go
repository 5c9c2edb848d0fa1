// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mqtt publishes SCD30 readings as JSON to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// quiesce is the number of milliseconds to wait for existing work to be
	// completed on disconnect.
	quiesce = 250
	timeout = 10 * time.Second
)

// Message is the JSON payload of a reading.
type Message struct {
	Time        time.Time `json:"time"`
	CO2         float32   `json:"co2"`
	Temperature float32   `json:"temperature"`
	Humidity    float32   `json:"humidity"`
	Level       string    `json:"level,omitempty"`
}

// Publisher sends readings to one topic.
type Publisher struct {
	Topic    string
	QoS      byte
	Retained bool

	client  paho.Client
	publish func(topic string, qos byte, retained bool, payload []byte) error
}

// ClientOptionsFromURL creates ClientOptions from URL. The path of the URL is
// returned as the topic prefix. The client id is taken from the client-id
// query parameter, or derived from the machine id.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", errors.Wrapf(err, "parsing broker url %q", serverURL)
	}
	if u.Host == "" {
		return nil, "", errors.Errorf("broker url %q has no host", serverURL)
	}
	var server string
	if u.Scheme == "" || u.Scheme == "mqtt" {
		server = "tcp"
	} else {
		server = u.Scheme
	}
	server += "://" + u.Host

	topicPrefix := strings.TrimPrefix(u.Path, "/")

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(timeout)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	clientID := u.Query().Get("client-id")
	if clientID == "" {
		clientID = ClientID()
	}
	opts.SetClientID(clientID)
	return opts, topicPrefix, nil
}

// ClientID returns a stable client id for this host. The machine id is hashed
// so it is not disclosed to the broker.
func ClientID() string {
	id, err := machineid.ProtectedID("scd30")
	if err != nil || len(id) < 12 {
		host, _ := os.Hostname()
		return "scd30-" + host
	}
	return "scd30-" + id[:12]
}

// JoinTopic joins a prefix and a topic with a single slash.
func JoinTopic(prefix, topic string) string {
	prefix = strings.Trim(prefix, "/")
	topic = strings.Trim(topic, "/")
	switch {
	case prefix == "":
		return topic
	case topic == "":
		return prefix
	default:
		return prefix + "/" + topic
	}
}

// New connects to the broker at serverURL.
func New(serverURL, topic string, qos byte, retained bool) (*Publisher, error) {
	opts, prefix, err := ClientOptionsFromURL(serverURL)
	if err != nil {
		return nil, err
	}
	client := paho.NewClient(opts)
	p := &Publisher{
		Topic:    JoinTopic(prefix, topic),
		QoS:      qos,
		Retained: retained,
		client:   client,
	}
	p.publish = func(topic string, qos byte, retained bool, payload []byte) error {
		if !client.IsConnected() {
			log.Debugf("mqtt broker isn't connected, reconnect it")
			if err := wait(client.Connect()); err != nil {
				return errors.Wrap(err, "reconnecting to mqtt broker")
			}
		}
		return wait(client.Publish(topic, qos, retained, payload))
	}
	if err := wait(client.Connect()); err != nil {
		return nil, errors.Wrapf(err, "connecting to mqtt broker %s", serverURL)
	}
	log.Infof("connected to mqtt broker %s as %s", serverURL, opts.ClientID)
	return p, nil
}

func wait(t paho.Token) error {
	if !t.WaitTimeout(timeout) {
		return errors.New("mqtt operation timed out")
	}
	return t.Error()
}

// NewMessage converts a reading to its JSON payload.
func NewMessage(r scd30.Reading, at time.Time, level string) Message {
	return Message{Time: at.UTC(), CO2: r.CO2, Temperature: r.Temperature, Humidity: r.Humidity, Level: level}
}

// Publish sends m to the topic of p.
func (p *Publisher) Publish(m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding mqtt message")
	}
	log.Debugf("publishing %v bytes to topic %v", len(payload), p.Topic)
	if err := p.publish(p.Topic, p.QoS, p.Retained, payload); err != nil {
		return errors.Wrapf(err, "publishing topic %v", p.Topic)
	}
	return nil
}

// Close will end the connection to the broker.
func (p *Publisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(quiesce)
	}
	return nil
}
