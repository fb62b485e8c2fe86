package realtime

import (
	"fmt"
	"time"

	"github.com/aegisalert/aegis/shared"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	subscribeQoS   = 1
	publishQoS     = 1
	connectTimeout = 10 * time.Second
)

// MQTTTransport carries the channel over an MQTT broker. Clean sessions are
// deliberate: the broker drops our subscriptions on disconnect, which is
// exactly the "group membership is not preserved server-side" behaviour the
// reconnect path is written for.
type MQTTTransport struct {
	client mqtt.Client
	onLost func(err error)
}

func NewMQTTTransport(config shared.RealtimeConfig) *MQTTTransport {
	transport := &MQTTTransport{}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	// unique client id, so multiple agents on one host don't evict each other
	opts.SetClientID(fmt.Sprintf("aegis-%v", uuid.New().String()[:8]))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetOrderMatters(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(connectTimeout)

	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		if transport.onLost != nil {
			transport.onLost(err)
		}
	})

	transport.client = mqtt.NewClient(opts)
	return transport
}

func (t *MQTTTransport) Dial() error {
	token := t.client.Connect()
	token.Wait()
	return token.Error()
}

func (t *MQTTTransport) Close() {
	t.client.Disconnect(250)
}

func (t *MQTTTransport) IsConnected() bool {
	return t.client.IsConnected()
}

func (t *MQTTTransport) Subscribe(topic string, fn func(topic string, payload []byte)) error {
	token := t.client.Subscribe(topic, subscribeQoS, func(client mqtt.Client, msg mqtt.Message) {
		fn(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (t *MQTTTransport) Publish(topic string, payload []byte) error {
	token := t.client.Publish(topic, publishQoS, false, payload)
	token.Wait()
	return token.Error()
}

func (t *MQTTTransport) OnConnectionLost(fn func(err error)) {
	t.onLost = fn
}
