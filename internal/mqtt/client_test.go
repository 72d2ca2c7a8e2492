package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linjuya-lu/mixer_bridge_go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic  string
	retain bool
	body   []byte
}

type fakeBroker struct {
	msgs     []published
	handlers map[string]func(string, []byte)
}

func newFake(prefix string) (*Client, *fakeBroker) {
	b := &fakeBroker{handlers: map[string]func(string, []byte){}}
	c := newClient(ClientOptions{TopicPrefix: prefix},
		func(topic string, _ byte, retain bool, payload []byte) error {
			b.msgs = append(b.msgs, published{topic, retain, payload})
			return nil
		},
		func(topic string, _ byte, h func(string, []byte)) error {
			b.handlers[topic] = h
			return nil
		})
	return c, b
}

func decode(t *testing.T, body []byte, payload interface{}) Envelope {
	t.Helper()
	env := Envelope{Payload: payload}
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestPublishLevel(t *testing.T) {
	c, b := newFake("mixer/")
	require.NoError(t, c.PublishLevel(2, 512, 0.5, true))

	require.Len(t, b.msgs, 1)
	assert.Equal(t, "mixer/channel/3/level", b.msgs[0].topic)
	assert.False(t, b.msgs[0].retain)

	var p LevelPayload
	env := decode(t, b.msgs[0].body, &p)
	assert.Equal(t, "application/json", env.ContentType)
	_, err := uuid.Parse(env.RequestID)
	assert.NoError(t, err)
	assert.NotEqual(t, env.RequestID, env.CorrelationID)
	assert.Equal(t, 3, p.Channel)
	assert.Equal(t, 512, p.Value)
	assert.True(t, p.Muted)
}

func TestPublishStatusIsRetained(t *testing.T) {
	c, b := newFake("desk")
	require.NoError(t, c.PublishStatus("connected", "", "/dev/ttyUSB0"))

	require.Len(t, b.msgs, 1)
	assert.Equal(t, "desk/status", b.msgs[0].topic)
	assert.True(t, b.msgs[0].retain)

	var p StatusPayload
	decode(t, b.msgs[0].body, &p)
	assert.Equal(t, "connected", p.State)
	assert.Equal(t, "/dev/ttyUSB0", p.Port)
}

func TestSubscribeMute(t *testing.T) {
	c, b := newFake("mixer")
	type call struct {
		ch    int
		muted bool
	}
	var calls []call
	require.NoError(t, c.SubscribeMute(func(ch int, muted bool) { calls = append(calls, call{ch, muted}) }))

	h := b.handlers["mixer/channel/+/mute/set"]
	require.NotNil(t, h)
	h("mixer/channel/2/mute/set", []byte(`{"muted":true}`))
	h("mixer/channel/0/mute/set", []byte(`{"muted":true}`))
	h("mixer/channel/x/mute/set", []byte(`{"muted":true}`))
	h("mixer/channel/1/mute/set", []byte(`not json`))

	assert.Equal(t, []call{{1, true}}, calls)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.MQTTConfig{Broker: "tcp://b:1883", KeepAliveSec: 30, ConnectTimeoutSec: 5, TopicPrefix: "m"})
	assert.Equal(t, 30*time.Second, opts.KeepAlive)
	assert.Equal(t, 5*time.Second, opts.ConnectTimeout)
	assert.Equal(t, "m", opts.TopicPrefix)
}

func TestOfflineWill(t *testing.T) {
	var p StatusPayload
	decode(t, []byte(offlineWill()), &p)
	assert.Equal(t, StateOffline, p.State)
}
