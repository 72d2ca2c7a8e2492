package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/linjuya-lu/mixer_bridge_go/internal/config"
)

// ClientOptions 配置 MQTT 客户端行为
// Broker: tcp://host:port
// ClientID: 客户端标识
// Username/Password: 可选认证
// KeepAlive: 心跳间隔
// ConnectTimeout: 连接超时
// TopicPrefix: 所有主题的前缀
type ClientOptions struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	TopicPrefix    string
	DefaultQos     byte
	DefaultRetain  bool
}

// OptionsFromConfig 把进程配置转换为客户端参数
func OptionsFromConfig(c config.MQTTConfig) ClientOptions {
	return ClientOptions{
		Broker:         c.Broker,
		ClientID:       c.ClientID,
		Username:       c.Username,
		Password:       c.Password,
		KeepAlive:      time.Duration(c.KeepAliveSec) * time.Second,
		ConnectTimeout: time.Duration(c.ConnectTimeoutSec) * time.Second,
		TopicPrefix:    c.TopicPrefix,
	}
}

type publishFunc func(topic string, qos byte, retain bool, payload []byte) error
type subscribeFunc func(topic string, qos byte, handler func(topic string, payload []byte)) error

// Client 把电平和连接状态镜像到 MQTT，并接收远程静音命令
type Client struct {
	inner     paho.Client
	opts      ClientOptions
	publish   publishFunc
	subscribe subscribeFunc
	mu        sync.Mutex
}

// NewClient 创建一个新的 MQTT 客户端并连接到 Broker
func NewClient(opts ClientOptions) (*Client, error) {
	p := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetKeepAlive(opts.KeepAlive).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if opts.Username != "" {
		p.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		p.SetPassword(opts.Password)
	}
	// 断线时 broker 代发离线状态
	p.SetWill(statusTopic(opts.TopicPrefix), offlineWill(), opts.DefaultQos, true)

	inner := paho.NewClient(p)
	tok := inner.Connect()
	if !tok.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout after %s", opts.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	c := newClient(opts,
		func(topic string, qos byte, retain bool, payload []byte) error {
			tok := inner.Publish(topic, qos, retain, payload)
			tok.Wait()
			return tok.Error()
		},
		func(topic string, qos byte, handler func(string, []byte)) error {
			tok := inner.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
				handler(m.Topic(), m.Payload())
			})
			tok.Wait()
			return tok.Error()
		})
	c.inner = inner
	return c, nil
}

func newClient(opts ClientOptions, pub publishFunc, sub subscribeFunc) *Client {
	opts.TopicPrefix = strings.TrimSuffix(opts.TopicPrefix, "/")
	return &Client{opts: opts, publish: pub, subscribe: sub}
}

// PublishLevel 发布某通道（从 0 开始）的最新电平
func (c *Client) PublishLevel(channel, value int, volume float64, muted bool) error {
	return c.publishEnvelope(levelTopic(c.opts.TopicPrefix, channel), LevelPayload{
		Channel:   channel + 1,
		Value:     value,
		Volume:    volume,
		Muted:     muted,
		Timestamp: time.Now().UnixNano(),
	}, false)
}

// PublishStatus 发布连接状态，保留消息便于新订阅者获取当前状态
func (c *Client) PublishStatus(state, detail, port string) error {
	return c.publishEnvelope(statusTopic(c.opts.TopicPrefix), StatusPayload{
		State:     state,
		Detail:    detail,
		Port:      port,
		Timestamp: time.Now().UnixNano(),
	}, true)
}

func (c *Client) publishEnvelope(topic string, payload interface{}, retain bool) error {
	body, err := json.Marshal(newEnvelope(payload))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publish(topic, c.opts.DefaultQos, retain || c.opts.DefaultRetain, body)
}

// SubscribeMute 订阅 <prefix>/channel/+/mute/set，payload 为 {"muted": bool}
// handler 收到的通道号从 0 开始
func (c *Client) SubscribeMute(handler func(channel int, muted bool)) error {
	topic := c.opts.TopicPrefix + "/channel/+/mute/set"
	return c.subscribe(topic, c.opts.DefaultQos, func(t string, raw []byte) {
		ch, ok := channelFromTopic(c.opts.TopicPrefix, t)
		if !ok {
			return
		}
		var cmd MuteCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return
		}
		handler(ch, cmd.Muted)
	})
}

// Disconnect 断开与 Broker 的连接
func (c *Client) Disconnect(quiesce uint) {
	if c.inner == nil {
		return
	}
	_ = c.PublishStatus(StateOffline, "", "")
	c.inner.Disconnect(quiesce)
}

func levelTopic(prefix string, channel int) string {
	return fmt.Sprintf("%s/channel/%d/level", prefix, channel+1)
}

func statusTopic(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/status"
}

// channelFromTopic 解析 <prefix>/channel/<n>/mute/set 中的 n（从 1 开始），返回从 0 开始的通道
func channelFromTopic(prefix, topic string) (int, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/channel/")
	if !ok {
		return 0, false
	}
	num, ok := strings.CutSuffix(rest, "/mute/set")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}
