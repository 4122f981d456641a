// Package producer sends gateway events to Kafka with a Sarama sync producer
// and tracks whether the cluster is reachable.
package producer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Message is one record to send. Key selects the partition.
type Message struct {
	Topic     string
	Key       string
	Headers   map[string]string
	Value     []byte
	Timestamp time.Time
}

// Option customises a Producer.
type Option func(*Producer)

// WithSaramaConfig replaces the default Sarama config.
func WithSaramaConfig(cfg *sarama.Config) Option {
	return func(p *Producer) {
		if cfg != nil {
			p.saramaCfg = cfg
		}
	}
}

// WithCheckInterval sets how often broker reachability is re-checked.
func WithCheckInterval(interval time.Duration) Option {
	return func(p *Producer) {
		if interval > 0 {
			p.checkEvery = interval
		}
	}
}

// WithClientID sets the Kafka client id.
func WithClientID(id string) Option {
	return func(p *Producer) {
		if id != "" {
			p.clientID = id
		}
	}
}

// Producer sends messages and waits for broker acknowledgement.
type Producer struct {
	logger     zerolog.Logger
	saramaCfg  *sarama.Config
	checkEvery time.Duration
	clientID   string

	client sarama.Client
	sync   sarama.SyncProducer
	ready  atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New connects to brokers and starts the reachability check.
func New(brokers []string, logger zerolog.Logger, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: no brokers configured")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &Producer{
		logger:     logger.With().Str("component", "kafka_producer").Logger(),
		checkEvery: 30 * time.Second,
		clientID:   "pos-gateway",
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	cfg := p.config()
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: connect: %w", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	p.client, p.sync = client, producer
	p.checkBrokers()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)

	p.logger.Info().Strs("brokers", brokers).Bool("ready", p.IsReady()).Msg("kafka producer connected")
	return p, nil
}

// config returns the Sarama settings for ordered, acknowledged delivery.
func (p *Producer) config() *sarama.Config {
	var cfg sarama.Config
	if p.saramaCfg != nil {
		cfg = *p.saramaCfg
	} else {
		d := sarama.NewConfig()
		d.Version = sarama.V2_5_0_0
		d.Producer.RequiredAcks = sarama.WaitForAll
		d.Producer.Idempotent = true
		d.Producer.Retry.Max = 3
		d.Producer.Retry.Backoff = 250 * time.Millisecond
		d.Producer.Partitioner = sarama.NewHashPartitioner
		d.Net.MaxOpenRequests = 1
		cfg = *d
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Metadata.RefreshFrequency = p.checkEvery
	cfg.ClientID = p.clientID
	return &cfg
}

// Send delivers msg unless ctx is already done.
func (p *Producer) Send(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return errors.New("kafka producer: message has no topic")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	record := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Value),
		Timestamp: msg.Timestamp,
	}
	if msg.Key != "" {
		record.Key = sarama.StringEncoder(msg.Key)
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	partition, offset, err := p.sync.SendMessage(record)
	p.ready.Store(err == nil)
	if err != nil {
		return fmt.Errorf("kafka producer: send to %s: %w", msg.Topic, err)
	}
	p.logger.Debug().
		Str("topic", msg.Topic).
		Str("key", msg.Key).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("kafka message acknowledged")
	return nil
}

// IsReady reports whether the last check or send reached the cluster.
func (p *Producer) IsReady() bool {
	return p.ready.Load()
}

// Close stops the check loop and releases the producer and its client.
func (p *Producer) Close() error {
	var err error
	p.once.Do(func() {
		p.cancel()
		<-p.done
		err = p.sync.Close()
		if cerr := p.client.Close(); cerr != nil && !errors.Is(cerr, sarama.ErrClosedClient) {
			err = errors.Join(err, cerr)
		}
	})
	return err
}

func (p *Producer) checkBrokers() {
	err := p.client.RefreshMetadata()
	if err != nil {
		p.logger.Warn().Err(err).Msg("kafka brokers unreachable")
	}
	p.ready.Store(err == nil)
}

func (p *Producer) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkBrokers()
		}
	}
}
