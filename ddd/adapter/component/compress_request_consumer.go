package component

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	appsvc "compress-service/ddd/application/app"
	"compress-service/ddd/application/cqe"
	"compress-service/pkg/config"
	pkgkafka "compress-service/pkg/kafka"
	"compress-service/pkg/logger"
	"compress-service/pkg/manager"
)

// CompressRequestConsumerPlugin 消费 compress requests topic
type CompressRequestConsumerPlugin struct{}

func (p *CompressRequestConsumerPlugin) Name() string { return "compressRequestConsumer" }

// MustCreateComponent returns nil when kafka is disabled; the manager skips it.
func (p *CompressRequestConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	if deps == nil || deps.Config == nil || !deps.Config.Kafka.Enabled {
		return nil
	}
	app, ok := deps.CompressApp.(appsvc.CompressApp)
	if !ok {
		panic("compressRequestConsumer requires CompressApp")
	}
	return &compressRequestConsumer{app: app, cfg: deps.Config.Kafka}
}

// fetchRetryBackoff 读取失败后的等待时间，避免 broker 不可用时空转
const fetchRetryBackoff = time.Second

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type compressRequestConsumer struct {
	app          appsvc.CompressApp
	cfg          config.KafkaConfig
	reader       messageReader
	retryBackoff time.Duration // 0 = fetchRetryBackoff
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

func (c *compressRequestConsumer) Start() error {
	if c.reader == nil {
		c.reader = pkgkafka.DefaultClient().Reader(c.cfg.Topics.CompressRequests, c.cfg.GroupID)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.done = make(chan struct{})
	go c.loop()
	return nil
}

func (c *compressRequestConsumer) loop() {
	defer close(c.done)
	defer c.reader.Close()
	logger.Infof("Kafka consumer started topic=%s group=%s", c.cfg.Topics.CompressRequests, c.cfg.GroupID)
	for {
		msg, err := c.reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF") {
				logger.Debug("Kafka reader EOF")
			} else {
				logger.Warnf("Kafka read error error=%s", err.Error())
			}
			if !c.backoff() {
				return
			}
			continue
		}
		if c.handle(c.ctx, msg.Value) {
			if err := c.reader.CommitMessages(c.ctx, msg); err != nil && c.ctx.Err() == nil {
				logger.Warnf("Kafka commit failed offset=%d error=%v", msg.Offset, err)
			}
		}
	}
}

// backoff waits before the next fetch; false means the consumer is stopping.
func (c *compressRequestConsumer) backoff() bool {
	d := c.retryBackoff
	if d <= 0 {
		d = fetchRetryBackoff
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// handle processes one message and reports whether its offset may be committed.
func (c *compressRequestConsumer) handle(ctx context.Context, value []byte) bool {
	var m cqe.CompressRequestMsg
	if err := json.Unmarshal(value, &m); err != nil {
		logger.Warnf("Kafka message unmarshal error error=%s", err.Error())
		return c.cfg.CommitOnDecodeError
	}
	logger.Infof("Kafka message received user_id=%s key=%s", m.UserID, m.Key)
	job, err := c.app.Submit(ctx, &m)
	if err != nil {
		logger.Warnf("Submit compress request failed user_id=%s error=%s", m.UserID, err.Error())
		return c.cfg.CommitOnProcessError
	}
	logger.Infof("Compress job started job_id=%s user_id=%s", job.JobID, m.UserID)
	return true
}

func (c *compressRequestConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

func (c *compressRequestConsumer) GetName() string { return "compressRequestConsumer" }
