// Package kafka 封装文档处理任务的生产与消费。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"seiji-fund-go/internal/config"
	"seiji-fund-go/pkg/log"
	"seiji-fund-go/pkg/tasks"
)

// 同一任务消费失败的最大次数，超过后跳过并提交位点，防止毒丸消息阻塞分区。
const maxConsumeAttempts = 3

const attemptKeyPrefix = "kafka:attempt:"

// Producer 任务生产者。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish 投递文档处理任务，以文档 ID 作为分区键，保证同一文档的
// 任务落在同一分区内有序。
func (p *Producer) Publish(ctx context.Context, task tasks.DocumentTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.DocumentID),
		Value: payload,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// TaskProcessor 是消费侧的任务处理回调。
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task tasks.DocumentTask) error
}

// StartConsumer 启动消费循环，阻塞直到 ctx 取消。
// 失败次数记录在 Redis 中，超过上限的消息跳过并提交位点。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(cfg.Brokers, ","),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	log.Infof("[Kafka] 消费者启动: topic=%s group=%s", cfg.Topic, cfg.GroupID)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("[Kafka] 消费者退出")
				return
			}
			log.Errorf("[Kafka] 拉取消息失败: %v", err)
			time.Sleep(time.Second)
			continue
		}

		var task tasks.DocumentTask
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			// 无法解析的消息直接提交跳过
			log.Errorf("[Kafka] 消息解析失败，跳过: %v", err)
			commit(ctx, reader, msg)
			continue
		}

		attemptKey := attemptKeyPrefix + task.DocumentID
		attempts, _ := rdb.Incr(ctx, attemptKey).Result()
		rdb.Expire(ctx, attemptKey, 24*time.Hour)
		if attempts > maxConsumeAttempts {
			log.Errorf("[Kafka] 任务 %s 已失败 %d 次，跳过", task.DocumentID, attempts-1)
			commit(ctx, reader, msg)
			continue
		}

		if err := processor.ProcessTask(ctx, task); err != nil {
			log.Errorf("[Kafka] 任务 %s 处理失败(第 %d 次): %v", task.DocumentID, attempts, err)
			// 不提交位点，等待重新投递
			continue
		}

		rdb.Del(ctx, attemptKey)
		commit(ctx, reader, msg)
	}
}

func commit(ctx context.Context, reader *kafka.Reader, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil {
		log.Errorf("[Kafka] 提交位点失败: %v", err)
	}
}
