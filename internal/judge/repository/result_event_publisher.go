package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/common/mq"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

// DefaultResultTopic carries final result events.
const DefaultResultTopic = "judge.result.final"

// MQResultEventPublisher publishes final results to a message queue.
type MQResultEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQResultEventPublisher creates a new publisher. An empty topic uses
// DefaultResultTopic.
func NewMQResultEventPublisher(producer mq.Producer, topic string) *MQResultEventPublisher {
	if topic == "" {
		topic = DefaultResultTopic
	}
	return &MQResultEventPublisher{producer: producer, topic: topic}
}

// PublishFinal publishes a final result event keyed by submission id.
func (p *MQResultEventPublisher) PublishFinal(ctx context.Context, mode model.Mode, rec model.ResultRecord) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("result publisher is not configured")
	}
	if rec.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	event := model.ResultEvent{
		Mode:      mode,
		Result:    rec,
		CreatedAt: time.Now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal result event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = rec.SubmissionID
	message.SetHeader("x-judge-mode", string(mode))
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ResultPublishFailed, "publish result event failed")
	}
	return nil
}
