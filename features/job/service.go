package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ezgisubasi/leadership-coach-llm/internal/config"
)

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

const publishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo    Repository
	pub     EventPublisher
	logger  *slog.Logger
	timeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, timeout: publishTimeout}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Record parks a failed message so it can be retried later.
func (s *Service) Record(ctx context.Context, topic string, payload []byte, cause error) error {
	if !json.Valid(payload) {
		raw, _ := json.Marshal(string(payload))
		payload = raw
	}
	j := &Job{Topic: topic, Payload: payload, Error: cause.Error()}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "failed job recorded", "id", j.ID, "topic", topic)
	return nil
}

// Retry republishes the job payload and removes the job.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	topic := job.Topic
	if topic == "" {
		topic = config.TopicIndexRebuild
	}

	if err := s.publish(topic, job.Payload); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "job republished", "id", id, "topic", topic)
	return s.repo.Delete(ctx, id)
}

func (s *Service) publish(topic string, body []byte) error {
	if s.pub == nil {
		return errors.New("no publisher configured")
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(topic, body)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(s.timeout):
		return ErrPublishTimeout
	}
}

func (s *Service) Discard(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
