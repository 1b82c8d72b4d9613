package nomination

import (
	"encoding/json"

	"github.com/go-redis/redis"

	"github.com/advisorhq/voicebridge/internal/domains/call"
	"github.com/advisorhq/voicebridge/pkg/Logger"
)

// RedisNotifier implements call.Notifier on redis pub/sub, one channel
// per session id.
type RedisNotifier struct {
	rc     *redis.Client
	logger *Logger.Logger
}

func NewRedisNotifier(rc *redis.Client, logger *Logger.Logger) *RedisNotifier {
	return &RedisNotifier{rc: rc, logger: logger}
}

// Subscribe implements call.Notifier.
func (n *RedisNotifier) Subscribe(sessionID string) (call.Subscription, error) {
	pubsub := n.rc.Subscribe(UpdatesChannel(sessionID))
	if _, err := pubsub.Receive(); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub:  pubsub,
		updates: make(chan call.SessionUpdate, 8),
	}
	go sub.pump(n.logger, sessionID)
	return sub, nil
}

type redisSubscription struct {
	pubsub  *redis.PubSub
	updates chan call.SessionUpdate
}

func (s *redisSubscription) pump(logger *Logger.Logger, sessionID string) {
	defer close(s.updates)
	for msg := range s.pubsub.Channel() {
		var update call.SessionUpdate
		if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
			logger.Warnf("malformed session update for %s: %v", sessionID, err)
			continue
		}
		s.updates <- update
	}
}

func (s *redisSubscription) Updates() <-chan call.SessionUpdate {
	return s.updates
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
