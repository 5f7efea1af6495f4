package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exampin-backend/internal/config"
)

// AnswerAutosaver mirrors session answers into a Redis hash per session.
type AnswerAutosaver struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAnswerAutosaver creates an AnswerAutosaver. Keys expire after ttl of
// inactivity.
func NewAnswerAutosaver(rdb *redis.Client, ttl time.Duration) *AnswerAutosaver {
	return &AnswerAutosaver{rdb: rdb, ttl: ttl}
}

// RecordAnswer stores value for questionID; an empty value removes it.
func (a *AnswerAutosaver) RecordAnswer(ctx context.Context, sessionID uuid.UUID, questionID, value string) error {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	pipe := a.rdb.Pipeline()
	if value == "" {
		pipe.HDel(ctx, key, questionID)
	} else {
		pipe.HSet(ctx, key, questionID, value)
	}
	pipe.Expire(ctx, key, a.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

