package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusChannel = "user_status_channel"

// incrScript — read-modify-write должен быть атомарным: два сокета одного
// пользователя не должны оба увидеть 0→1.
// KEYS: count, status, heartbeat, set; ARGV: ttl, now, user_id
var incrScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
redis.call("EXPIRE", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], "online", "EX", ARGV[1])
redis.call("SET", KEYS[3], ARGV[2], "EX", ARGV[1])
if c == 1 then
  redis.call("SADD", KEYS[4], ARGV[3])
end
return c
`)

// KEYS: count, status, heartbeat, set; ARGV: ttl, offline_ttl, user_id
var decrScript = redis.NewScript(`
local c = tonumber(redis.call("GET", KEYS[1]) or "0")
if c <= 1 then
  redis.call("DEL", KEYS[1], KEYS[3])
  redis.call("SET", KEYS[2], "offline", "EX", ARGV[2])
  redis.call("SREM", KEYS[4], ARGV[3])
  return 0
end
c = redis.call("DECR", KEYS[1])
redis.call("EXPIRE", KEYS[1], ARGV[1])
return c
`)

// KEYS: count, status, heartbeat; ARGV: ttl, now
var heartbeatScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("EXPIRE", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], "online", "EX", ARGV[1])
redis.call("SET", KEYS[3], ARGV[2], "EX", ARGV[1])
return 1
`)

// RedisStore — разделяемое presence-хранилище поверх Redis.
// Любой сбой Redis деградирует до консервативного дефолта
// (offline / count=0|1), presence никогда не валит сессию.
type RedisStore struct {
	client     *redis.Client
	leaseTTL   time.Duration
	offlineTTL time.Duration
}

func NewRedisStore(client *redis.Client, leaseTTL, offlineTTL time.Duration) *RedisStore {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}
	if offlineTTL <= 0 {
		offlineTTL = 60 * time.Second
	}
	return &RedisStore{client: client, leaseTTL: leaseTTL, offlineTTL: offlineTTL}
}

func countKey(userID string) string     { return "user:" + userID + ":connections" }
func statusKey(userID string) string    { return "user:" + userID + ":status" }
func heartbeatKey(userID string) string { return "user:" + userID + ":last_heartbeat" }

func (s *RedisStore) Increment(ctx context.Context, userID string, isStaff bool) (int64, error) {
	keys := []string{countKey(userID), statusKey(userID), heartbeatKey(userID), onlineSetName(isStaff)}
	ttl := int64(s.leaseTTL / time.Second)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	count, err := incrScript.Run(ctx, s.client, keys, ttl, now, userID).Int64()
	if err != nil {
		slog.Error("presence: increment failed", "user", userID, "err", err)
		return 1, nil
	}
	if count == 1 {
		s.publish(ctx, StatusEvent{UserID: userID, Status: StatusOnline, IsStaff: isStaff})
	}
	return count, nil
}

func (s *RedisStore) Decrement(ctx context.Context, userID string, isStaff bool) (int64, error) {
	keys := []string{countKey(userID), statusKey(userID), heartbeatKey(userID), onlineSetName(isStaff)}
	ttl := int64(s.leaseTTL / time.Second)
	offline := int64(s.offlineTTL / time.Second)

	count, err := decrScript.Run(ctx, s.client, keys, ttl, offline, userID).Int64()
	if err != nil {
		slog.Error("presence: decrement failed", "user", userID, "err", err)
		return 0, nil
	}
	if count == 0 {
		s.publish(ctx, StatusEvent{UserID: userID, Status: StatusOffline, IsStaff: isStaff})
	}
	return count, nil
}

func (s *RedisStore) Heartbeat(ctx context.Context, userID string) error {
	keys := []string{countKey(userID), statusKey(userID), heartbeatKey(userID)}
	ttl := int64(s.leaseTTL / time.Second)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	if err := heartbeatScript.Run(ctx, s.client, keys, ttl, now).Err(); err != nil {
		slog.Error("presence: heartbeat failed", "user", userID, "err", err)
	}
	return nil
}

func (s *RedisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Get(ctx, countKey(userID)).Int64()
	if err != nil {
		if err != redis.Nil {
			slog.Error("presence: is_online failed", "user", userID, "err", err)
		}
		return false, nil
	}
	return n > 0, nil
}

func (s *RedisStore) ListOnline(ctx context.Context, staff bool) ([]string, error) {
	set := onlineSetName(staff)
	members, err := s.client.SMembers(ctx, set).Result()
	if err != nil {
		slog.Error("presence: list_online failed", "err", err)
		return nil, nil
	}

	online := make([]string, 0, len(members))
	var stale []string
	for _, id := range members {
		exists, err := s.client.Exists(ctx, countKey(id)).Result()
		if err != nil {
			continue
		}
		if exists > 0 {
			online = append(online, id)
		} else {
			stale = append(stale, id)
		}
	}
	// самовосстановление множества: выселяем истёкших
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, set, stale).Err(); err != nil {
			slog.Debug("presence: stale srem failed", "err", err)
		}
	}
	return online, nil
}

func (s *RedisStore) Status(ctx context.Context, userID string) (string, error) {
	v, err := s.client.Get(ctx, statusKey(userID)).Result()
	if err != nil {
		return StatusOffline, nil
	}
	return v, nil
}

func (s *RedisStore) publish(ctx context.Context, ev StatusEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, statusChannel, data).Err(); err != nil {
		slog.Debug("presence: publish failed", "err", err)
	}
}
