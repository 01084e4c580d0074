package batching

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/uzzaidev/ChatBot-Oficial-sub002/infrastructure/valkey"
)

// KEYS[1] list, KEYS[2] marker; ARGV content, token, ttl in ms. The marker
// time comes from the server clock so every replica measures the same window.
const pushScript = `
local t = redis.call('TIME')
local ms = t[1] * 1000 + math.floor(t[2] / 1000)
redis.call('RPUSH', KEYS[1], ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('SET', KEYS[2], ARGV[2] .. '|' .. string.format('%d', ms), 'PX', ARGV[3])
return 1
`

// KEYS[1] marker. Returns token and quiet milliseconds, both from the server.
const markerScript = `
local marker = redis.call('GET', KEYS[1])
if not marker then
  return false
end
local token, at = string.match(marker, '^(.*)|(%d+)$')
if not token then
  return {marker, -1}
end
local t = redis.call('TIME')
local now = t[1] * 1000 + math.floor(t[2] / 1000)
return {token, now - tonumber(at)}
`

// KEYS[1] list, KEYS[2] marker; ARGV token
const drainScript = `
local marker = redis.call('GET', KEYS[2])
if not marker then
  return {'stale'}
end
local token = string.match(marker, '^(.*)|%d+$')
if token ~= ARGV[1] then
  return {'stale'}
end
local items = redis.call('LRANGE', KEYS[1], 0, -1)
redis.call('DEL', KEYS[1], KEYS[2])
table.insert(items, 1, 'ok')
return items
`

// ValkeyStore shares batches between replicas. Both scripts run atomically on
// the server, so a push between a waiter's check and its drain makes the
// drain report stale.
type ValkeyStore struct {
	client *valkey.Client
}

func NewValkeyStore(client *valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

func (s *ValkeyStore) keys(key string) []string {
	return []string{s.client.Key("batch", key, "items"), s.client.Key("batch", key, "marker")}
}

func (s *ValkeyStore) Push(ctx context.Context, key, token, content string, ttl time.Duration) error {
	return s.client.Eval(ctx, pushScript, s.keys(key), content, token, strconv.FormatInt(ttl.Milliseconds(), 10)).Error()
}

func (s *ValkeyStore) Marker(ctx context.Context, key string) (Marker, bool, error) {
	reply, err := s.client.Eval(ctx, markerScript, s.keys(key)[1:]).ToArray()
	if err != nil {
		if valkey.IsNil(err) {
			return Marker{}, false, nil
		}
		return Marker{}, false, err
	}
	if len(reply) != 2 {
		return Marker{}, false, errCorruptMarker
	}
	token, err := reply[0].ToString()
	if err != nil {
		return Marker{}, false, err
	}
	quietMs, err := reply[1].AsInt64()
	if err != nil {
		return Marker{}, false, err
	}
	m, err := markerFromReply(token, quietMs)
	if err != nil {
		return Marker{}, false, err
	}
	return m, true, nil
}

func (s *ValkeyStore) Drain(ctx context.Context, key, token string) ([]string, bool, error) {
	reply, err := s.client.Eval(ctx, drainScript, s.keys(key), token).ToArray()
	if err != nil {
		return nil, false, err
	}
	if len(reply) == 0 {
		return nil, false, errCorruptMarker
	}
	status, err := reply[0].ToString()
	if err != nil {
		return nil, false, err
	}
	if status != "ok" {
		return nil, false, nil
	}
	items := make([]string, 0, len(reply)-1)
	for _, msg := range reply[1:] {
		item, err := msg.ToString()
		if err != nil {
			return nil, false, err
		}
		items = append(items, item)
	}
	return items, true, nil
}

func markerFromReply(token string, quietMs int64) (Marker, error) {
	if quietMs < 0 {
		return Marker{}, fmt.Errorf("%w: %q", errCorruptMarker, token)
	}
	return Marker{Token: token, Quiet: time.Duration(quietMs) * time.Millisecond}, nil
}
