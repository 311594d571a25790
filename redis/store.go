package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/entitypipe/condition"
	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/pipeline"
	"github.com/kbukum/entitypipe/source"
)

// Store keeps entities as JSON strings under "<prefix>:<key>". It is a
// source.KeyedSource for producers and a source.DataSink for consumers.
type Store[E any] struct {
	client *Client
	key    func(E) string
	gates  *condition.Registry
}

var (
	_ source.KeyedSource[string, any]          = (*Store[any])(nil)
	_ source.DataSink[any, source.Operation] = (*Store[any])(nil)
)

// NewStore returns a store over client. key extracts the entity key; gates
// evaluates Fetch queries and may be nil when every query is empty.
func NewStore[E any](client *Client, key func(E) string, gates *condition.Registry) *Store[E] {
	return &Store[E]{client: client, key: key, gates: gates}
}

func (s *Store[E]) fullKey(key string) string {
	return s.client.cfg.KeyPrefix + ":" + key
}

// Fetch scans every key under the prefix, in key order, and filters the
// decoded entities with query.
func (s *Store[E]) Fetch(ctx context.Context, query string, _ *pipeline.Context) ([]E, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	items := make([]E, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		item, err := decode[E](keys[i], raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return source.Filter(s.gates, items, query)
}

func (s *Store[E]) scan(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.rdb.Scan(ctx, 0, s.fullKey("*"), s.client.cfg.ScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// Find loads one entity. A missing key reports found=false.
func (s *Store[E]) Find(ctx context.Context, key string, _ *pipeline.Context) (E, bool, error) {
	var zero E
	raw, err := s.client.rdb.Get(ctx, s.fullKey(key)).Result()
	if stderrors.Is(err, goredis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	item, err := decode[E](key, raw)
	if err != nil {
		return zero, false, err
	}
	return item, true, nil
}

// Process applies op to the batch inside a WATCH transaction. Existence is
// checked for every key before anything is written, so a Create conflict or
// an Update of a missing key leaves the store unchanged. Delete returns the
// entities as they were stored.
func (s *Store[E]) Process(ctx context.Context, items []E, op source.Operation, _ *pipeline.Context) ([]E, error) {
	switch op {
	case source.Create, source.Update, source.Upsert, source.Delete:
	default:
		return nil, errors.UnsupportedOperation(op.String())
	}
	if len(items) == 0 {
		return nil, nil
	}

	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = s.fullKey(s.key(item))
	}

	var out []E
	txf := func(tx *goredis.Tx) error {
		stored, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range stored {
			exists := v != nil
			switch {
			case op == source.Create && exists:
				return errors.InvalidInput("key", fmt.Sprintf("entity %s already exists", s.key(items[i])))
			case (op == source.Update || op == source.Delete) && !exists:
				return errors.NotFound("entity", s.key(items[i]))
			}
		}

		if op == source.Delete {
			out = make([]E, 0, len(items))
			for i, v := range stored {
				item, err := decode[E](keys[i], v.(string))
				if err != nil {
					return err
				}
				out = append(out, item)
			}
			_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
				p.Del(ctx, keys...)
				return nil
			})
			return err
		}

		payloads := make([]string, len(items))
		for i, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("redis encode %s: %w", keys[i], err)
			}
			payloads[i] = string(data)
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			for i, k := range keys {
				p.Set(ctx, k, payloads[i], s.client.cfg.TTL)
			}
			return nil
		})
		out = items
		return err
	}

	if err := s.client.rdb.Watch(ctx, txf, keys...); err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("redis %s: %w", strings.ToLower(op.String()), err)
	}
	return out, nil
}

func decode[E any](key, raw string) (E, error) {
	var item E
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return item, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return item, nil
}
