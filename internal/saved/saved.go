package saved

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"evboard/internal/config"
	appLog "evboard/internal/log"
)

// Set is a set of saved event ids.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Toggle flips membership of id and reports whether it is now saved.
func (s Set) Toggle(id string) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// IDs returns the members sorted.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Prune drops ids not in live and reports whether anything was removed.
func (s Set) Prune(live map[string]bool) bool {
	changed := false
	for id := range s {
		if !live[id] {
			delete(s, id)
			changed = true
		}
	}
	return changed
}

// Store persists the saved set outside the remote store.
type Store interface {
	Load(ctx context.Context) (Set, error)
	Save(ctx context.Context, s Set) error
}

// FileStore keeps the set as a JSON array in one file.
type FileStore struct {
	Path string
}

func (f *FileStore) Load(_ context.Context) (Set, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewSet(), nil
		}
		return nil, fmt.Errorf("saved: read %s: %w", f.Path, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("saved: decode %s: %w", f.Path, err)
	}
	return NewSet(ids...), nil
}

func (f *FileStore) Save(_ context.Context, s Set) error {
	data, err := json.Marshal(s.IDs())
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(f.Path, data, ".evboard-saved-*.tmp"); err != nil {
		return fmt.Errorf("saved: write %s: %w", f.Path, err)
	}
	return nil
}

// RedisStore keeps the set as a Redis set under Key.
type RedisStore struct {
	Client *redis.Client
	Key    string
}

func (r *RedisStore) Load(ctx context.Context) (Set, error) {
	ids, err := r.Client.SMembers(ctx, r.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("saved: smembers %s: %w", r.Key, err)
	}
	return NewSet(ids...), nil
}

// Save replaces the whole set in one transaction.
func (r *RedisStore) Save(ctx context.Context, s Set) error {
	ids := s.IDs()
	_, err := r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.Key)
		if len(ids) > 0 {
			members := make([]any, len(ids))
			for i, id := range ids {
				members[i] = id
			}
			p.SAdd(ctx, r.Key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saved: replace %s: %w", r.Key, err)
	}
	return nil
}

// Open picks the Redis store when an address is configured and reachable,
// else the file store.
func Open(ctx context.Context, cfg config.SavedConfig) (Store, func() error) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := client.Ping(pingCtx).Err()
		if err == nil {
			return &RedisStore{Client: client, Key: cfg.Key}, client.Close
		}
		appLog.Warn("redis unreachable, using file store", "addr", cfg.RedisAddr, "err", err, "path", cfg.Path)
		_ = client.Close()
	}
	return &FileStore{Path: cfg.Path}, func() error { return nil }
}
