package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyConfig locates the valkey/redis server backing a shared fake API.
type ValkeyConfig struct {
	Address   string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

type valkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore connects to a valkey or redis server and returns a Store
// that several fake API processes can share.
func NewValkeyStore(cfg ValkeyConfig) (Store, error) {
	if cfg.Address == "" {
		return nil, errors.New("fakeapi: valkey address required")
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("fakeapi: valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("fakeapi: valkey ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "objectprobe:objects:"
	}
	return &valkeyStore{client: client, prefix: prefix}, nil
}

func (s *valkeyStore) objectKey(id string) string {
	return s.prefix + "object:" + id
}

func (s *valkeyStore) indexKey() string {
	return s.prefix + "index"
}

func (s *valkeyStore) Create(ctx context.Context, obj Object) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("fakeapi: valkey marshal: %w", err)
	}
	cmd := s.client.B().Set().Key(s.objectKey(obj.ID)).Value(string(payload)).Nx().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return errors.New("fakeapi: duplicate object id")
		}
		return fmt.Errorf("fakeapi: valkey set: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Sadd().Key(s.indexKey()).Member(obj.ID).Build()).Error(); err != nil {
		return fmt.Errorf("fakeapi: valkey index add: %w", err)
	}
	return nil
}

func (s *valkeyStore) Get(ctx context.Context, id string) (Object, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(s.objectKey(id)).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("fakeapi: valkey get: %w", err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return Object{}, fmt.Errorf("fakeapi: valkey get bytes: %w", err)
	}
	var obj Object
	if err := json.Unmarshal(payload, &obj); err != nil {
		return Object{}, fmt.Errorf("fakeapi: valkey unmarshal: %w", err)
	}
	return obj, nil
}

func (s *valkeyStore) List(ctx context.Context) ([]Object, error) {
	ids, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.indexKey()).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("fakeapi: valkey index members: %w", err)
	}
	out := make([]Object, 0, len(ids))
	for _, id := range ids {
		obj, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	sortObjects(out)
	return out, nil
}

func (s *valkeyStore) Replace(ctx context.Context, obj Object) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("fakeapi: valkey marshal: %w", err)
	}
	cmd := s.client.B().Set().Key(s.objectKey(obj.ID)).Value(string(payload)).Xx().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("fakeapi: valkey replace: %w", err)
	}
	return nil
}

func (s *valkeyStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Do(ctx, s.client.B().Del().Key(s.objectKey(id)).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("fakeapi: valkey del: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Srem().Key(s.indexKey()).Member(id).Build()).Error(); err != nil {
		return fmt.Errorf("fakeapi: valkey index remove: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *valkeyStore) Close(context.Context) error {
	s.client.Close()
	return nil
}
