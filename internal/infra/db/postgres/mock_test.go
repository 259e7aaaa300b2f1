//go:build !integration

package postgres

import (
	"context"
	"time"

	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
	red "editorial-pipeline/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

type mockInnerRefRepo struct {
	calls map[string]int
	brand *model.Brand
	err   error
}

func (m *mockInnerRefRepo) hit(name string) {
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

func (m *mockInnerRefRepo) Category(ctx context.Context, tx repository.Tx, id string) (*model.Category, error) {
	m.hit("category")
	return &model.Category{ID: id, Name: "Guides"}, m.err
}
func (m *mockInnerRefRepo) Author(ctx context.Context, tx repository.Tx, id string) (*model.Author, error) {
	m.hit("author")
	return &model.Author{ID: id, Name: "Ada"}, m.err
}
func (m *mockInnerRefRepo) Brand(ctx context.Context, tx repository.Tx, id string) (*model.Brand, error) {
	m.hit("brand")
	if m.err != nil {
		return nil, m.err
	}
	return m.brand, nil
}
func (m *mockInnerRefRepo) KnowledgeSource(ctx context.Context, tx repository.Tx, id string) (*model.KnowledgeSource, error) {
	m.hit("knowledge_source")
	return &model.KnowledgeSource{ID: id}, m.err
}
func (m *mockInnerRefRepo) ConversionOffers(ctx context.Context, tx repository.Tx, ids []string) ([]model.ConversionOffer, error) {
	m.hit("offers")
	return nil, m.err
}

// mockRedisClient is an in-memory stand-in for red.RedisClient.
type mockRedisClient struct {
	data    map[string]string
	GetErr  error
	setKeys []string
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", red.ErrCacheMiss
	}
	return v, nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.data == nil {
		m.data = map[string]string{}
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.setKeys = append(m.setKeys, key)
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Close() error                   { return nil }
