//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
	"editorial-pipeline/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// ---- Job repository ----

type MockJobRepo struct {
	mu     sync.Mutex
	jobs   map[string]*model.GenerationJob
	cancel map[string]bool

	SaveErr error
}

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{jobs: map[string]*model.GenerationJob{}, cancel: map[string]bool{}}
}

var _ repository.GenerationJobRepository = (*MockJobRepo)(nil)

func copyJob(j *model.GenerationJob) *model.GenerationJob {
	cp := *j
	cp.Stages = append([]model.GenerationStage(nil), j.Stages...)
	cp.ConversionOfferIDs = append([]string(nil), j.ConversionOfferIDs...)
	return &cp
}

func (m *MockJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.jobs[job.ID] = copyJob(job)
	return nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := copyJob(j)
	cp.CancelRequested = m.cancel[id]
	return cp, nil
}

func (m *MockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := copyJob(job)
	cp.Stages = cur.Stages
	m.jobs[job.ID] = cp
	return nil
}

func (m *MockJobRepo) SaveStage(ctx context.Context, tx repository.Tx, st *model.GenerationStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[st.JobID]
	if !ok || st.Ordinal >= len(j.Stages) {
		return domain.ErrNotFound
	}
	j.Stages[st.Ordinal] = *st
	return nil
}

func (m *MockJobRepo) RequestCancel(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if j.Status.Terminal() {
		return false, nil
	}
	m.cancel[id] = true
	return true, nil
}

func (m *MockJobRepo) CancelRequested(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel[id], nil
}

func (m *MockJobRepo) ClearCancel(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancel, id)
	return nil
}

func (m *MockJobRepo) LastCompletedStyle(ctx context.Context, tx repository.Tx) (model.ImageStyle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *model.GenerationJob
	for _, j := range m.jobs {
		if j.Status != model.JobStatusCompleted || j.CompletedAt == nil {
			continue
		}
		if last == nil || j.CompletedAt.After(*last.CompletedAt) {
			last = j
		}
	}
	if last == nil {
		return "", domain.ErrNotFound
	}
	return last.ImageStyle, nil
}

func (m *MockJobRepo) List(ctx context.Context, tx repository.Tx, f repository.JobFilter) ([]*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GenerationJob
	for _, j := range m.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.SubmittedBy != "" && j.SubmittedBy != f.SubmittedBy {
			continue
		}
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// put stores a job directly, bypassing Create.
func (m *MockJobRepo) put(j *model.GenerationJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = copyJob(j)
}

// ---- Article repository ----

type MockArticleRepo struct {
	mu       sync.Mutex
	articles map[string]*model.Article
	writes   int
}

func NewMockArticleRepo() *MockArticleRepo {
	return &MockArticleRepo{articles: map[string]*model.Article{}}
}

var _ repository.ArticleRepository = (*MockArticleRepo)(nil)

func (m *MockArticleRepo) Create(ctx context.Context, tx repository.Tx, a *model.Article) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[a.ID]; ok {
		return false, nil
	}
	m.articles[a.ID] = a.Clone()
	m.writes++
	return true, nil
}

func (m *MockArticleRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *MockArticleRepo) CompareAndSwap(ctx context.Context, tx repository.Tx, a *model.Article, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.articles[a.ID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if cur.Version != expected {
		return 0, domain.ErrVersionConflict
	}
	next := a.Clone()
	next.Version = expected + 1
	m.articles[a.ID] = next
	m.writes++
	return next.Version, nil
}

// bump simulates a concurrent writer.
func (m *MockArticleRepo) bump(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles[id].Version++
}

// ---- Schedule repository ----

type MockScheduleRepo struct {
	mu      sync.Mutex
	intents map[string]*model.ScheduledPublishIntent
}

func NewMockScheduleRepo() *MockScheduleRepo {
	return &MockScheduleRepo{intents: map[string]*model.ScheduledPublishIntent{}}
}

var _ repository.ScheduleRepository = (*MockScheduleRepo)(nil)

func (m *MockScheduleRepo) Upsert(ctx context.Context, tx repository.Tx, in *model.ScheduledPublishIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *in
	m.intents[in.ArticleID] = &cp
	return nil
}

func (m *MockScheduleRepo) Delete(ctx context.Context, tx repository.Tx, articleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.intents, articleID)
	return nil
}

func (m *MockScheduleRepo) Lock(ctx context.Context, tx repository.Tx, articleID string) (*model.ScheduledPublishIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[articleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *MockScheduleRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.ScheduledPublishIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ScheduledPublishIntent
	for _, in := range m.intents {
		if !in.FireAt.After(now) {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].FireAt.Before(out[b].FireAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockScheduleRepo) NextFireAt(ctx context.Context, tx repository.Tx) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next time.Time
	for _, in := range m.intents {
		if next.IsZero() || in.FireAt.Before(next) {
			next = in.FireAt
		}
	}
	if next.IsZero() {
		return time.Time{}, domain.ErrNotFound
	}
	return next, nil
}

func (m *MockScheduleRepo) get(articleID string) (*model.ScheduledPublishIntent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[articleID]
	return in, ok
}

// ---- Reference repository ----

type MockRefRepo struct {
	categories map[string]*model.Category
	authors    map[string]*model.Author
	brands     map[string]*model.Brand
	sources    map[string]*model.KnowledgeSource
	offers     map[string]model.ConversionOffer
}

var _ repository.ReferenceRepository = (*MockRefRepo)(nil)

// NewMockRefRepo is seeded with cat-1, author-1, brand-1, ks-1..ks-3 and offer-1.
func NewMockRefRepo() *MockRefRepo {
	r := &MockRefRepo{
		categories: map[string]*model.Category{"cat-1": {ID: "cat-1", Name: "Gardening", Slug: "gardening"}},
		authors:    map[string]*model.Author{"author-1": {ID: "author-1", Name: "Ada", Persona: "seasoned grower", Tone: "warm"}},
		brands:     map[string]*model.Brand{"brand-1": {ID: "brand-1", Name: "Leafy", Voice: "friendly", Site: "https://leafy.example"}},
		sources:    map[string]*model.KnowledgeSource{},
		offers:     map[string]model.ConversionOffer{"offer-1": {ID: "offer-1", Title: "Seed kit", URL: "https://leafy.example/kit", CTA: "Get the kit"}},
	}
	for _, id := range []string{"ks-1", "ks-2", "ks-3"} {
		r.sources[id] = &model.KnowledgeSource{ID: id, Title: "Growing tomatoes " + id, Body: "Tomatoes need sun.\n\nWater deeply."}
	}
	return r
}

func (r *MockRefRepo) Category(ctx context.Context, tx repository.Tx, id string) (*model.Category, error) {
	if v, ok := r.categories[id]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockRefRepo) Author(ctx context.Context, tx repository.Tx, id string) (*model.Author, error) {
	if v, ok := r.authors[id]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockRefRepo) Brand(ctx context.Context, tx repository.Tx, id string) (*model.Brand, error) {
	if v, ok := r.brands[id]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockRefRepo) KnowledgeSource(ctx context.Context, tx repository.Tx, id string) (*model.KnowledgeSource, error) {
	if v, ok := r.sources[id]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockRefRepo) ConversionOffers(ctx context.Context, tx repository.Tx, ids []string) ([]model.ConversionOffer, error) {
	var out []model.ConversionOffer
	for _, id := range ids {
		if o, ok := r.offers[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// ---- Rate limit store ----

type MockRateStore struct {
	mu   sync.Mutex
	recs map[string]*model.RateLimitRecord
	Now  func() time.Time
}

func NewMockRateStore() *MockRateStore {
	return &MockRateStore{recs: map[string]*model.RateLimitRecord{}, Now: time.Now}
}

var _ repository.RateLimitStore = (*MockRateStore)(nil)

func (m *MockRateStore) Hit(ctx context.Context, key string, ceiling int, window time.Duration) (model.RateLimitRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	rec, ok := m.recs[key]
	if !ok || !now.Before(rec.ResetAt) {
		rec = &model.RateLimitRecord{Key: key, ResetAt: now.Add(window)}
		m.recs[key] = rec
	}
	if rec.Count >= ceiling {
		return *rec, false, nil
	}
	rec.Count++
	return *rec, true, nil
}

func (m *MockRateStore) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.recs[key]; ok {
		return rec.Count
	}
	return 0
}

// ---- Signal queue ----

type MockQueue struct {
	mu         sync.Mutex
	signals    []model.StageSignal
	published  []model.StageSignal
	PublishErr error
}

var _ adapter.SignalQueue = (*MockQueue)(nil)

func (q *MockQueue) Publish(ctx context.Context, sig model.StageSignal) error {
	if q.PublishErr != nil {
		return q.PublishErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.signals = append(q.signals, sig)
	q.published = append(q.published, sig)
	return nil
}

func (q *MockQueue) Receive(ctx context.Context, wait time.Duration) (*adapter.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.signals) == 0 {
		return nil, nil
	}
	sig := q.signals[0]
	q.signals = q.signals[1:]
	return &adapter.Delivery{Signal: sig, Raw: sig.DeliveryID}, nil
}

func (q *MockQueue) Ack(ctx context.Context, d *adapter.Delivery) error { return nil }

func (q *MockQueue) Nack(ctx context.Context, d *adapter.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.signals = append(q.signals, d.Signal)
	return nil
}

func (q *MockQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.signals)
}

// ---- Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

var _ adapter.Locker = (*MockLocker)(nil)

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrJobBusy
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// ---- Notifier ----

type MockNotifier struct {
	mu   sync.Mutex
	jobs []*model.GenerationJob
}

func (n *MockNotifier) JobFinished(ctx context.Context, job *model.GenerationJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, copyJob(job))
	return nil
}

func (n *MockNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.jobs)
}

// ---- Tx manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
