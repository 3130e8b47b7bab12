package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	service "github.com/okian/moderator/internal/app"
	"github.com/okian/moderator/internal/adapters/repository"
	"github.com/okian/moderator/internal/adapters/scorer"
	"github.com/okian/moderator/internal/domain/model"
)

var errBoom = errors.New("boom")

// fakeShim records dispatches and optionally answers synchronously.
type fakeShim struct {
	mu          sync.Mutex
	correlators []string
	inputs      []scorer.Input
	err         error
	respond     func(ctx context.Context, in scorer.Input, correlator string) error
}

func (f *fakeShim) SendToScorer(ctx context.Context, in scorer.Input, correlator string) error {
	f.mu.Lock()
	f.correlators = append(f.correlators, correlator)
	f.inputs = append(f.inputs, in)
	err, respond := f.err, f.respond
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if respond != nil {
		return respond(ctx, in, correlator)
	}
	return nil
}

func (f *fakeShim) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.correlators...)
}

// fixture is a service on a memory store with fake shims per scorer id.
type fixture struct {
	ctx   context.Context
	store *repository.MemoryStore
	svc   *service.Service

	mu        sync.Mutex
	now       time.Time
	shims     map[string]*fakeShim
	configErr map[string]bool
	hookCalls []model.Decision
}

func newFixture(opts ...service.Option) *fixture {
	f := &fixture{
		ctx:       context.Background(),
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		shims:     make(map[string]*fakeShim),
		configErr: make(map[string]bool),
	}
	f.store = repository.NewMemoryStore(repository.WithClock(f.clock))

	factory := func(sc model.Scorer) (scorer.Shim, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.configErr[sc.ID] {
			return nil, scorer.ErrConfiguration
		}
		shim, ok := f.shims[sc.ID]
		if !ok {
			shim = &fakeShim{}
			f.shims[sc.ID] = shim
		}
		return shim, nil
	}

	base := []service.Option{
		service.WithClock(f.clock),
		service.WithScorerOptions(scorer.WithFactory(factory)),
		service.WithRetryDelay(time.Millisecond),
		service.WithModeratedHook(service.ModeratedHookFunc(func(_ context.Context, _ model.Comment, d model.Decision) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.hookCalls = append(f.hookCalls, d)
			return nil
		})),
	}
	svc, err := service.New(f.store, append(base, opts...)...)
	if err != nil {
		panic(err)
	}
	f.svc = svc
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) shim(scorerID string) *fakeShim {
	f.mu.Lock()
	defer f.mu.Unlock()
	shim, ok := f.shims[scorerID]
	if !ok {
		shim = &fakeShim{}
		f.shims[scorerID] = shim
	}
	return shim
}

func (f *fixture) hooks() []model.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Decision(nil), f.hookCalls...)
}

func (f *fixture) scorer(id string, active bool) model.Scorer {
	sc, err := f.store.CreateScorer(f.ctx, model.Scorer{
		ID:           id,
		Name:         id,
		IsActive:     active,
		EndpointType: model.EndpointProxy,
		Endpoint:     "https://scorer.example.com/" + id,
	})
	if err != nil {
		panic(err)
	}
	return sc
}

// article stores an article and, when named, its category.
func (f *fixture) article(id, categoryID string, auto bool) model.Article {
	if categoryID != "" {
		if _, err := f.store.GetCategory(f.ctx, categoryID); errors.Is(err, repository.ErrNotFound) {
			if _, err := f.store.CreateCategory(f.ctx, model.Category{ID: categoryID, Label: categoryID}); err != nil {
				panic(err)
			}
		}
	}
	a, err := f.store.CreateArticle(f.ctx, model.Article{
		ID:              id,
		CategoryID:      categoryID,
		Title:           id,
		IsAutoModerated: auto,
	})
	if err != nil {
		panic(err)
	}
	return a
}

func (f *fixture) comment(id, articleID string) model.Comment {
	c, err := f.store.CreateComment(f.ctx, model.Comment{
		ID:        id,
		ArticleID: articleID,
		Text:      "<p>comment " + id + "</p>",
	})
	if err != nil {
		panic(err)
	}
	return c
}

func (f *fixture) rule(tagKey, categoryID string, lower, upper float64, action model.Action) model.ModerationRule {
	f.advance(time.Second)
	r, err := f.svc.AddRule(f.ctx, service.RuleSpec{
		TagKey:         tagKey,
		CategoryID:     categoryID,
		LowerThreshold: lower,
		UpperThreshold: upper,
		Action:         action,
	})
	if err != nil {
		panic(err)
	}
	return r
}

func (f *fixture) reload(id string) model.Comment {
	c, err := f.store.GetComment(f.ctx, id)
	if err != nil {
		panic(err)
	}
	return c
}

func summary(scores map[string]float64) model.ScoreData {
	return model.ScoreData{SummaryScores: scores}
}

func intPtr(v int) *int { return &v }

// answerWith makes a shim ingest data synchronously through svc.
func answerWith(svc *service.Service, scorerID string, data model.ScoreData) func(context.Context, scorer.Input, string) error {
	return func(ctx context.Context, in scorer.Input, _ string) error {
		return svc.IngestScore(ctx, in.Comment.ID, scorerID, data)
	}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// failingDenormalizer fails every recount.
type failingDenormalizer struct{}

func (failingDenormalizer) DenormalizeCountsForComment(context.Context, model.Comment) error {
	return errBoom
}

func (failingDenormalizer) DenormalizeCommentCountsForArticle(context.Context, string) error {
	return errBoom
}

// failingStore fails every comment read of one id.
type failingStore struct {
	*repository.MemoryStore
	failID string
}

func (s *failingStore) GetComment(ctx context.Context, id string) (model.Comment, error) {
	if id == s.failID {
		return model.Comment{}, errBoom
	}
	return s.MemoryStore.GetComment(ctx, id)
}
