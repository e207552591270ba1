package recurrence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"timeblock/src-server/model"
	"timeblock/src-server/recurrence"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory repository with hooks to inject failures and races
type fakeRepo struct {
	mu       sync.Mutex
	masters  []model.TimeBlock
	rules    map[string]model.RecurrenceRule
	blocks   map[recurrence.OccurrenceKey]model.TimeBlock
	creates  int
	onCreate func(block *model.TimeBlock) error
	onFind   func(key recurrence.OccurrenceKey) (mo.Option[model.TimeBlock], bool)
	ruleErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rules:  make(map[string]model.RecurrenceRule),
		blocks: make(map[recurrence.OccurrenceKey]model.TimeBlock),
	}
}

func (f *fakeRepo) addMaster(id, anchor string, rule model.RecurrenceRule) (*model.TimeBlock, *model.RecurrenceRule) {
	rule.ID = id + "-rule"
	f.rules[rule.ID] = rule
	master := model.TimeBlock{
		ID:               id,
		UserID:           "u1",
		Title:            id,
		CategoryID:       model.FocusCategoryID,
		Date:             anchor,
		StartTime:        "10:00",
		DurationMinutes:  30,
		IsRecurring:      true,
		RecurrenceRuleID: &rule.ID,
	}
	f.masters = append(f.masters, master)
	return &master, &rule
}

func (f *fakeRepo) GetRecurringParentBlocks(context.Context, string) ([]model.TimeBlock, error) {
	return f.masters, nil
}

func (f *fakeRepo) GetRecurringInboxItems(context.Context, string) ([]model.InboxItem, error) {
	return nil, nil
}

func (f *fakeRepo) GetBlocksInRange(context.Context, string, string, string) ([]model.TimeBlock, error) {
	return nil, nil
}

func (f *fakeRepo) GetOccurrencesByRule(context.Context, string, string) ([]model.TimeBlock, error) {
	return nil, nil
}

func (f *fakeRepo) FindOccurrence(_ context.Context, key recurrence.OccurrenceKey) (mo.Option[model.TimeBlock], error) {
	if f.onFind != nil {
		if found, handled := f.onFind(key); handled {
			return found, nil
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if block, ok := f.blocks[key]; ok {
		return mo.Some(block), nil
	}
	return mo.None[model.TimeBlock](), nil
}

func (f *fakeRepo) CreateOccurrence(_ context.Context, block *model.TimeBlock) error {
	f.mu.Lock()
	f.creates++
	f.mu.Unlock()
	if f.onCreate != nil {
		if err := f.onCreate(block); err != nil {
			return err
		}
	}
	key, _ := recurrence.KeyOf(block)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocks[key]; ok {
		return recurrence.ErrOccurrenceExists
	}
	f.blocks[key] = *block
	return nil
}

func (f *fakeRepo) DeleteOccurrences(context.Context, recurrence.OccurrenceFilter) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) GetRule(_ context.Context, ruleID string) (mo.Option[model.RecurrenceRule], error) {
	if f.ruleErr != nil {
		return mo.None[model.RecurrenceRule](), f.ruleErr
	}
	if rule, ok := f.rules[ruleID]; ok {
		return mo.Some(rule), nil
	}
	return mo.None[model.RecurrenceRule](), nil
}

type spyRecorder struct {
	mu           sync.Mutex
	materialized map[recurrence.SourceKind]int
	collided     map[recurrence.SourceKind]int
	cascaded     int64
}

func newSpyRecorder() *spyRecorder {
	return &spyRecorder{
		materialized: make(map[recurrence.SourceKind]int),
		collided:     make(map[recurrence.SourceKind]int),
	}
}

func (s *spyRecorder) Materialized(kind recurrence.SourceKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materialized[kind]++
}

func (s *spyRecorder) Collided(kind recurrence.SourceKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collided[kind]++
}

func (s *spyRecorder) CascadeDeleted(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cascaded += n
}

func TestMaterializeCollision(t *testing.T) {
	repo := newFakeRepo()
	master, rule := repo.addMaster("standup", "2026-02-16", model.RecurrenceRule{Type: model.RecurrenceDaily, Interval: 1})
	recorder := newSpyRecorder()
	engine := recurrence.NewEngine(repo, recurrence.Config{Recorder: recorder})

	// another writer inserts the same key between our lookup and our insert
	theirs := model.TimeBlock{ID: "theirs", Date: "2026-02-17", RecurrenceRuleID: &rule.ID}
	repo.onCreate = func(*model.TimeBlock) error {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		repo.blocks[recurrence.NewOccurrenceKey(rule.ID, date("2026-02-17"))] = theirs
		return nil
	}

	got, err := engine.MaterializeBlockOccurrence(context.Background(), master, rule, date("2026-02-17"))
	require.NoError(t, err)
	block, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, "theirs", block.ID)
	assert.Equal(t, 1, recorder.collided[recurrence.SourceBlock])
	assert.Equal(t, 0, recorder.materialized[recurrence.SourceBlock])
}

func TestMaterializeCollisionWithoutWinner(t *testing.T) {
	repo := newFakeRepo()
	master, rule := repo.addMaster("standup", "2026-02-16", model.RecurrenceRule{Type: model.RecurrenceDaily, Interval: 1})
	engine := recurrence.NewEngine(repo, recurrence.DefaultConfig)
	repo.onCreate = func(*model.TimeBlock) error { return recurrence.ErrOccurrenceExists }

	got, err := engine.MaterializeBlockOccurrence(context.Background(), master, rule, date("2026-02-17"))
	assert.Error(t, err)
	assert.False(t, got.IsPresent())
}

func TestMaterializeSuppressed(t *testing.T) {
	repo := newFakeRepo()
	master, rule := repo.addMaster("standup", "2026-02-16", model.RecurrenceRule{Type: model.RecurrenceDaily, Interval: 1})
	engine := recurrence.NewEngine(repo, recurrence.DefaultConfig)
	deleted := model.TimeBlock{ID: "gone", Date: "2026-02-17", RecurrenceRuleID: &rule.ID}
	deleted.DeletedAt = date("2026-02-17")
	repo.blocks[recurrence.NewOccurrenceKey(rule.ID, date("2026-02-17"))] = deleted

	got, err := engine.MaterializeBlockOccurrence(context.Background(), master, rule, date("2026-02-17"))
	require.NoError(t, err)
	assert.False(t, got.IsPresent())
	assert.Zero(t, repo.creates)
}

func TestGetByDateRangeFailsWhole(t *testing.T) {
	repo := newFakeRepo()
	repo.addMaster("standup", "2026-02-16", model.RecurrenceRule{Type: model.RecurrenceDaily, Interval: 1})
	recorder := newSpyRecorder()
	engine := recurrence.NewEngine(repo, recurrence.Config{Recorder: recorder})

	boom := errors.New("disk full")
	repo.onCreate = func(block *model.TimeBlock) error {
		if block.Date == "2026-02-19" {
			return boom
		}
		return nil
	}

	blocks, err := engine.GetByDateRange(context.Background(), "u1", date("2026-02-17"), date("2026-02-20"))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, blocks)
	// occurrences created before the failure stay
	assert.Equal(t, 2, recorder.materialized[recurrence.SourceBlock])
}

func TestGetByDateRuleLookupFails(t *testing.T) {
	repo := newFakeRepo()
	repo.addMaster("standup", "2026-02-16", model.RecurrenceRule{Type: model.RecurrenceDaily, Interval: 1})
	repo.ruleErr = errors.New("connection reset")
	engine := recurrence.NewEngine(repo, recurrence.DefaultConfig)

	blocks, err := engine.GetByDate(context.Background(), "u1", date("2026-02-17"))
	assert.ErrorIs(t, err, repo.ruleErr)
	assert.Nil(t, blocks)
}

func TestGetByDateInvalidRuleFails(t *testing.T) {
	repo := newFakeRepo()
	repo.addMaster("standup", "2026-02-16", model.RecurrenceRule{Type: model.RecurrenceWeekly, Interval: 1})
	engine := recurrence.NewEngine(repo, recurrence.DefaultConfig)

	_, err := engine.GetByDate(context.Background(), "u1", date("2026-02-17"))
	assert.ErrorIs(t, err, recurrence.ErrInvalidRule)
}

func TestGetByDateRangeCanceled(t *testing.T) {
	repo := newFakeRepo()
	repo.addMaster("standup", "2026-02-16", model.RecurrenceRule{Type: model.RecurrenceDaily, Interval: 1})
	engine := recurrence.NewEngine(repo, recurrence.DefaultConfig)

	ctx, cancel := context.WithCancel(context.Background())
	repo.onCreate = func(block *model.TimeBlock) error {
		if block.Date == "2026-02-18" {
			cancel()
		}
		return nil
	}

	blocks, err := engine.GetByDateRange(ctx, "u1", date("2026-02-17"), date("2026-02-25"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, blocks)
	assert.Equal(t, 2, repo.creates)
}

func TestCascadeRecorded(t *testing.T) {
	repo := &countingDeleteRepo{fakeRepo: newFakeRepo(), deleted: 3}
	recorder := newSpyRecorder()
	engine := recurrence.NewEngine(repo, recurrence.Config{Recorder: recorder})

	n, err := engine.OnRuleChanged(context.Background(), "r1", date("2026-02-16"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.EqualValues(t, 3, recorder.cascaded)
	assert.Equal(t, recurrence.OccurrenceFilter{RuleID: "r1", FromDate: "2026-02-16", IncompleteOnly: true}, repo.filter)
}

type countingDeleteRepo struct {
	*fakeRepo
	deleted int64
	filter  recurrence.OccurrenceFilter
}

func (c *countingDeleteRepo) DeleteOccurrences(_ context.Context, filter recurrence.OccurrenceFilter) (int64, error) {
	c.filter = filter
	return c.deleted, nil
}
