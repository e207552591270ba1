package recurrence_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/recurrence"
	"timeblock/src-server/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	bundb := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })
	require.NoError(t, model.CreateSchema(context.Background(), bundb))
	return store.New(bundb)
}

// A database file shared by several connections, so concurrent writers race on
// the occurrence key for real
func newPooledTestStore(t *testing.T, conns int) *store.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "timeblock.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(conns)
	bundb := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })
	require.NoError(t, model.CreateSchema(context.Background(), bundb))
	return store.New(bundb)
}

func createMaster(t *testing.T, s *store.Store, anchor string, rule *model.RecurrenceRule) *model.TimeBlock {
	t.Helper()
	master := &model.TimeBlock{
		UserID:          "u1",
		Title:           "Deep work",
		CategoryID:      model.FocusCategoryID,
		Date:            anchor,
		StartTime:       "10:00",
		DurationMinutes: 90,
	}
	require.NoError(t, s.CreateRecurringBlock(context.Background(), master, rule))
	return master
}

func daily() *model.RecurrenceRule {
	return &model.RecurrenceRule{Type: model.RecurrenceDaily, Interval: 1}
}

func ids(blocks []model.TimeBlock) []string {
	out := make([]string, len(blocks))
	for i, block := range blocks {
		out[i] = block.ID
	}
	return out
}

func TestGetByDateMaterializesMasterOccurrence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	master := createMaster(t, s, "2026-02-16", daily())

	// case: the anchor date shows only the master
	func() {
		blocks, err := engine.GetByDate(ctx, "u1", date("2026-02-16"))
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, master.ID, blocks[0].ID)
		assert.True(t, blocks[0].IsMaster())
	}()

	// case: the next day gets a copy of the master
	var first model.TimeBlock
	func() {
		blocks, err := engine.GetByDate(ctx, "u1", date("2026-02-17"))
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		first = blocks[0]
		assert.NotEqual(t, master.ID, first.ID)
		assert.Equal(t, "2026-02-17", first.Date)
		assert.Equal(t, master.Title, first.Title)
		assert.Equal(t, master.StartTime, first.StartTime)
		assert.Equal(t, master.DurationMinutes, first.DurationMinutes)
		assert.False(t, first.IsRecurring)
		require.NotNil(t, first.RecurrenceParentID)
		assert.Equal(t, master.ID, *first.RecurrenceParentID)
		assert.Equal(t, *master.RecurrenceRuleID, *first.RecurrenceRuleID)
	}()

	// case: asking again returns the same row
	func() {
		blocks, err := engine.GetByDate(ctx, "u1", date("2026-02-17"))
		require.NoError(t, err)
		assert.Equal(t, []string{first.ID}, ids(blocks))

		stored, err := s.GetOccurrencesByRule(ctx, *master.RecurrenceRuleID, "u1")
		require.NoError(t, err)
		assert.Len(t, stored, 1)
	}()

	// case: other users see nothing
	func() {
		blocks, err := engine.GetByDate(ctx, "u2", date("2026-02-17"))
		require.NoError(t, err)
		assert.Empty(t, blocks)
	}()
}

func TestMaterializeBlockOccurrence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	rule := &model.RecurrenceRule{Type: model.RecurrenceWeekly, Interval: 1, DaysOfWeek: "1"}
	master := createMaster(t, s, "2026-02-16", rule)

	got, err := engine.MaterializeBlockOccurrence(ctx, master, rule, date("2026-02-17"))
	require.NoError(t, err)
	assert.False(t, got.IsPresent())

	got, err = engine.MaterializeBlockOccurrence(ctx, master, rule, date("2026-02-16"))
	require.NoError(t, err)
	assert.False(t, got.IsPresent())

	got, err = engine.MaterializeBlockOccurrence(ctx, master, rule, date("2026-02-23"))
	require.NoError(t, err)
	block, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, "2026-02-23", block.Date)

	oneOff := &model.TimeBlock{ID: "b", Date: "2026-02-16"}
	_, err = engine.MaterializeBlockOccurrence(ctx, oneOff, rule, date("2026-02-23"))
	assert.ErrorIs(t, err, recurrence.ErrNotRecurring)

	otherRule := &model.RecurrenceRule{ID: "other", Type: model.RecurrenceDaily, Interval: 1}
	_, err = engine.MaterializeBlockOccurrence(ctx, master, otherRule, date("2026-02-23"))
	assert.Error(t, err)
}

func TestGetByDateRangeMatchesSingleDates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	createMaster(t, s, "2026-02-16", daily())
	createMaster(t, s, "2026-02-16", &model.RecurrenceRule{Type: model.RecurrenceWeekly, Interval: 1, DaysOfWeek: "2,4"})
	require.NoError(t, s.CreateBlock(ctx, &model.TimeBlock{
		UserID:          "u1",
		Title:           "Dentist",
		CategoryID:      model.FocusCategoryID,
		Date:            "2026-02-18",
		StartTime:       "08:00",
		DurationMinutes: 60,
	}))

	ranged, err := engine.GetByDateRange(ctx, "u1", date("2026-02-16"), date("2026-02-22"))
	require.NoError(t, err)

	var singles []model.TimeBlock
	for day := date("2026-02-16"); !day.After(date("2026-02-22")); day = day.AddDate(0, 0, 1) {
		blocks, err := engine.GetByDate(ctx, "u1", day)
		require.NoError(t, err)
		singles = append(singles, blocks...)
	}
	assert.Equal(t, ids(singles), ids(ranged))

	// 7 daily blocks, the weekly master plus Tuesday and Thursday, 1 one-off
	assert.Len(t, ranged, 11)
	for i := 1; i < len(ranged); i++ {
		prev, cur := ranged[i-1], ranged[i]
		assert.True(t, prev.Date < cur.Date || (prev.Date == cur.Date && prev.StartTime <= cur.StartTime),
			"%s %s before %s %s", prev.Date, prev.StartTime, cur.Date, cur.StartTime)
	}
	assert.Equal(t, "Dentist", ranged[4].Title)
}

func TestGetByDateRangeSevenDays(t *testing.T) {
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	master := createMaster(t, s, "2026-02-16", daily())

	blocks, err := engine.GetByDateRange(context.Background(), "u1", date("2026-02-16"), date("2026-02-22"))
	require.NoError(t, err)
	require.Len(t, blocks, 7)
	for i, block := range blocks {
		assert.Equal(t, master.Title, block.Title)
		assert.Equal(t, model.FormatDate(date("2026-02-16").AddDate(0, 0, i)), block.Date)
	}
}

func TestGetByDateRangeBounds(t *testing.T) {
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.Config{MaxRangeDays: 31})

	_, err := engine.GetByDateRange(context.Background(), "u1", date("2026-02-16"), date("2026-02-15"))
	assert.ErrorIs(t, err, recurrence.ErrInvalidRange)

	_, err = engine.GetByDateRange(context.Background(), "u1", date("2026-02-01"), date("2026-03-04"))
	assert.ErrorIs(t, err, recurrence.ErrRangeTooLarge)

	blocks, err := engine.GetByDateRange(context.Background(), "u1", date("2026-02-01"), date("2026-03-03"))
	assert.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestInboxOccurrence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	item := &model.InboxItem{
		UserID:      "u1",
		Title:       "Review inbox",
		Description: ptr("zero it"),
		Priority:    model.PriorityHigh,
		IsRecurring: true,
		AnchorDate:  "2026-02-16",
	}
	require.NoError(t, s.CreateInboxItem(ctx, item, daily()))

	// case: occurrences use the inbox defaults
	func() {
		blocks, err := engine.GetByDate(ctx, "u1", date("2026-02-16"))
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		block := blocks[0]
		assert.Equal(t, "Review inbox", block.Title)
		assert.Equal(t, "zero it", *block.Subtitle)
		assert.Equal(t, "09:00", block.StartTime)
		assert.Equal(t, 30, block.DurationMinutes)
		assert.Equal(t, model.FocusCategoryID, block.CategoryID)
		assert.True(t, block.IsUrgent)
		assert.Nil(t, block.RecurrenceParentID)
		assert.Equal(t, *item.RecurrenceRuleID, *block.RecurrenceRuleID)
	}()

	// case: dismissed items stop producing, existing occurrences stay
	func() {
		_, err := s.DismissInboxItem(ctx, item.ID, time.Now())
		require.NoError(t, err)

		blocks, err := engine.GetByDate(ctx, "u1", date("2026-02-16"))
		require.NoError(t, err)
		assert.Len(t, blocks, 1)

		blocks, err = engine.GetByDate(ctx, "u1", date("2026-02-17"))
		require.NoError(t, err)
		assert.Empty(t, blocks)

		dismissed, err := s.GetInboxItem(ctx, item.ID)
		require.NoError(t, err)
		got, err := engine.MaterializeInboxOccurrence(ctx, dismissed, daily(), date("2026-02-18"))
		require.NoError(t, err)
		assert.False(t, got.IsPresent())
	}()
}

func TestInboxOccurrenceCustomDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.Config{
		InboxDefaults: recurrence.InboxDefaults{StartTime: "07:30", DurationMinutes: 15, CategoryID: model.FocusCategoryID},
	})
	item := &model.InboxItem{
		UserID:      "u1",
		Title:       "Stretch",
		Priority:    model.PriorityLow,
		IsRecurring: true,
		AnchorDate:  "2026-02-16",
	}
	require.NoError(t, s.CreateInboxItem(ctx, item, daily()))

	blocks, err := engine.GetByDate(ctx, "u1", date("2026-02-20"))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "07:30", blocks[0].StartTime)
	assert.Equal(t, 15, blocks[0].DurationMinutes)
	assert.False(t, blocks[0].IsUrgent)
}

func TestDeletedOccurrenceStaysDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	createMaster(t, s, "2026-02-16", daily())

	blocks, err := engine.GetByDate(ctx, "u1", date("2026-02-17"))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.NoError(t, s.DeleteBlock(ctx, engine, blocks[0].ID, date("2026-02-16")))

	blocks, err = engine.GetByDate(ctx, "u1", date("2026-02-17"))
	require.NoError(t, err)
	assert.Empty(t, blocks)

	blocks, err = engine.GetByDate(ctx, "u1", date("2026-02-18"))
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestDeleteMasterCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	master := createMaster(t, s, "2026-02-14", daily())
	ruleID := *master.RecurrenceRuleID

	blocks, err := engine.GetByDateRange(ctx, "u1", date("2026-02-14"), date("2026-02-18"))
	require.NoError(t, err)
	require.Len(t, blocks, 5)
	byDate := make(map[string]model.TimeBlock)
	for _, block := range blocks {
		byDate[block.Date] = block
	}
	_, err = s.SetBlockCompleted(ctx, byDate["2026-02-16"].ID, true, time.Now())
	require.NoError(t, err)

	// today is 2026-02-16
	require.NoError(t, s.DeleteBlock(ctx, engine, master.ID, date("2026-02-16")))

	remaining, err := s.GetOccurrencesByRule(ctx, ruleID, "u1")
	require.NoError(t, err)
	var dates []string
	for _, block := range remaining {
		dates = append(dates, block.Date)
	}
	// past history and today's completed block stay, the future is gone
	assert.Equal(t, []string{"2026-02-15", "2026-02-16"}, dates)

	found, err := s.GetRule(ctx, ruleID)
	require.NoError(t, err)
	assert.False(t, found.IsPresent())

	blocks, err = engine.GetByDate(ctx, "u1", date("2026-02-17"))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestOnSourceDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	master := createMaster(t, s, "2026-02-16", daily())

	_, err := engine.GetByDateRange(ctx, "u1", date("2026-02-16"), date("2026-02-20"))
	require.NoError(t, err)

	n, err := engine.OnSourceDeleted(ctx, *master.RecurrenceRuleID, date("2026-02-19"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// the master itself is never cascaded
	_, err = s.GetBlock(ctx, master.ID)
	assert.NoError(t, err)

	_, err = engine.OnSourceDeleted(ctx, "", date("2026-02-19"))
	assert.ErrorIs(t, err, recurrence.ErrSourceMissing)
}

func TestUpdateRecurrenceRegenerates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	master := createMaster(t, s, "2026-02-16", daily())
	ruleID := *master.RecurrenceRuleID

	_, err := engine.GetByDateRange(ctx, "u1", date("2026-02-16"), date("2026-02-22"))
	require.NoError(t, err)

	_, err = s.UpdateRecurrence(ctx, engine, ruleID,
		&model.RecurrenceRule{Type: model.RecurrenceWeekly, Interval: 1, DaysOfWeek: "1,3"},
		date("2026-02-18"))
	require.NoError(t, err)

	blocks, err := engine.GetByDateRange(ctx, "u1", date("2026-02-16"), date("2026-02-22"))
	require.NoError(t, err)
	var dates []string
	for _, block := range blocks {
		dates = append(dates, block.Date)
	}
	// before today the old daily occurrences stay, from today on the weekly cadence
	assert.Equal(t, []string{"2026-02-16", "2026-02-17", "2026-02-18"}, dates)

	_, err = s.UpdateRecurrence(ctx, engine, ruleID, &model.RecurrenceRule{Type: model.RecurrenceWeekly, Interval: 1}, date("2026-02-18"))
	assert.ErrorIs(t, err, recurrence.ErrInvalidRule)
}

func TestMissingRuleSkipped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)

	orphan := &model.TimeBlock{
		ID:               uuid.NewString(),
		UserID:           "u1",
		Title:            "Orphan",
		CategoryID:       model.FocusCategoryID,
		Date:             "2026-02-16",
		StartTime:        "10:00",
		DurationMinutes:  30,
		IsRecurring:      true,
		RecurrenceRuleID: ptr(uuid.NewString()),
	}
	_, err := s.DB().NewInsert().Model(orphan).Exec(ctx)
	require.NoError(t, err)
	healthy := createMaster(t, s, "2026-02-16", daily())

	blocks, err := engine.GetByDate(ctx, "u1", date("2026-02-17"))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, healthy.ID, *blocks[0].RecurrenceParentID)
}

func TestConcurrentGetByDate(t *testing.T) {
	ctx := context.Background()
	const workers = 8
	s := newPooledTestStore(t, workers)
	recorder := newSpyRecorder()
	engine := recurrence.NewEngine(s, recurrence.Config{Recorder: recorder})
	master := createMaster(t, s, "2026-02-16", daily())

	start := make(chan struct{})
	results := make([][]model.TimeBlock, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = engine.GetByDate(ctx, "u1", date("2026-02-17"))
		}()
	}
	close(start)
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
		assert.Equal(t, results[0][0].ID, results[i][0].ID)
	}
	stored, err := s.GetOccurrencesByRule(ctx, *master.RecurrenceRuleID, "u1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	// losers of the insert race report a collision, never a second row
	assert.Equal(t, 1, recorder.materialized[recurrence.SourceBlock])
}

func TestOffDayAnchorCountsTowardsMaxOccurrences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	// Sunday anchor, Mondays only, two blocks in the whole series
	rule := &model.RecurrenceRule{Type: model.RecurrenceWeekly, Interval: 1, DaysOfWeek: "1", MaxOccurrences: ptr(2)}
	master := createMaster(t, s, "2026-02-15", rule)

	blocks, err := engine.GetByDateRange(ctx, "u1", date("2026-02-15"), date("2026-03-09"))
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, master.ID, blocks[0].ID)
	assert.Equal(t, "2026-02-16", blocks[1].Date)

	stored, err := s.GetOccurrencesByRule(ctx, *master.RecurrenceRuleID, "u1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestGetOccurrencesByRule(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	engine := recurrence.NewEngine(s, recurrence.DefaultConfig)
	master := createMaster(t, s, "2026-02-16", daily())

	_, err := engine.GetByDateRange(ctx, "u1", date("2026-02-16"), date("2026-02-18"))
	require.NoError(t, err)
	blocks, err := engine.GetOccurrencesByRule(ctx, *master.RecurrenceRuleID)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, []string{"2026-02-17", "2026-02-18"}, []string{blocks[0].Date, blocks[1].Date})

	_, err = engine.GetOccurrencesByRule(ctx, "missing")
	assert.ErrorIs(t, err, recurrence.ErrSourceMissing)
}
