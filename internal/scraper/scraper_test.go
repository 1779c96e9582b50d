package scraper

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"beer-scanner-backend/config"
	"beer-scanner-backend/internal/archive"
	"beer-scanner-backend/internal/catalog"
	"beer-scanner-backend/internal/events"
	"beer-scanner-backend/internal/fingerprint"
	"beer-scanner-backend/internal/menu"
	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/notification"
	"beer-scanner-backend/internal/reconcile"
	"beer-scanner-backend/internal/stats"
	"beer-scanner-backend/internal/store"
	"beer-scanner-backend/internal/store/storetest"
)

// fakeFetcher serves a fixed menu per bar, or an error.
type fakeFetcher struct {
	mu    sync.Mutex
	menus map[int64]string
	errs  map[int64]error
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, bar *model.Bar) (*menu.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := f.errs[bar.ID]; err != nil {
		return nil, err
	}
	return &menu.Content{Data: []byte(f.menus[bar.ID]), ContentType: "text/plain"}, nil
}

// fakeParser returns the candidates listed for a menu in byContent, or the
// configured candidates for any other menu.
type fakeParser struct {
	mu         sync.Mutex
	candidates []catalog.Candidate
	byContent  map[string][]catalog.Candidate
	err        error
	calls      int
	contents   []string
}

func (p *fakeParser) Extract(_ context.Context, content []byte, _, _ string) ([]catalog.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.contents = append(p.contents, string(content))
	if p.err != nil {
		return nil, p.err
	}
	if c, ok := p.byContent[string(content)]; ok {
		return c, nil
	}
	return p.candidates, nil
}

type recordingTransport struct {
	mu        sync.Mutex
	delivered []model.NotificationType
}

func (r *recordingTransport) Deliver(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, n.Type)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.CheckEvent
}

func (r *recordingPublisher) PublishCheck(_ context.Context, ev events.CheckEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() {}

// objectClient is an in-memory archive.Client.
type objectClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func (o *objectClient) BucketExists(context.Context, string) (bool, error) { return true, nil }

func (o *objectClient) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	return nil
}

func (o *objectClient) PutObject(_ context.Context, _, name string, r io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if o.putErr != nil {
		return minio.UploadInfo{}, o.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[name] = data
	return minio.UploadInfo{Key: name, Size: int64(len(data))}, nil
}

func (o *objectClient) GetObject(_ context.Context, _, name string, _ minio.GetObjectOptions) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[name]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type harness struct {
	svc       *Service
	store     store.Store
	db        *gorm.DB
	fetcher   *fakeFetcher
	parser    *fakeParser
	transport *recordingTransport
	publisher *recordingPublisher
}

func newHarness(t *testing.T, arch *archive.Archive) *harness {
	t.Helper()
	st, gdb := storetest.Open(t)
	logger := zap.NewNop()

	h := &harness{
		store:     st,
		db:        gdb,
		fetcher:   &fakeFetcher{menus: map[int64]string{}, errs: map[int64]error{}},
		parser:    &fakeParser{},
		transport: &recordingTransport{},
		publisher: &recordingPublisher{},
	}
	cat := catalog.New(st, nil, logger)
	proc := NewProcessor(ProcessorDeps{
		Store:      st,
		Parser:     h.parser,
		Archive:    arch,
		Engine:     reconcile.NewEngine(cat, logger),
		Dispatcher: notification.NewDispatcher(nil, logger),
		Stats:      stats.NewAggregator(nil),
		Publisher:  h.publisher,
		Logger:     logger,
	})
	pool := notification.NewWorkerPool(1, 100, st, h.transport, nil, logger)
	cfg := config.ScraperConfig{Enabled: true, Concurrency: 2, Interval: time.Hour}
	h.svc = NewService(cfg, st, h.fetcher, proc, arch, pool, logger)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})
	return h
}

func (h *harness) seedBar(t *testing.T, name, menuText string) *model.Bar {
	t.Helper()
	bar := &model.Bar{Name: name, MenuURL: "https://example.test/" + name, IsApproved: true}
	require.NoError(t, h.db.Create(bar).Error)
	h.fetcher.menus[bar.ID] = menuText
	return bar
}

func TestService_CheckOnce_NewMenu(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bar := h.seedBar(t, "taproom", "IPA One - Acme")
	h.parser.candidates = []catalog.Candidate{{Name: "IPA One", Brewery: "Acme"}}

	beerFan := model.User{Email: "fan@example.test", NotificationEnabled: true}
	barFan := model.User{Email: "regular@example.test", NotificationEnabled: true}
	require.NoError(t, h.db.Create(&beerFan).Error)
	require.NoError(t, h.db.Create(&barFan).Error)
	require.NoError(t, h.db.Model(&barFan).Association("TrackedBars").Append(bar))
	// The tracked beer exists before the check so the tracking can refer to it.
	beer := model.Beer{Name: "IPA One", Brewery: "Acme"}
	require.NoError(t, h.db.Create(&beer).Error)
	require.NoError(t, h.db.Create(&model.BeerTracking{UserID: beerFan.ID, BeerID: beer.ID}).Error)

	sum := h.svc.CheckOnce(ctx)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 1, sum.Bars)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 2, sum.Dispatched)

	checks, err := h.store.ListChecksForBar(ctx, bar.ID, 10)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	check, err := h.store.GetCheck(ctx, checks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckCompleted, check.ProcessingStatus)
	assert.True(t, check.HasChanges)
	require.Len(t, check.BeersAdded, 1)
	assert.Equal(t, beer.ID, check.BeersAdded[0].ID)
	assert.Empty(t, check.BeersRemoved)

	current, err := h.store.ListCurrent(ctx, bar.ID)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, beer.ID, current[0].BeerID)

	reloaded, err := h.store.GetBar(ctx, bar.ID)
	require.NoError(t, err)
	assert.Equal(t, fingerprint.Of([]byte("IPA One - Acme")), reloaded.LastMenuHash)
	assert.NotNil(t, reloaded.LastCheckedAt)

	s, err := h.store.GetStats(ctx, bar.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.TotalChecks)
	assert.EqualValues(t, 1, s.SuccessfulChecks)
	assert.EqualValues(t, 1, s.TotalChangesDetected)

	assert.ElementsMatch(t,
		[]model.NotificationType{model.NotificationBeerAvailable, model.NotificationMenuChanged},
		h.transport.delivered)
	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, "COMPLETED", h.publisher.events[0].Status)
	assert.Equal(t, []string{"IPA One"}, h.publisher.events[0].Added)
}

func TestService_UnchangedMenuSkipsParser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bar := h.seedBar(t, "taproom", "same menu")
	require.NoError(t, h.db.Model(bar).Update("last_menu_hash", fingerprint.Of([]byte("same menu"))).Error)

	sum := h.svc.CheckOnce(ctx)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 0, h.parser.calls)

	checks, err := h.store.ListChecksForBar(ctx, bar.ID, 10)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.False(t, checks[0].HasChanges)
	assert.Equal(t, model.CheckCompleted, checks[0].ProcessingStatus)
	assert.Empty(t, checks[0].MenuContent)

	var notifications int64
	require.NoError(t, h.db.Model(&model.Notification{}).Count(&notifications).Error)
	assert.Zero(t, notifications)
}

func TestService_ForceReparsesUnchangedMenu(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bar := h.seedBar(t, "taproom", "same menu")
	require.NoError(t, h.db.Model(bar).Update("last_menu_hash", fingerprint.Of([]byte("same menu"))).Error)
	h.parser.candidates = []catalog.Candidate{{Name: "Pils", Brewery: "Acme"}}

	check, err := h.svc.CheckBar(ctx, bar.ID, true)
	require.NoError(t, err)
	assert.True(t, check.HasChanges)
	assert.True(t, check.Forced)
	assert.Equal(t, model.CheckCompleted, check.ProcessingStatus)
	assert.Equal(t, 1, h.parser.calls)
}

func TestService_FetchFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bar := h.seedBar(t, "taproom", "")
	h.fetcher.err = &menu.FetchError{Reason: menu.ReasonHTTP, URL: bar.MenuURL, Err: errors.New("503")}

	sum := h.svc.CheckOnce(ctx)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 0, h.parser.calls)

	checks, err := h.store.ListChecksForBar(ctx, bar.ID, 10)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, model.CheckFailed, checks[0].ProcessingStatus)
	assert.Contains(t, checks[0].ErrorMessage, "503")

	reloaded, err := h.store.GetBar(ctx, bar.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.LastMenuHash)

	s, err := h.store.GetStats(ctx, bar.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.FailedChecks)
	assert.EqualValues(t, 0, s.SuccessfulChecks)
}

func TestService_ParseFailureLeavesAvailabilityUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bar := h.seedBar(t, "taproom", "v1")
	h.parser.candidates = []catalog.Candidate{{Name: "Stout", Brewery: "Acme"}}
	require.Equal(t, 1, h.svc.CheckOnce(ctx).Completed)

	h.fetcher.menus[bar.ID] = "v2"
	h.parser.err = &menu.ParseError{Err: errors.New("model timed out")}
	sum := h.svc.CheckOnce(ctx)
	assert.Equal(t, 1, sum.Failed)

	checks, err := h.store.ListChecksForBar(ctx, bar.ID, 10)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	var failed *model.Check
	for i := range checks {
		if checks[i].ProcessingStatus == model.CheckFailed {
			failed = &checks[i]
		}
	}
	require.NotNil(t, failed)
	assert.Contains(t, failed.ErrorMessage, "model timed out")

	current, err := h.store.ListCurrent(ctx, bar.ID)
	require.NoError(t, err)
	assert.Len(t, current, 1)

	s, err := h.store.GetStats(ctx, bar.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.TotalChecks)
	assert.EqualValues(t, 1, s.FailedChecks)
}

func TestService_OneFailingBarDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	good := h.seedBar(t, "good", "Lager - Acme")
	broken := h.seedBar(t, "broken", "")
	h.fetcher.errs[broken.ID] = &menu.FetchError{Reason: menu.ReasonNoMenuURL}
	h.parser.candidates = []catalog.Candidate{{Name: "Lager", Brewery: "Acme"}}

	sum := h.svc.CheckOnce(ctx)
	assert.Equal(t, 2, sum.Bars)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 1, sum.Failed)

	current, err := h.store.ListCurrent(ctx, good.ID)
	require.NoError(t, err)
	assert.Len(t, current, 1)
}

func TestService_ResumesPendingChecks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bar := &model.Bar{Name: "hidden", MenuURL: "https://example.test/hidden"}
	require.NoError(t, h.db.Create(bar).Error)
	h.parser.candidates = []catalog.Candidate{{Name: "Porter", Brewery: "Acme"}}

	pending := &model.Check{
		BarID:            bar.ID,
		MenuHash:         "h1",
		ContentType:      "text/plain",
		MenuContent:      []byte("Porter"),
		HasChanges:       true,
		ProcessingStatus: model.CheckPending,
		ProcessDuration:  40,
	}
	require.NoError(t, h.store.CreateCheck(ctx, pending))

	sum := h.svc.CheckOnce(ctx)
	assert.Equal(t, 0, sum.Bars)
	assert.Equal(t, 1, sum.Resumed)

	check, err := h.store.GetCheck(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckCompleted, check.ProcessingStatus)
	assert.GreaterOrEqual(t, check.ProcessDuration, int64(40))
	assert.Equal(t, []string{"Porter"}, h.parser.contents)
}

func TestService_StaleCheckDoesNotOverrideNewerMenu(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bar := h.seedBar(t, "taproom", "Stout")
	h.parser.byContent = map[string][]catalog.Candidate{
		"Porter": {{Name: "Porter", Brewery: "Acme"}},
		"Stout":  {{Name: "Stout", Brewery: "Acme"}},
	}

	// Left behind by an interrupted run, before the menu changed again.
	old := &model.Check{
		BarID:            bar.ID,
		MenuHash:         fingerprint.Of([]byte("Porter")),
		ContentType:      "text/plain",
		MenuContent:      []byte("Porter"),
		HasChanges:       true,
		ProcessingStatus: model.CheckPending,
	}
	require.NoError(t, h.store.CreateCheck(ctx, old))

	h.svc.CheckOnce(ctx)
	h.svc.CheckOnce(ctx)

	current, err := h.store.ListCurrent(ctx, bar.ID)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "Stout", current[0].Beer.Name)

	history, err := h.store.ListHistory(ctx, bar.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.NotContains(t, h.parser.contents, "Porter")

	stale, err := h.store.GetCheck(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckCompleted, stale.ProcessingStatus)
	assert.Empty(t, stale.BeersAdded)
	assert.Empty(t, stale.BeersRemoved)
}

func TestProcessor_TerminalCheckIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bar := h.seedBar(t, "taproom", "menu")
	done := &model.Check{BarID: bar.ID, HasChanges: true, ProcessingStatus: model.CheckCompleted}
	require.NoError(t, h.store.CreateCheck(ctx, done))

	check, err := h.svc.processor.Process(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckCompleted, check.ProcessingStatus)
	assert.Equal(t, 0, h.parser.calls)

	_, err = h.store.GetStats(ctx, bar.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_CheckBarBusy(t *testing.T) {
	h := newHarness(t, nil)
	bar := h.seedBar(t, "taproom", "menu")
	h.svc.busy.Store(bar.Key(), struct{}{})

	_, err := h.svc.CheckBar(context.Background(), bar.ID, false)
	assert.ErrorIs(t, err, ErrBarBusy)
	assert.Equal(t, 0, h.fetcher.calls)
}

func TestService_CheckBarUnknown(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.CheckBar(context.Background(), 404, false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_ArchivesMenuSnapshot(t *testing.T) {
	ctx := context.Background()
	client := &objectClient{objects: map[string][]byte{}}
	h := newHarness(t, archive.New(client, "menus"))
	bar := h.seedBar(t, "taproom", "Dubbel - Abbey")
	h.parser.candidates = []catalog.Candidate{{Name: "Dubbel", Brewery: "Abbey"}}

	check, err := h.svc.CheckBar(ctx, bar.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.CheckCompleted, check.ProcessingStatus)

	stored, err := h.store.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.Equal(t, archive.Key(bar.ID, stored.MenuHash), stored.MenuObjectKey)
	assert.Empty(t, stored.MenuContent)
	assert.Equal(t, []string{"Dubbel - Abbey"}, h.parser.contents)
}

func TestService_ArchiveFailureFallsBackToInline(t *testing.T) {
	ctx := context.Background()
	client := &objectClient{objects: map[string][]byte{}, putErr: errors.New("bucket unavailable")}
	h := newHarness(t, archive.New(client, "menus"))
	bar := h.seedBar(t, "taproom", "Dubbel - Abbey")

	check, err := h.svc.CheckBar(ctx, bar.ID, false)
	require.NoError(t, err)

	stored, err := h.store.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.MenuObjectKey)
	assert.Equal(t, []byte("Dubbel - Abbey"), stored.MenuContent)
}
