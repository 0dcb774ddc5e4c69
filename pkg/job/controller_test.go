package job

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"assetmigration/pkg/checkpoint"
	"assetmigration/pkg/models"
	"assetmigration/pkg/provider"
)

type fakeProvider struct {
	mu          sync.Mutex
	validateErr error
	existence   map[string]provider.Existence
	downloadErr map[string]error

	downloads    int
	uploadsByID  map[string]int
	uploadsTotal int

	gateOn  atomic.Bool
	gate    chan struct{}
	entered chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		existence:   map[string]provider.Existence{},
		downloadErr: map[string]error{},
		uploadsByID: map[string]int{},
		gate:        make(chan struct{}),
		entered:     make(chan struct{}, 64),
	}
}

func (f *fakeProvider) Validate(ctx context.Context, creds models.DestinationCredentials) error {
	return f.validateErr
}

func (f *fakeProvider) Download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	if f.gateOn.Load() {
		f.entered <- struct{}{}
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	if err := f.downloadErr[sourceURL]; err != nil {
		return nil, "", err
	}
	return []byte("asset-bytes"), "image/jpeg", nil
}

func (f *fakeProvider) Upload(ctx context.Context, ref models.AssetRef, body []byte, contentType string, creds models.DestinationCredentials) (provider.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadsByID[ref.PublicID]++
	f.uploadsTotal++
	return provider.UploadOK, nil
}

func (f *fakeProvider) Exists(ctx context.Context, publicID string, resourceType models.ResourceType, creds models.DestinationCredentials) (provider.Existence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.existence[publicID]; ok {
		return e, nil
	}
	return provider.NotFound, nil
}

func (f *fakeProvider) stats() (downloads, uploadsTotal int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads, f.uploadsTotal
}

var testCreds = models.DestinationCredentials{
	AccountName: "new-account",
	APIKey:      "key",
	APISecret:   "secret",
}

func makeRefs(n int) []models.AssetRef {
	refs := make([]models.AssetRef, 0, n)
	for i := 1; i <= n; i++ {
		refs = append(refs, models.AssetRef{
			SourceURL:    fmt.Sprintf("https://cdn.example/image/upload/v1/products/asset-%02d.jpg", i),
			PublicID:     fmt.Sprintf("products/asset-%02d", i),
			Folder:       "products",
			ResourceType: models.ResourceImage,
			Format:       "jpg",
			Filename:     fmt.Sprintf("asset-%02d.jpg", i),
		})
	}
	return refs
}

func newTestController(t *testing.T, p provider.Client) (*Controller, checkpoint.Store) {
	t.Helper()
	store := checkpoint.NewFileStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	return New(p, store, nil, nil, zap.NewNop(), Options{}), store
}

func TestStartToCompletionCountsOutcomes(t *testing.T) {
	refs := makeRefs(10)
	fake := newFakeProvider()
	// Item 3's download fails; item 7 already exists at the destination.
	fake.downloadErr[refs[2].SourceURL] = errors.New("status 404")
	fake.existence[refs[6].PublicID] = provider.Found

	ctrl, _ := newTestController(t, fake)

	_, err := ctrl.Start(context.Background(), testCreds, refs)
	require.NoError(t, err)
	ctrl.Wait()

	status := ctrl.Status()
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 8, status.Copied)
	assert.Equal(t, 1, status.Failed)
	assert.Equal(t, 1, status.Skipped)
	assert.Equal(t, status.Total, status.Copied+status.Failed+status.Skipped,
		"counter conservation")
	assert.Len(t, status.RecentErrors, 1)
	assert.NotNil(t, status.CompletedAt)
}

func TestSecondRunIsFullSkip(t *testing.T) {
	refs := makeRefs(10)
	fake := newFakeProvider()
	ctrl, _ := newTestController(t, fake)

	_, err := ctrl.Start(context.Background(), testCreds, refs)
	require.NoError(t, err)
	ctrl.Wait()
	require.Equal(t, models.StatusCompleted, ctrl.Status().Status)

	// Same inputs, same destination: the retained checkpoint makes the
	// second run a 100% skip with no network transfers.
	_, err = ctrl.Start(context.Background(), testCreds, refs)
	require.NoError(t, err)
	ctrl.Wait()

	status := ctrl.Status()
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 10, status.Skipped)
	assert.Equal(t, 0, status.Copied)

	_, uploads := fake.stats()
	assert.Equal(t, 10, uploads, "never more than one upload per public id")
	for id, count := range fake.uploadsByID {
		assert.Equal(t, 1, count, "public id %s uploaded more than once", id)
	}
}

func TestStartRejectsWhileInProgress(t *testing.T) {
	refs := makeRefs(3)
	fake := newFakeProvider()
	fake.gateOn.Store(true)

	ctrl, _ := newTestController(t, fake)
	_, err := ctrl.Start(context.Background(), testCreds, refs)
	require.NoError(t, err)

	_, err = ctrl.Start(context.Background(), testCreds, refs)
	assert.ErrorIs(t, err, ErrJobInProgress)

	fake.gateOn.Store(false)
	close(fake.gate)
	ctrl.Wait()
}

func TestValidateRejectionBlocksStart(t *testing.T) {
	fake := newFakeProvider()
	fake.validateErr = provider.ErrInvalidCredentials

	ctrl, _ := newTestController(t, fake)

	valid, err := ctrl.Validate(context.Background(), testCreds)
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = ctrl.Start(context.Background(), testCreds, makeRefs(2))
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Equal(t, models.StatusIdle, ctrl.Status().Status)
}

func TestCancelFinishesInFlightItemOnly(t *testing.T) {
	refs := makeRefs(10)
	fake := newFakeProvider()
	fake.gateOn.Store(true)

	ctrl, _ := newTestController(t, fake)
	_, err := ctrl.Start(context.Background(), testCreds, refs)
	require.NoError(t, err)

	// Let four items through and hold item five inside its download.
	for i := 0; i < 5; i++ {
		<-fake.entered
		if i < 4 {
			fake.gate <- struct{}{}
		}
	}
	require.NoError(t, ctrl.Cancel())

	// Item five is already in flight: it must finish and be counted.
	fake.gate <- struct{}{}
	ctrl.Wait()

	status := ctrl.Status()
	assert.Equal(t, models.StatusCancelled, status.Status)
	assert.Equal(t, 5, status.Copied)

	downloads, _ := fake.stats()
	assert.Equal(t, 5, downloads, "no further items started after cancel")
}

func TestContinueResubmitsOnlyRemaining(t *testing.T) {
	refs := makeRefs(10)
	fake := newFakeProvider()
	fake.gateOn.Store(true)

	ctrl, _ := newTestController(t, fake)
	_, err := ctrl.Start(context.Background(), testCreds, refs)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		<-fake.entered
		if i < 4 {
			fake.gate <- struct{}{}
		}
	}
	require.NoError(t, ctrl.Cancel())
	fake.gate <- struct{}{}
	ctrl.Wait()
	require.Equal(t, models.StatusCancelled, ctrl.Status().Status)
	require.Equal(t, 5, ctrl.Status().Copied)

	fake.gateOn.Store(false)

	_, err = ctrl.Continue(context.Background())
	require.NoError(t, err)
	ctrl.Wait()

	status := ctrl.Status()
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 5, status.Total, "only not-yet-migrated assets are re-submitted")
	assert.Equal(t, 5, status.Copied)

	_, uploads := fake.stats()
	assert.Equal(t, 10, uploads)
	for id, count := range fake.uploadsByID {
		assert.Equal(t, 1, count, "public id %s uploaded more than once", id)
	}
}

func TestContinueRequiresResumableState(t *testing.T) {
	fake := newFakeProvider()
	ctrl, _ := newTestController(t, fake)

	_, err := ctrl.Continue(context.Background())
	assert.ErrorIs(t, err, ErrNotResumable)

	_, err = ctrl.Start(context.Background(), testCreds, makeRefs(2))
	require.NoError(t, err)
	ctrl.Wait()
	require.Equal(t, models.StatusCompleted, ctrl.Status().Status)

	_, err = ctrl.Continue(context.Background())
	assert.ErrorIs(t, err, ErrNotResumable)
}

func TestCancelWithoutActiveJob(t *testing.T) {
	fake := newFakeProvider()
	ctrl, _ := newTestController(t, fake)

	assert.ErrorIs(t, ctrl.Cancel(), ErrNoActiveJob)
}

func TestStaleCheckpointIsDiscarded(t *testing.T) {
	refs := makeRefs(4)
	fake := newFakeProvider()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := checkpoint.NewFileStore(path)

	// A checkpoint written for another account claims every id is done.
	stale := checkpoint.NewRecord("old-account")
	for _, ref := range refs {
		stale.MarkCompleted(ref.PublicID)
	}
	require.NoError(t, store.Save(stale))

	ctrl := New(fake, store, nil, nil, zap.NewNop(), Options{})
	_, err := ctrl.Start(context.Background(), testCreds, refs)
	require.NoError(t, err)
	ctrl.Wait()

	status := ctrl.Status()
	assert.Equal(t, 4, status.Copied, "stale checkpoint must not suppress transfers")
	assert.Equal(t, 0, status.Skipped)

	// The new run's checkpoint replaces the stale one.
	loaded, err := store.Load("new-account")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 4, loaded.Len())
}

func TestUndecomposableRefIsPermanentFailure(t *testing.T) {
	fake := newFakeProvider()
	ctrl, _ := newTestController(t, fake)

	refs := makeRefs(2)
	refs = append(refs, models.AssetRef{SourceURL: "https://cdn.example/broken"})

	_, err := ctrl.Start(context.Background(), testCreds, refs)
	require.NoError(t, err)
	ctrl.Wait()

	status := ctrl.Status()
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 2, status.Copied)
	assert.Equal(t, 1, status.Failed)
	require.Len(t, status.RecentErrors, 1)
	assert.Contains(t, status.RecentErrors[0].Message, "decomposed")
}

func TestRunOutlivesCallerContext(t *testing.T) {
	refs := makeRefs(3)
	fake := newFakeProvider()
	ctrl, _ := newTestController(t, fake)

	// An HTTP handler's request context dies as soon as the 202 goes out;
	// the loop must keep going regardless.
	ctx, cancel := context.WithCancel(context.Background())
	_, err := ctrl.Start(ctx, testCreds, refs)
	require.NoError(t, err)
	cancel()

	ctrl.Wait()
	status := ctrl.Status()
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 3, status.Copied)
	assert.Equal(t, 0, status.Failed)

	_, uploads := fake.stats()
	assert.Equal(t, 3, uploads)
}

func TestInterruptMidItemCountsInFlightAsCopied(t *testing.T) {
	refs := makeRefs(3)
	fake := newFakeProvider()
	fake.gateOn.Store(true)

	ctrl, _ := newTestController(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := ctrl.Start(ctx, testCreds, refs)
	require.NoError(t, err)

	// Item one is inside its download when the signal arrives: the caller's
	// context is torn down and Cancel is requested, the way the CLI
	// translates SIGINT.
	<-fake.entered
	cancel()
	require.NoError(t, ctrl.Cancel())
	fake.gate <- struct{}{}
	ctrl.Wait()

	status := ctrl.Status()
	assert.Equal(t, models.StatusCancelled, status.Status)
	assert.Equal(t, 1, status.Copied)
	assert.Equal(t, 0, status.Failed, "the in-flight item must not be failed by the interrupt")
}

func TestStatusSnapshotWhileRunning(t *testing.T) {
	refs := makeRefs(2)
	fake := newFakeProvider()
	fake.gateOn.Store(true)

	ctrl, _ := newTestController(t, fake)
	_, err := ctrl.Start(context.Background(), testCreds, refs)
	require.NoError(t, err)

	// Status must answer without blocking while an item is in flight.
	deadline := time.After(2 * time.Second)
	for ctrl.Status().Status != models.StatusInProgress {
		select {
		case <-deadline:
			t.Fatal("job never reported in_progress")
		default:
		}
	}

	fake.gateOn.Store(false)
	close(fake.gate)
	ctrl.Wait()
	assert.Equal(t, models.StatusCompleted, ctrl.Status().Status)
}
