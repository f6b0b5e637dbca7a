package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"deepfake-detector-go/internal/classifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type detectorOptions struct {
	maxFrames int
	timeout   time.Duration
	policy    VerdictPolicy
	cache     VerdictCache
}

func newTestDetector(t *testing.T, opener *fakeOpener, clf classifier.Classifier, opts detectorOptions) (*DetectorService, string) {
	t.Helper()

	if opts.maxFrames == 0 {
		opts.maxFrames = 30
	}
	if opts.policy == nil {
		opts.policy = MarginPolicy{}
	}

	logger := testLogger()
	base := filepath.Join(t.TempDir(), "extracted_frames")

	svc := NewDetectorService(
		NewFrameSampler(opener, 8, 8, logger),
		NewInferenceAggregator(clf, classifier.ChannelsBGR, logger),
		opts.policy,
		NewWorkspaceManager(base, logger),
		NewWorkspaceCleaner(logger),
		opts.cache,
		DetectorConfig{MaxFrames: opts.maxFrames, Timeout: opts.timeout},
		logger,
	)
	return svc, base
}

func assertWorkspacesCleaned(t *testing.T, base string) {
	t.Helper()

	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace directories left behind")
}

func TestDetectorService_Detect(t *testing.T) {
	src := newFakeSource(10, 16, 16)
	opener := &fakeOpener{sources: map[string]*fakeSource{"clip.mp4": src}}
	clf := &stubClassifier{score: 0.9}

	svc, base := newTestDetector(t, opener, clf, detectorOptions{maxFrames: 5})

	verdict, err := svc.Detect(context.Background(), "clip.mp4")
	require.NoError(t, err)

	assert.Equal(t, LabelReal, verdict.Label)
	assert.False(t, verdict.IsFake())
	assert.InDelta(t, 0.9, verdict.AggregateScore, 1e-9)
	require.NotNil(t, verdict.Confidence)
	assert.InDelta(t, 80, *verdict.Confidence, 1e-9)
	assert.Equal(t, 5, verdict.FramesAnalyzed)
	assert.Equal(t, PolicyMargin, verdict.Policy)

	require.Len(t, clf.batches, 1)
	assert.Equal(t, []int{5, 8, 8, 3}, clf.batches[0].Shape())
	assert.Equal(t, []int{0, 2, 4, 6, 8}, src.requested)
	assert.True(t, src.isClosed())
	assertWorkspacesCleaned(t, base)
}

func TestDetectorService_FakeVerdict(t *testing.T) {
	opener := &fakeOpener{sources: map[string]*fakeSource{"clip.mp4": newFakeSource(3, 8, 8)}}
	svc, base := newTestDetector(t, opener, &stubClassifier{score: 0.2}, detectorOptions{})

	verdict, err := svc.Detect(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.True(t, verdict.IsFake())
	assert.InDelta(t, 60, *verdict.Confidence, 1e-9)
	assert.Equal(t, 3, verdict.FramesAnalyzed)
	assertWorkspacesCleaned(t, base)
}

func TestDetectorService_CleansUpOnFailure(t *testing.T) {
	boom := errors.New("backend exploded")
	opener := &fakeOpener{sources: map[string]*fakeSource{"clip.mp4": newFakeSource(4, 8, 8)}}
	clf := &stubClassifier{predict: func(ctx context.Context, batch *classifier.Batch) ([]float64, error) {
		return nil, boom
	}}

	svc, base := newTestDetector(t, opener, clf, detectorOptions{})

	_, err := svc.Detect(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, boom)
	assertWorkspacesCleaned(t, base)
}

func TestDetectorService_EmptySource(t *testing.T) {
	opener := &fakeOpener{sources: map[string]*fakeSource{"empty.mp4": newFakeSource(0, 8, 8)}}
	clf := &stubClassifier{score: 0.5}

	svc, base := newTestDetector(t, opener, clf, detectorOptions{})

	_, err := svc.Detect(context.Background(), "empty.mp4")
	assert.ErrorIs(t, err, ErrEmptySource)
	assert.Zero(t, clf.callCount())
	assertWorkspacesCleaned(t, base)
}

func TestDetectorService_AllFramesUndecodable(t *testing.T) {
	opener := &fakeOpener{sources: map[string]*fakeSource{"clip.mp4": newFakeSource(2, 8, 8, 0, 1)}}
	svc, base := newTestDetector(t, opener, &stubClassifier{score: 0.5}, detectorOptions{})

	_, err := svc.Detect(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assertWorkspacesCleaned(t, base)
}

func TestDetectorService_ClassifierUnavailable(t *testing.T) {
	src := newFakeSource(300, 8, 8)
	opener := &fakeOpener{sources: map[string]*fakeSource{"clip.mp4": src}}
	clf := classifier.Unavailable(errors.New("model not loaded"))

	svc, base := newTestDetector(t, opener, clf, detectorOptions{})

	_, err := svc.Detect(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
	assert.Contains(t, err.Error(), "model not loaded")
	assert.Empty(t, src.requested, "frames decoded without a model")
	assert.False(t, src.isClosed(), "video opened without a model")
	assertWorkspacesCleaned(t, base)
}

func TestDetectorService_ClassifierUnavailableIgnoresCache(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("video"), 0644))

	opener := &fakeOpener{sources: map[string]*fakeSource{videoPath: newFakeSource(2, 8, 8)}}
	cache := newMemoryCache()

	warm, _ := newTestDetector(t, opener, &stubClassifier{score: 0.8}, detectorOptions{cache: cache})
	_, err := warm.Detect(context.Background(), videoPath)
	require.NoError(t, err)
	require.Len(t, cache.items, 1)

	down, _ := newTestDetector(t, opener, classifier.Unavailable(errors.New("model not loaded")), detectorOptions{cache: cache})
	_, err = down.Detect(context.Background(), videoPath)
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}

func TestDetectorService_Timeout(t *testing.T) {
	opener := &fakeOpener{sources: map[string]*fakeSource{"clip.mp4": newFakeSource(3, 8, 8)}}
	clf := &stubClassifier{predict: func(ctx context.Context, batch *classifier.Batch) ([]float64, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	svc, base := newTestDetector(t, opener, clf, detectorOptions{timeout: 50 * time.Millisecond})

	_, err := svc.Detect(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "detection timed out", err.Error())
	assertWorkspacesCleaned(t, base)
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func TestDetectorService_ConcurrentRunsAreIsolated(t *testing.T) {
	opener := &fakeOpener{sources: map[string]*fakeSource{
		"a.mp4": newFakeSource(5, 8, 8),
		"b.mp4": newFakeSource(3, 8, 8),
	}}

	var base string
	var arrived, inspected sync.WaitGroup
	arrived.Add(2)
	inspected.Add(2)

	var mu sync.Mutex
	framesPerDir := map[int]int{}

	clf := &stubClassifier{predict: func(ctx context.Context, batch *classifier.Batch) ([]float64, error) {
		arrived.Done()
		if !waitTimeout(&arrived, 5*time.Second) {
			return nil, errors.New("second run never reached the classifier")
		}

		dirs, err := os.ReadDir(base)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		for _, d := range dirs {
			jpgs, _ := filepath.Glob(filepath.Join(base, d.Name(), "*.jpg"))
			framesPerDir[len(jpgs)]++
		}
		mu.Unlock()

		inspected.Done()
		if !waitTimeout(&inspected, 5*time.Second) {
			return nil, errors.New("second run never inspected workspaces")
		}

		score := 0.9
		if batch.Size == 3 {
			score = 0.1
		}
		scores := make([]float64, batch.Size)
		for i := range scores {
			scores[i] = score
		}
		return scores, nil
	}}

	svc, dir := newTestDetector(t, opener, clf, detectorOptions{})
	base = dir

	var wg sync.WaitGroup
	results := make(map[string]Verdict)
	errs := make(map[string]error)
	for _, name := range []string{"a.mp4", "b.mp4"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			v, err := svc.Detect(context.Background(), name)
			mu.Lock()
			results[name] = v
			errs[name] = err
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	require.NoError(t, errs["a.mp4"])
	require.NoError(t, errs["b.mp4"])

	assert.Equal(t, LabelReal, results["a.mp4"].Label)
	assert.Equal(t, 5, results["a.mp4"].FramesAnalyzed)
	assert.Equal(t, LabelFake, results["b.mp4"].Label)
	assert.Equal(t, 3, results["b.mp4"].FramesAnalyzed)

	// Каждый из двух запусков видел обе папки: одну с 5 кадрами, другую с 3
	assert.Equal(t, map[int]int{5: 2, 3: 2}, framesPerDir)
	assertWorkspacesCleaned(t, base)
}

func TestDetectorService_UsesVerdictCache(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte(strings.Repeat("frame", 64)), 0644))

	opener := &fakeOpener{sources: map[string]*fakeSource{videoPath: newFakeSource(4, 8, 8)}}
	clf := &stubClassifier{score: 0.8}
	cache := newMemoryCache()

	svc, _ := newTestDetector(t, opener, clf, detectorOptions{cache: cache})

	first, err := svc.Detect(context.Background(), videoPath)
	require.NoError(t, err)
	second, err := svc.Detect(context.Background(), videoPath)
	require.NoError(t, err)

	assert.Equal(t, 1, clf.callCount())
	assert.Equal(t, first, second)
	assert.Len(t, cache.items, 1)
	for key := range cache.items {
		assert.True(t, strings.HasSuffix(key, ":margin:30:8x8"), key)
	}
}

func TestDetectorService_CacheKeyDependsOnPolicy(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("video"), 0644))

	opener := &fakeOpener{sources: map[string]*fakeSource{videoPath: newFakeSource(2, 8, 8)}}
	clf := &stubClassifier{score: 0.8}
	cache := newMemoryCache()

	margin, _ := newTestDetector(t, opener, clf, detectorOptions{cache: cache})
	rounding, _ := newTestDetector(t, opener, clf, detectorOptions{cache: cache, policy: RoundingPolicy{}})

	a, err := margin.Detect(context.Background(), videoPath)
	require.NoError(t, err)
	b, err := rounding.Detect(context.Background(), videoPath)
	require.NoError(t, err)

	assert.Equal(t, 2, clf.callCount())
	assert.NotEqual(t, a.Label, b.Label)
	assert.Len(t, cache.items, 2)
}
