package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"deepfake-detector-go/internal/classifier"
	"deepfake-detector-go/internal/video"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeSource отдаёт однотонные кадры; индексы из fail не декодируются
type fakeSource struct {
	total int
	w, h  int
	fail  map[int]bool

	mu        sync.Mutex
	requested []int
	closed    bool
}

func newFakeSource(total, w, h int, fail ...int) *fakeSource {
	s := &fakeSource{total: total, w: w, h: h, fail: map[int]bool{}}
	for _, idx := range fail {
		s.fail[idx] = true
	}
	return s
}

func (s *fakeSource) FrameCount() int { return s.total }

func (s *fakeSource) Size() (int, int) { return s.w, s.h }

func (s *fakeSource) Frame(ctx context.Context, index int) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requested = append(s.requested, index)
	if s.closed {
		return nil, errors.New("source closed")
	}
	if s.fail[index] {
		return nil, video.ErrNoFrame
	}

	img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	c := color.RGBA{R: uint8(index * 10), G: 100, B: 200, A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct {
	sources map[string]*fakeSource
	err     error
}

func (o *fakeOpener) Open(ctx context.Context, path string) (video.Source, error) {
	if o.err != nil {
		return nil, o.err
	}
	src, ok := o.sources[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	return src, nil
}

// stubClassifier по умолчанию возвращает score для каждого кадра
type stubClassifier struct {
	score   float64
	predict func(ctx context.Context, batch *classifier.Batch) ([]float64, error)

	mu      sync.Mutex
	calls   int
	batches []*classifier.Batch
}

func (c *stubClassifier) Predict(ctx context.Context, batch *classifier.Batch) ([]float64, error) {
	c.mu.Lock()
	c.calls++
	c.batches = append(c.batches, batch)
	c.mu.Unlock()

	if c.predict != nil {
		return c.predict(ctx, batch)
	}
	scores := make([]float64, batch.Size)
	for i := range scores {
		scores[i] = c.score
	}
	return scores, nil
}

func (c *stubClassifier) Health(ctx context.Context) error { return nil }

func (c *stubClassifier) Close() error { return nil }

func (c *stubClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// memoryCache кэш вердиктов в памяти
type memoryCache struct {
	mu    sync.Mutex
	items map[string]Verdict
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string]Verdict{}}
}

func (c *memoryCache) Enabled() bool { return true }

func (c *memoryCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return false, nil
	}
	*dst.(*Verdict) = v
	return true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = v.(Verdict)
	return nil
}

func solidFrame(index, w, h int, c color.RGBA) Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return Frame{Index: index, Image: img}
}
