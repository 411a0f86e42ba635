package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bibwatch/internal/tags"
	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

// photo is a decoded image that remembers which file it came from.
type photo struct {
	image.Image
	name string
}

// crop is a rectified region of a photo.
type crop struct {
	image.Image
	name   string
	region int
}

// scene describes what the fakes return for one file name.
type scene struct {
	texts   []string // one per region
	loadErr error
	readErr error
}

type fakes struct {
	scenes map[string]scene
}

func (f *fakes) load(path string) (image.Image, error) {
	name := filepath.Base(path)
	s, ok := f.scenes[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return photo{Image: image.NewGray(image.Rect(0, 0, 4, 4)), name: name}, nil
}

func (f *fakes) DetectRegions(_ context.Context, img image.Image) ([]utils.Quad, error) {
	p := img.(photo)
	quads := make([]utils.Quad, len(f.scenes[p.name].texts))
	for i := range quads {
		quads[i] = utils.Quad{{X: float64(i)}, {X: float64(i) + 1}, {X: float64(i) + 1, Y: 1}, {X: float64(i), Y: 1}}
	}
	return quads, nil
}

func (f *fakes) Rectify(img image.Image, q utils.Quad) (image.Image, error) {
	p := img.(photo)
	if f.scenes[p.name].texts[int(q[0].X)] == "<degenerate>" {
		return nil, errors.New("degenerate quad")
	}
	return crop{Image: p.Image, name: p.name, region: int(q[0].X)}, nil
}

func (f *fakes) ReadText(_ context.Context, img image.Image) (string, error) {
	c := img.(crop)
	s := f.scenes[c.name]
	if s.readErr != nil {
		return "", s.readErr
	}
	return s.texts[c.region], nil
}

func newTestPipeline(t *testing.T, cfg Config, scenes map[string]scene, opts ...Option) *Pipeline {
	t.Helper()
	f := &fakes{scenes: scenes}
	opts = append([]Option{WithImageLoader(f.load)}, opts...)
	p, err := New(cfg, f, f, f, tags.NewRange(tags.DefaultMin, tags.DefaultMax), opts...)
	require.NoError(t, err)
	return p
}

func TestDetectImage_FindsKnownNumber(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(), map[string]scene{
		"a.jpg": {texts: []string{"518"}},
	})

	nums, err := p.DetectImage(context.Background(), "/in/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []int{518}, nums)
	assert.Equal(t, Stats{Processed: 1, WithNumbers: 1}, p.Stats())
}

func TestDetectImage_NoRegions(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(), map[string]scene{"a.jpg": {}})

	nums, err := p.DetectImage(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Empty(t, nums)
	assert.Equal(t, Stats{Processed: 1}, p.Stats())
}

func TestDetectImage_FiltersAndDeduplicates(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(), map[string]scene{
		"a.png": {texts: []string{"12", "abc", "1000", "12", "<degenerate>", " 7\n", "-3", "４２"}},
	})

	nums, err := p.DetectImage(context.Background(), "a.png")
	require.NoError(t, err)
	assert.Equal(t, []int{12, 7, 42}, nums)
}

func TestDetectImage_UnsupportedFormat(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(), map[string]scene{"a.gif": {texts: []string{"1"}}})

	_, err := p.DetectImage(context.Background(), "a.gif")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.NotErrorIs(t, err, ErrProcessing)
	assert.Equal(t, Stats{}, p.Stats())
}

func TestDetectImage_ProcessingFailures(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(), map[string]scene{
		"corrupt.jpg": {loadErr: errors.New("unexpected EOF")},
		"ocr.jpg":     {texts: []string{"5"}, readErr: errors.New("engine crashed")},
	})

	_, err := p.DetectImage(context.Background(), "corrupt.jpg")
	assert.ErrorIs(t, err, ErrProcessing)
	assert.ErrorContains(t, err, "unexpected EOF")

	_, err = p.DetectImage(context.Background(), "ocr.jpg")
	assert.ErrorIs(t, err, ErrProcessing)
	assert.Equal(t, Stats{Processed: 2}, p.Stats())
}

func TestDetectImage_WritesOutput(t *testing.T) {
	out := t.TempDir()
	p := newTestPipeline(t, Config{Workers: 1, OutputDir: out}, map[string]scene{
		"hit.jpg":  {texts: []string{"518", "12"}},
		"miss.jpg": {},
	})

	_, err := p.DetectImage(context.Background(), "hit.jpg")
	require.NoError(t, err)
	_, err = p.DetectImage(context.Background(), "miss.jpg")
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(out, "hit.jpg", "output.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Found bib numbers: [518, 12]\n", string(b))

	b, err = os.ReadFile(filepath.Join(out, "miss.jpg", "output.txt"))
	require.NoError(t, err)
	assert.Equal(t, "No bib numbers found\n", string(b))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"518", 518, true},
		{" 518 \n", 518, true},
		{"５１８", 518, true},
		{"0", 0, true},
		{"", 0, false},
		{"12 34", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"5l8", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type syncProgress struct {
	mu     sync.Mutex
	starts int
	ticks  int
	errors int
	ends   int
}

func (s *syncProgress) OnStart(int)         { s.mu.Lock(); s.starts++; s.mu.Unlock() }
func (s *syncProgress) OnProgress(int, int) { s.mu.Lock(); s.ticks++; s.mu.Unlock() }
func (s *syncProgress) OnComplete()         { s.mu.Lock(); s.ends++; s.mu.Unlock() }
func (s *syncProgress) OnError(int, error)  { s.mu.Lock(); s.errors++; s.mu.Unlock() }

func TestDetectBatch_IsolatesFailures(t *testing.T) {
	progress := &syncProgress{}
	p := newTestPipeline(t, Config{Workers: 4}, map[string]scene{
		"1.jpg":       {texts: []string{"1"}},
		"2.jpg":       {texts: []string{"2", "22"}},
		"3.jpg":       {},
		"4.jpg":       {texts: []string{"four"}},
		"corrupt.jpg": {loadErr: errors.New("bad huffman code")},
	}, WithProgress(progress))

	got := p.DetectBatch(context.Background(), []string{
		"in/1.jpg", "in/./2.jpg", "in/3.jpg", "in/4.jpg", "in/corrupt.jpg",
	})

	assert.Equal(t, map[string][]int{
		"in/1.jpg": {1},
		"in/2.jpg": {2, 22},
		"in/3.jpg": {},
		"in/4.jpg": {},
	}, got)
	assert.Equal(t, Stats{Processed: 5, WithNumbers: 2}, p.Stats())
	assert.Equal(t, 1, progress.starts)
	assert.Equal(t, 5, progress.ticks)
	assert.Equal(t, 1, progress.errors)
	assert.Equal(t, 1, progress.ends)
}

func TestDetectBatch_Empty(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(), nil)
	assert.Empty(t, p.DetectBatch(context.Background(), nil))
}

func TestDetectBatch_ConcurrentCounters(t *testing.T) {
	scenes := make(map[string]scene)
	var paths []string
	for i := range 40 {
		name := fmt.Sprintf("%02d.jpg", i)
		scenes[name] = scene{texts: []string{"9"}}
		paths = append(paths, name)
	}
	p := newTestPipeline(t, Config{Workers: MaxWorkers}, scenes)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, p.DetectBatch(context.Background(), paths), 40)
		}()
	}
	wg.Wait()
	require.NoError(t, p.Close())
	assert.Equal(t, Stats{Processed: 120, WithNumbers: 120}, p.Stats())
}

func TestDetectDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	p := newTestPipeline(t, Config{Workers: 2}, map[string]scene{
		"a.jpg": {texts: []string{"100"}},
		"b.png": {},
	})

	got, err := p.DetectDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{
		filepath.Join(dir, "a.jpg"): {100},
		filepath.Join(dir, "b.png"): {},
	}, got)

	_, err = p.DetectDir(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Workers: 1}.Validate())
	assert.NoError(t, Config{Workers: 10}.Validate())
	assert.Error(t, Config{Workers: 0}.Validate())
	assert.Error(t, Config{Workers: 11}.Validate())

	_, err := New(Config{Workers: 1}, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestStatsPercent(t *testing.T) {
	assert.Zero(t, Stats{}.Percent())
	assert.InDelta(t, 25.0, Stats{Processed: 4, WithNumbers: 1}.Percent(), 1e-9)
}
