package fingerprint

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInputs() Inputs {
	return Inputs{
		UserAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
		Language:       "ru-RU",
		ScreenWidth:    390,
		ScreenHeight:   844,
		TimezoneOffset: -180,
		Storage:        StorageFlags{LocalStorage: true, SessionStorage: true, IndexedDB: true},
		Canvas:         "data:image/png;base64,iVBORw0KGgo",
	}
}

type brokenCanvasEnv struct {
	Environment
	panics bool
}

func (e brokenCanvasEnv) CanvasSnapshot() (string, error) {
	if e.panics {
		panic("canvas unsupported")
	}
	return "", errors.New("no 2d context")
}

func TestHash32KnownValues(t *testing.T) {
	assert.Equal(t, int32(0), hash32(""))
	assert.Equal(t, int32(97), hash32("a"))
	assert.Equal(t, int32(3105), hash32("ab"))
	// "hello world" overflows 32 bits; this matches the JS (h<<5)-h+c idiom.
	assert.Equal(t, int32(1794106052), hash32("hello world"))
}

func TestFallbackIsDeterministic(t *testing.T) {
	in := sampleInputs()
	first := Fallback(in)
	require.NotEmpty(t, first)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Fallback(in))
	}
}

func TestFallbackChangesWithAnyInput(t *testing.T) {
	base := Fallback(sampleInputs())
	mutations := map[string]func(*Inputs){
		"user agent": func(in *Inputs) { in.UserAgent += " Telegram" },
		"language":   func(in *Inputs) { in.Language = "en-US" },
		"resolution": func(in *Inputs) { in.ScreenWidth = 1170 },
		"timezone":   func(in *Inputs) { in.TimezoneOffset = 0 },
		"storage":    func(in *Inputs) { in.Storage.IndexedDB = false },
		"canvas":     func(in *Inputs) { in.Canvas = "" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := sampleInputs()
			mutate(&in)
			assert.NotEqual(t, base, Fallback(in))
		})
	}
}

func TestReadInputsToleratesBrokenCanvas(t *testing.T) {
	env := NewStaticEnvironment(sampleInputs())

	for _, panics := range []bool{false, true} {
		in := ReadInputs(brokenCanvasEnv{Environment: env, panics: panics})
		assert.Equal(t, "", in.Canvas)
		assert.Equal(t, "ru-RU", in.Language)
	}
	assert.Equal(t, Inputs{}, ReadInputs(nil))
}

func TestGenerateFallsBackWhenCollectorFails(t *testing.T) {
	env := NewStaticEnvironment(sampleInputs())
	gen := NewGenerator(Options{
		Collector: CollectorFunc(func(context.Context) (string, error) {
			return "", errors.New("blocked by extension")
		}),
		Env: env,
	})

	assert.Equal(t, Fallback(sampleInputs()), gen.Generate(context.Background()))
}

func TestGenerateFallsBackWhenCollectorPanics(t *testing.T) {
	gen := NewGenerator(Options{
		Collector: CollectorFunc(func(context.Context) (string, error) {
			panic("boom")
		}),
		Env: NewStaticEnvironment(sampleInputs()),
	})

	assert.Equal(t, Fallback(sampleInputs()), gen.Generate(context.Background()))
}

func TestGenerateFallsBackOnTimeout(t *testing.T) {
	gen := NewGenerator(Options{
		Collector: CollectorFunc(func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}),
		Env:     NewStaticEnvironment(sampleInputs()),
		Timeout: 20 * time.Millisecond,
	})

	start := time.Now()
	assert.Equal(t, Fallback(sampleInputs()), gen.Generate(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestGenerateWithoutCollectorOrEnvIsNonEmpty(t *testing.T) {
	gen := NewGenerator(Options{})
	assert.NotEmpty(t, gen.Generate(context.Background()))
}

func TestCacheSharesPrimaryResult(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	collector := CollectorFunc(func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "visitor-123", nil
	})
	gen := NewGenerator(Options{Collector: collector, Cache: NewCache()})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gen.Generate(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "visitor-123", r)
	}
	assert.Equal(t, "visitor-123", gen.Generate(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCacheDoesNotRememberFailures(t *testing.T) {
	var calls int32
	cache := NewCache()
	collect := func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("transient")
		}
		return "visitor-456", nil
	}

	_, err := cache.Get(context.Background(), collect)
	require.Error(t, err)

	value, err := cache.Get(context.Background(), collect)
	require.NoError(t, err)
	assert.Equal(t, "visitor-456", value)

	cache.Reset()
	value, err = cache.Get(context.Background(), collect)
	require.NoError(t, err)
	assert.Equal(t, "visitor-456", value)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCacheSurvivesFirstCallerCancel(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	cache := NewCache()
	collect := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
			return "visitor-789", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Get(first, collect)
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	second := make(chan string, 1)
	go func() {
		value, err := cache.Get(context.Background(), collect)
		assert.NoError(t, err)
		second <- value
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, "visitor-789", <-second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCacheKeepsFirstCallerDeadline(t *testing.T) {
	cache := NewCache()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := cache.Get(ctx, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSeparateCachesAreIndependent(t *testing.T) {
	a := NewGenerator(Options{Collector: CollectorFunc(func(context.Context) (string, error) { return "device-a", nil })})
	b := NewGenerator(Options{Collector: CollectorFunc(func(context.Context) (string, error) { return "device-b", nil })})

	assert.Equal(t, "device-a", a.Generate(context.Background()))
	assert.Equal(t, "device-b", b.Generate(context.Background()))
}
