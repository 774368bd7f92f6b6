// SPDX-License-Identifier: MIT
package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"vocalosc/internal/analysis"
	"vocalosc/internal/config"
	"vocalosc/internal/store"
	"vocalosc/pkg/utils"

	goaudio "github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 48000

// chanSource is a synthetic capture source backed by a channel the test
// writes to.
type chanSource struct {
	ch        chan *goaudio.Float32Buffer
	closeOnce sync.Once
	closed    chan struct{}
}

func newChanSource(capacity int) *chanSource {
	return &chanSource{
		ch:     make(chan *goaudio.Float32Buffer, capacity),
		closed: make(chan struct{}),
	}
}

func (s *chanSource) Chunks() <-chan *goaudio.Float32Buffer { return s.ch }

func (s *chanSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *chanSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func buffer(data []float32) *goaudio.Float32Buffer {
	return &goaudio.Float32Buffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: testRate},
		Data:           data,
		SourceBitDepth: 32,
	}
}

// recordingTransport keeps the cycle number of every snapshot it is sent.
type recordingTransport struct {
	mu     sync.Mutex
	cycles []uint64
}

func (r *recordingTransport) Send(snap *analysis.FeatureSnapshot) error {
	r.mu.Lock()
	r.cycles = append(r.cycles, snap.Cycle)
	r.mu.Unlock()
	return nil
}

func (r *recordingTransport) Close() error { return nil }

func (r *recordingTransport) Cycles() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.cycles...)
}

func newTestLoop(t *testing.T, out *recordingTransport) (*Loop, *store.ResultStore, *AnalyzerOptions) {
	t.Helper()
	cfg := config.Default()
	pipeline, err := NewPipeline(cfg, testRate)
	require.NoError(t, err)
	window, err := analysis.NewSampleWindow(cfg.WindowLength())
	require.NoError(t, err)

	results := store.New(cfg.Analysis.HistoryLength)
	options := NewAnalyzerOptions(0)
	if out == nil {
		return NewLoop(window, pipeline, results, options, nil), results, options
	}
	return NewLoop(window, pipeline, results, options, out), results, options
}

func TestLoopSilenceInSilenceOut(t *testing.T) {
	out := &recordingTransport{}
	loop, results, _ := newTestLoop(t, out)

	for range 6 {
		snap := loop.Process(make([]float32, config.DefaultFramesPerBuffer))
		assert.False(t, snap.Voiced())
		assert.Equal(t, analysis.HarmonicGains{}, snap.Harmonics)
		assert.Equal(t, analysis.LoudnessFloorDb, snap.LoudnessDb)
		assert.Empty(t, snap.Formants)
		assert.Len(t, snap.Envelope, config.DefaultEnvelopePoints)
		assert.Len(t, snap.Spectrum, config.DefaultFramesPerBuffer*config.DefaultWindowChunks/2)
	}

	assert.Equal(t, uint64(6), results.Cycle())
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, out.Cycles())
	for _, hz := range results.PitchHistory(store.Hertz) {
		assert.Equal(t, store.Unvoiced, hz)
	}
}

func TestLoopInputGain(t *testing.T) {
	loop, _, options := newTestLoop(t, nil)
	wave := utils.GenerateSineWave(8*config.DefaultFramesPerBuffer, testRate, 220, 0.05)
	chunks := utils.Chunk(wave, config.DefaultFramesPerBuffer)

	var before, after *analysis.FeatureSnapshot
	for _, c := range chunks[:4] {
		before = loop.Process(c)
	}
	options.SetInputGainDb(20)
	for _, c := range chunks[4:] {
		after = loop.Process(c)
	}

	assert.InDelta(t, 20, after.LoudnessDb-before.LoudnessDb, 0.2)
	assert.InEpsilon(t, 220, after.FundamentalHz, 0.005)
}

func TestLoopFormantsFromResonance(t *testing.T) {
	loop, results, _ := newTestLoop(t, nil)

	const center = 900.0
	signal := utils.ToFloat32(utils.GenerateResonance(
		config.DefaultFramesPerBuffer*config.DefaultWindowChunks, testRate, center, 0.995, 0.8, 9))
	for _, chunk := range utils.Chunk(signal, config.DefaultFramesPerBuffer) {
		loop.Process(chunk)
	}

	formants := results.Formants()
	require.Len(t, formants, 1, "formants %v", formants)
	assert.InDelta(t, center, formants[0], 0.1*center)
	assert.Equal(t, uint64(config.DefaultWindowChunks), results.Cycle())
}

func TestSessionTracksSine(t *testing.T) {
	cfg := config.Default()
	src := newChanSource(1)
	out := &recordingTransport{}
	s, err := New(cfg, testRate, src, out)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	wave := utils.GenerateSineWave(8*config.DefaultFramesPerBuffer, testRate, 220, 0.5)
	for _, c := range utils.Chunk(wave, config.DefaultFramesPerBuffer) {
		src.ch <- buffer(c)
	}
	require.Eventually(t, func() bool { return s.Store().Cycle() == 8 }, 5*time.Second, 5*time.Millisecond)

	assert.InEpsilon(t, 220, s.Store().FundamentalHz(), 0.005)
	history := s.Store().PitchHistory(store.MIDINote)
	require.Len(t, history, 8)
	assert.Equal(t, "A3", store.NoteName(history[7]))

	require.NoError(t, s.Stop())
	assert.True(t, src.isClosed())
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8}, out.Cycles())
}

func TestSessionStopJoinsLoop(t *testing.T) {
	src := newChanSource(1)
	s, err := New(config.Default(), testRate, src, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	src.ch <- buffer(make([]float32, config.DefaultFramesPerBuffer))
	require.Eventually(t, func() bool { return s.Store().Cycle() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	select {
	case <-s.Done():
	default:
		t.Fatal("Stop returned before the loop exited")
	}
	assert.NoError(t, s.Err())
	assert.True(t, src.isClosed())

	// Nothing is consumed after Stop.
	src.ch <- buffer(make([]float32, config.DefaultFramesPerBuffer))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(1), s.Store().Cycle())

	assert.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
}

func TestSessionSourceClosed(t *testing.T) {
	src := newChanSource(1)
	s, err := New(config.Default(), testRate, src, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	close(src.ch)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after the source closed")
	}
	assert.ErrorIs(t, s.Err(), ErrSourceClosed)
	assert.Equal(t, analysis.LoudnessFloorDb, s.Store().LoudnessDb())
	assert.NoError(t, s.Stop())
}

func TestSessionParentContextCancel(t *testing.T) {
	src := newChanSource(1)
	s, err := New(config.Default(), testRate, src, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop ignored context cancellation")
	}
	assert.NoError(t, s.Err())
	assert.NoError(t, s.Stop())
}

// blockingSpectrum stalls the first cycle until release is closed.
type blockingSpectrum struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSpectrum) Analyze(window []float64) analysis.MagnitudeSpectrum {
	close(b.entered)
	<-b.release
	return analysis.MagnitudeSpectrum{}
}

func TestSessionStopTimeout(t *testing.T) {
	cfg := config.Default()
	pipeline, err := NewPipeline(cfg, testRate)
	require.NoError(t, err)
	stall := &blockingSpectrum{entered: make(chan struct{}), release: make(chan struct{})}
	pipeline.Spectrum = stall

	window, err := analysis.NewSampleWindow(cfg.WindowLength())
	require.NoError(t, err)
	results := store.New(8)
	options := NewAnalyzerOptions(0)
	src := newChanSource(1)
	s := newSession(src, NewLoop(window, pipeline, results, options, nil), results, options, 50*time.Millisecond)

	require.NoError(t, s.Start(context.Background()))
	src.ch <- buffer(make([]float32, config.DefaultFramesPerBuffer))
	<-stall.entered

	err = s.Stop()
	assert.ErrorIs(t, err, ErrStopTimeout)
	assert.True(t, src.isClosed())

	close(stall.release)
	<-s.Done()
}

func TestAnalyzerOptions(t *testing.T) {
	o := NewAnalyzerOptions(6)
	assert.Equal(t, 6.0, o.InputGainDb())

	o.SetInputGainDb(500)
	assert.Equal(t, float64(config.MaxInputGainDb), o.InputGainDb())
	o.SetInputGainDb(-500)
	assert.Equal(t, float64(config.MinInputGainDb), o.InputGainDb())

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 1000 {
				if i == 0 {
					o.SetInputGainDb(float64(j % 10))
				} else {
					_ = o.InputGainDb()
				}
			}
		}()
	}
	wg.Wait()
}

func TestNewSessionErrors(t *testing.T) {
	_, err := New(config.Default(), testRate, nil, nil)
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Analysis.FFTWindow = "triangle"
	_, err = New(cfg, testRate, newChanSource(1), nil)
	assert.Error(t, err)
}
