package emitter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/resilience"
)

func sampleResult(line int) expander.SentenceResult {
	return expander.SentenceResult{
		Sentence: corpus.Sentence{
			Line:   line,
			Tokens: []corpus.Token{{Word: "the", Tag: "DT"}, {Word: "dog", Tag: "NN"}},
		},
		Expansions: []expander.Expansion{
			{Start: 0, Form: "the", Suspicion: 0.5, OKCount: 1, ErrCount: 1},
			{Start: 1, Form: "dog_NN", Suspicion: 1, OKCount: 0, ErrCount: 3},
		},
	}
}

func TestFileFormat(t *testing.T) {
	var sents, forms bytes.Buffer
	f := NewFile(&sents, &forms)
	ctx := context.Background()

	require.NoError(t, f.Emit(ctx, sampleResult(1)))
	require.NoError(t, f.Emit(ctx, expander.SentenceResult{Sentence: corpus.Sentence{Line: 2}}))
	require.NoError(t, f.Close(ctx))

	assert.Equal(t, "the 0.500000 1 1\ndog_NN 1.000000 0 3\n", forms.String())
	assert.Equal(t, "the dog_NN\n\n", sents.String())
}

func TestCreateFiles(t *testing.T) {
	dir := t.TempDir()
	sentPath, formsPath := filepath.Join(dir, "sent.txt"), filepath.Join(dir, "forms.txt")
	f, err := CreateFiles(sentPath, formsPath)
	require.NoError(t, err)
	require.NoError(t, f.Emit(context.Background(), sampleResult(1)))
	require.NoError(t, f.Close(context.Background()))

	data, err := os.ReadFile(sentPath)
	require.NoError(t, err)
	assert.Equal(t, "the dog_NN\n", string(data))
	data, err = os.ReadFile(formsPath)
	require.NoError(t, err)
	assert.Equal(t, "the 0.500000 1 1\ndog_NN 1.000000 0 3\n", string(data))
}

func TestCreateFilesBadPath(t *testing.T) {
	_, err := CreateFiles(filepath.Join(t.TempDir(), "missing", "sent.txt"), filepath.Join(t.TempDir(), "forms.txt"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitIO, apperrors.ExitCode(err))
}

type recorder struct {
	got    []int
	closed bool
	err    error
}

func (r *recorder) Emit(_ context.Context, res expander.SentenceResult) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, res.Sentence.Line)
	return nil
}

func (r *recorder) Close(context.Context) error {
	r.closed = true
	return r.err
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := NewMulti(a, b)
	ctx := context.Background()
	for line := 1; line <= 3; line++ {
		require.NoError(t, m.Emit(ctx, sampleResult(line)))
	}
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, []int{1, 2, 3}, a.got)
	assert.Equal(t, []int{1, 2, 3}, b.got)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMultiStopsAndClosesAll(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{err: boom}, &recorder{}
	m := NewMulti(a, b)
	assert.ErrorIs(t, m.Emit(context.Background(), sampleResult(1)), boom)
	assert.Empty(t, b.got)

	err := m.Close(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, b.closed)
}

type fakePublisher struct {
	batches [][]kafka.Event
	fails   int
	closed  bool
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	if p.fails > 0 {
		p.fails--
		return errors.New("broker unavailable")
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestKafkaSinkBatches(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	sink := NewKafkaSink(pub, SinkOptions{RunID: "run-1", BatchSize: 2, Metrics: m})
	ctx := context.Background()

	for line := 1; line <= 5; line++ {
		require.NoError(t, sink.Emit(ctx, sampleResult(line)))
	}
	assert.Len(t, pub.batches, 2)
	require.NoError(t, sink.Close(ctx))
	require.Len(t, pub.batches, 3)
	assert.True(t, pub.closed)

	ev := pub.batches[0][1]
	assert.Equal(t, "run-1", ev.Key)
	payload, ok := ev.Value.(SentenceEvent)
	require.True(t, ok)
	assert.Equal(t, 2, payload.Line)
	assert.Equal(t, "the dog", payload.Sentence)
	assert.Equal(t, "run-1", payload.RunID)
	require.Len(t, payload.Forms, 2)
	assert.Equal(t, FormRecord{Start: 1, Form: "dog_NN", Suspicion: 1, OKCount: 0, ErrCount: 3}, payload.Forms[1])

	assert.Equal(t, 5.0, testutil.ToFloat64(m.SinkWritesTotal.WithLabelValues("kafka", "ok")))
}

func TestKafkaSinkRetries(t *testing.T) {
	pub := &fakePublisher{fails: 1}
	sink := NewKafkaSink(pub, SinkOptions{BatchSize: 1, RetryAttempts: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, sink.Emit(context.Background(), sampleResult(1)))
	assert.Len(t, pub.batches, 1)
}

func TestKafkaSinkGivesUp(t *testing.T) {
	pub := &fakePublisher{fails: 10}
	m := metrics.New(prometheus.NewRegistry())
	sink := NewKafkaSink(pub, SinkOptions{BatchSize: 1, RetryAttempts: 2, RetryBackoff: time.Millisecond, Metrics: m})
	err := sink.Emit(context.Background(), sampleResult(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSink)
	assert.Equal(t, apperrors.ExitIO, apperrors.ExitCode(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkWritesTotal.WithLabelValues("kafka", "error")))
}

type rejectingPublisher struct {
	fakePublisher
	calls int
	err   error
}

func (p *rejectingPublisher) PublishBatch(context.Context, []kafka.Event) error {
	p.calls++
	return p.err
}

func TestSinkDoesNotRetryRejectedBatch(t *testing.T) {
	pub := &rejectingPublisher{err: apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "event too large")}
	sink := NewKafkaSink(pub, SinkOptions{BatchSize: 1, RetryAttempts: 5, RetryBackoff: time.Hour})
	err := sink.Emit(context.Background(), sampleResult(1))
	require.Error(t, err)
	assert.Equal(t, 1, pub.calls)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, apperrors.ExitUsage, apperrors.ExitCode(err))
}

func TestSinkStopsWhenRunCancelled(t *testing.T) {
	pub := &rejectingPublisher{err: errors.New("broker unavailable")}
	sink := NewKafkaSink(pub, SinkOptions{BatchSize: 1, RetryAttempts: 5, RetryBackoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sink.Emit(ctx, sampleResult(1))
	require.Error(t, err)
	assert.Equal(t, 1, pub.calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSinkOptionsPolicy(t *testing.T) {
	p := SinkOptions{RetryAttempts: 7, RetryBackoff: 250 * time.Millisecond, Timeout: 2 * time.Second}.policy()
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, p.InitialDelay)
	assert.Equal(t, 2*time.Second, p.AttemptTimeout)

	def := SinkOptions{}.policy()
	assert.Equal(t, resilience.DefaultPolicy().MaxAttempts, def.MaxAttempts)
	assert.Zero(t, def.AttemptTimeout)
}

type slowPublisher struct{ fakePublisher }

func (p *slowPublisher) PublishBatch(ctx context.Context, _ []kafka.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSinkTimeout(t *testing.T) {
	sink := NewKafkaSink(&slowPublisher{}, SinkOptions{BatchSize: 1, RetryAttempts: 1, Timeout: 10 * time.Millisecond})
	err := sink.Emit(context.Background(), sampleResult(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSink)
}

type fakeStore struct {
	forms  []redis.FormScore
	closed bool
}

func (s *fakeStore) StoreForms(_ context.Context, forms []redis.FormScore) error {
	s.forms = append(s.forms, forms...)
	return nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func TestRedisSink(t *testing.T) {
	store := &fakeStore{}
	sink := NewRedisSink(store, SinkOptions{BatchSize: 10})
	ctx := context.Background()
	require.NoError(t, sink.Emit(ctx, sampleResult(1)))
	require.NoError(t, sink.Emit(ctx, sampleResult(2)))
	assert.Empty(t, store.forms)

	require.NoError(t, sink.Close(ctx))
	require.Len(t, store.forms, 4)
	assert.Equal(t, redis.FormScore{Form: "the", Suspicion: 0.5, OKCount: 1, ErrCount: 1}, store.forms[0])
	assert.True(t, store.closed)
}

type fakeRows struct {
	table string
	rows  []postgres.FormRow
}

func (w *fakeRows) InsertForms(_ context.Context, table string, rows []postgres.FormRow) error {
	w.table = table
	w.rows = append(w.rows, rows...)
	return nil
}

func (w *fakeRows) Close() error { return nil }

func TestPostgresSink(t *testing.T) {
	w := &fakeRows{}
	sink := NewPostgresSink(w, "expanded_forms", SinkOptions{RunID: "run-2", BatchSize: 1})
	require.NoError(t, sink.Emit(context.Background(), sampleResult(9)))
	require.NoError(t, sink.Close(context.Background()))

	assert.Equal(t, "expanded_forms", w.table)
	require.Len(t, w.rows, 2)
	assert.Equal(t, postgres.FormRow{
		RunID: "run-2", Line: 9, Start: 1, Form: "dog_NN", Suspicion: 1, OKCount: 0, ErrCount: 3,
	}, w.rows[1])
}
