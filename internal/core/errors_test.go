package core

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorQueueDrainOrder(t *testing.T) {
	t.Parallel()

	a := NewFile("a.rb", sample)
	b := NewFile("b.rb", sample)
	q := NewErrorQueue()

	push := func(l Loc, header string) {
		e := q.BeginError(l, SubprocessError)
		require.NotNil(t, e)
		e.SetHeader("%s", header)
		e.Done()
	}
	push(Loc{File: b, Begin: 0, End: 1}, "b0")
	push(Loc{File: a, Begin: 10, End: 16}, "a10")
	push(Loc{File: a, Begin: 0, End: 5}, "a0")
	push(Loc{File: a, Begin: 10, End: 16}, "a10-second")

	var headers []string
	for _, e := range q.Drain() {
		headers = append(headers, e.Header)
	}
	assert.Equal(t, []string{"a0", "a10", "a10-second", "b0"}, headers)
	assert.Empty(t, q.Drain())
	assert.Equal(t, 4, q.NonSilencedCount())
}

func TestErrorQueueSuppressAndSilence(t *testing.T) {
	t.Parallel()

	f := NewFile("a.rb", sample)
	q := NewErrorQueue()
	q.Suppress(ParseError.Code)
	q.Silence(SubprocessError.Code)

	assert.Nil(t, q.BeginError(Loc{File: f}, ParseError))

	e := q.BeginError(Loc{File: f, Begin: 10, End: 16}, SubprocessError)
	require.NotNil(t, e)
	e.SetHeader("quiet").Done()

	var out bytes.Buffer
	assert.Empty(t, q.Flush(&out))
	assert.Empty(t, out.String())
	assert.Zero(t, q.NonSilencedCount())
}

func TestErrorQueueFlush(t *testing.T) {
	t.Parallel()

	f := NewFile("a.rb", sample)
	q := NewErrorQueue()
	q.BeginError(Loc{File: f, Begin: 10, End: 16}, SubprocessError).
		SetHeader("Error while executing subprocess plugin `%s`", "gen.rb").
		AddLine("exit status 1").
		Done()

	var out bytes.Buffer
	flushed := q.Flush(&out)
	require.Len(t, flushed, 1)
	assert.Equal(t, []string{"exit status 1"}, flushed[0].Lines)
	assert.Equal(t, "a.rb:2: Error while executing subprocess plugin `gen.rb` [3001]\n    exit status 1\n", out.String())

	out.Reset()
	q.FlushErrorCount(&out)
	assert.Equal(t, "Errors: 1\n", out.String())

	out.Reset()
	NewErrorQueue().FlushErrorCount(&out)
	assert.Equal(t, "No errors! Great job.\n", out.String())
}

func TestErrorBuilderDoneTwice(t *testing.T) {
	t.Parallel()

	q := NewErrorQueue()
	e := q.BeginError(NoLoc(), SubprocessError)
	e.SetHeader("once")
	e.Done()
	e.Done()
	assert.Len(t, q.Drain(), 1)
}

func TestErrorQueueConcurrentPush(t *testing.T) {
	t.Parallel()

	f := NewFile("a.rb", sample)
	q := NewErrorQueue()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.BeginError(Loc{File: f, Begin: uint32(i % 10), End: uint32(i % 10)}, ParseError).SetHeader("e%d", i).Done()
		}()
	}
	wg.Wait()
	assert.Len(t, q.Drain(), 50)
	assert.Equal(t, 50, q.NonSilencedCount())
}
