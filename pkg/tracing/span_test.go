package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "run", "trace-1")
	assert.Same(t, root, SpanFromContext(ctx))

	var wg sync.WaitGroup
	for _, name := range []string{"index.ok", "index.err"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, child := StartChildSpan(ctx, name)
			child.SetAttr("tokens", 3)
			child.End()
		}()
	}
	wg.Wait()

	expandCtx, expand := StartChildSpan(ctx, "expand")
	_, closeSpan := StartChildSpan(expandCtx, "emit.close")
	closeSpan.End()
	expand.End()
	root.End()

	require.Len(t, root.Children, 3)
	found := root.Find("emit.close")
	require.NotNil(t, found)
	assert.Equal(t, "trace-1", found.TraceID)
	assert.Nil(t, root.Find("missing"))
	assert.GreaterOrEqual(t, root.Duration, expand.Duration)

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, nil)))
	assert.Equal(t, 5, strings.Count(buf.String(), "msg=span"))
	assert.Contains(t, buf.String(), "tokens=3")
}

func TestNoSpanInContext(t *testing.T) {
	assert.Nil(t, SpanFromContext(context.Background()))
	_, orphan := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, orphan.TraceID)
}
