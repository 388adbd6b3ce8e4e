// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPlayer_SetSourceTearsDownBeforeNextAttach(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	calls := &callLog{}
	factory := &fakeFactory{log: calls, supported: true}
	nop := zerolog.Nop()
	p := NewPlayer(&fakeSink{log: calls}, factory, Options{Logger: &nop})
	ctx := context.Background()

	first, err := p.SetSource(ctx, "https://h/a.m3u8")
	require.NoError(t, err)
	second, err := p.SetSource(ctx, "https://h/b.m3u8")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, StateIdle, first.State())
	assert.Same(t, second, p.Current())
	assert.Equal(t, []string{
		"e1.attach",
		"e1.destroy",
		"sink.reset",
		"e2.attach",
	}, calls.snapshot())

	p.Close()
	assert.Nil(t, p.Current())
	assert.Equal(t, 1, calls.count("e2.destroy"))
}

func TestPlayer_FailedStartStillReturnsSession(t *testing.T) {
	calls := &callLog{}
	nop := zerolog.Nop()
	p := NewPlayer(&fakeSink{log: calls}, nil, Options{Logger: &nop})
	defer p.Close()

	sess, err := p.SetSource(context.Background(), "https://h/a.m3u8")
	assert.ErrorIs(t, err, ErrUnsupported)
	require.NotNil(t, sess)
	f, ok := sess.Failure()
	require.True(t, ok)
	assert.Equal(t, "https://h/a.m3u8", f.URL)
}

func TestPlayer_EmptySourceClearsCurrent(t *testing.T) {
	calls := &callLog{}
	factory := &fakeFactory{log: calls, supported: true}
	nop := zerolog.Nop()
	p := NewPlayer(&fakeSink{log: calls}, factory, Options{Logger: &nop})

	_, err := p.SetSource(context.Background(), "https://h/a.m3u8")
	require.NoError(t, err)
	_, err = p.SetSource(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptySource)
	assert.Nil(t, p.Current())
	assert.Equal(t, 1, calls.count("e1.destroy"))
}
