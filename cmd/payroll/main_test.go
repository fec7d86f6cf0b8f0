package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestResolvePeriod(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	now := time.Date(2021, 9, 3, 12, 0, 0, 0, la)

	tests := []struct {
		name       string
		start, end string
		want       [2]string
		wantErr    bool
	}{
		{"defaults to previous pay period", "", "", [2]string{"2021-08-16", "2021-08-31"}, false},
		{"start only is a single day", "2021-08-11", "", [2]string{"2021-08-11", "2021-08-11"}, false},
		{"explicit range", "2021-08-01", "2021-08-15", [2]string{"2021-08-01", "2021-08-15"}, false},
		{"end only", "", "2021-08-15", [2]string{}, true},
		{"reversed", "2021-08-15", "2021-08-01", [2]string{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := resolvePeriod(tt.start, tt.end, la, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want[0], p.Start.Format("2006-01-02"))
			assert.Equal(t, tt.want[1], p.End.Format("2006-01-02"))
			assert.Equal(t, la, p.Location)
		})
	}
}

type stubReleaser struct {
	calls int
	err   error
}

func (s *stubReleaser) Release(context.Context) (int64, error) {
	s.calls++
	return 3, s.err
}

func TestReleaseClaims(t *testing.T) {
	logger := zaptest.NewLogger(t)

	ok := &stubReleaser{}
	assert.True(t, releaseClaims(context.Background(), ok, "run-1", logger))
	assert.Equal(t, 1, ok.calls)

	// A failed release is logged, not fatal
	down := &stubReleaser{err: errors.New("connection refused")}
	assert.False(t, releaseClaims(context.Background(), down, "run-2", logger))
	assert.Equal(t, 1, down.calls)
}
