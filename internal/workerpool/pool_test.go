package workerpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapScoresPreservesInputOrder(t *testing.T) {
	p := New(4)
	defer p.Close()

	items := []int{5, 3, 8, 1, 9, 2}
	out, err := MapScores(context.Background(), p, items, func(x int) (int, error) {
		return x * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 30, 80, 10, 90, 20}, out)
}

func TestMapScoresReportsError(t *testing.T) {
	p := New(2)
	defer p.Close()

	items := []int{1, 2, 3}
	_, err := MapScores(context.Background(), p, items, func(x int) (int, error) {
		if x == 2 {
			return 0, assert.AnError
		}
		return x, nil
	})
	assert.Error(t, err)
}

func TestSubmitAfterCloseFails(t *testing.T) {
	p := New(1)
	p.Close()

	err := p.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}
