package revgeo

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
)

type fakeProvider struct {
	name      string
	available bool
	result    *model.ResolvedProperty
	err       error
	calls     int
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }
func (f *fakeProvider) Lookup(_ context.Context, _ geomath.Point) (*model.ResolvedProperty, error) {
	f.calls++
	return f.result, f.err
}

func TestCascade_FirstMatchWins(t *testing.T) {
	t.Parallel()

	first := &fakeProvider{name: "a", available: true, result: &model.ResolvedProperty{Street: "1 First St"}}
	second := &fakeProvider{name: "b", available: true, result: &model.ResolvedProperty{Street: "2 Second St"}}

	got, err := NewCascade(first, second).Lookup(context.Background(), geomath.Point{})
	require.NoError(t, err)
	assert.Equal(t, "1 First St", got.Street)
	assert.Equal(t, "a", got.Source)
	assert.Zero(t, second.calls, "cascade must stop at the first match")
}

func TestCascade_SkipsUnavailableAndErroring(t *testing.T) {
	t.Parallel()

	offline := &fakeProvider{name: "offline", available: false}
	broken := &fakeProvider{name: "broken", available: true, err: eris.New("boom")}
	missed := &fakeProvider{name: "missed", available: true, err: ErrNoMatch}
	hit := &fakeProvider{name: "hit", available: true, result: &model.ResolvedProperty{Street: "3 Third St"}}

	got, err := NewCascade(offline, broken, missed, hit).Lookup(context.Background(), geomath.Point{})
	require.NoError(t, err)
	assert.Equal(t, "3 Third St", got.Street)
	assert.Equal(t, "hit", got.Source)
	assert.Zero(t, offline.calls)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, missed.calls)
}

func TestCascade_AllMiss(t *testing.T) {
	t.Parallel()

	missed := &fakeProvider{name: "missed", available: true, err: ErrNoMatch}

	_, err := NewCascade(missed).Lookup(context.Background(), geomath.Point{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoMatch))
}

func TestCascade_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewCascade().Lookup(context.Background(), geomath.Point{})
	assert.True(t, eris.Is(err, ErrNoMatch))
}
