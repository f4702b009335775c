package hostfunc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleKeepsOrder(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Register("b", 1))
	require.NoError(t, b.Register("a", 2))
	require.NoError(t, b.Register("b", 3))

	assert.Equal(t, []string{"b", "a"}, b.Keys())
	assert.Equal(t, 2, b.Len())

	v, ok := b.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestBundleRejectsInvalidNames(t *testing.T) {
	b := NewBundle()

	for _, name := range []string{"", "1abc", "with space", "dash-ed", "import", "return"} {
		assert.ErrorIs(t, b.Register(name, true), ErrInvalidName, name)
	}
	assert.Equal(t, 0, b.Len())
}

func TestBundleValidate(t *testing.T) {
	b := NewBundle().MustRegister("warn", 1)
	require.NoError(t, b.Validate())

	b.names = append(b.names, "bad name")
	b.values["bad name"] = 2
	assert.ErrorIs(t, b.Validate(), ErrInvalidName)
}

func TestBindContext(t *testing.T) {
	ctx := context.Background()
	assert.True(t, BindContext(NewHTTP(HTTPConfig{}), func() context.Context { return ctx }))
	assert.False(t, BindContext(NewKVStore(DefaultKVConfig()), func() context.Context { return ctx }))
}

func TestIsIdentifier(t *testing.T) {
	for _, name := range []string{"warn", "_private", "$", "danger2", "camelCase"} {
		assert.True(t, IsIdentifier(name), name)
	}
}

func TestBundleResults(t *testing.T) {
	assert.Nil(t, NewBundle().Results())

	results := NewResults()
	b := NewReviewBundle(results)

	got, ok := AsResults(b.Results())
	require.True(t, ok)
	assert.Same(t, results, got)
	assert.Equal(t, []string{"fail", "warn", "message", "markdown", "results"}, b.Keys())
}

func TestMustRegisterPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewBundle().MustRegister("not valid", nil)
	})
}
