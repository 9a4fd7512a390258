package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(id string) Capability {
	return Func{ID: id, Fn: func(context.Context, string) (Quote, error) { return Quote{}, nil }}
}

func TestRegistryFirstRegisteredWins(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("example.com", named("broad")))
	require.NoError(t, reg.Register("shop.example.com", named("specific")))

	c, ok := reg.Resolve("https://shop.example.com/item/1")
	require.True(t, ok)
	assert.Equal(t, "broad", c.Name())
}

func TestRegistrySubstringMatchesInOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("example.com", named("example")))
	require.NoError(t, reg.Register("example2.com", named("example2")))

	c, ok := reg.Resolve("https://EXAMPLE2.com/product_B")
	require.True(t, ok)
	assert.Equal(t, "example2", c.Name())

	c, ok = reg.Resolve("https://example.com/product_A")
	require.True(t, ok)
	assert.Equal(t, "example", c.Name())
	assert.Equal(t, []string{"example.com", "example2.com"}, reg.Matches())
}

func TestRegistryMiss(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("example.com", named("example")))

	c, ok := reg.Resolve("foo.bar/item")
	assert.False(t, ok)
	assert.Nil(t, c)

	_, ok = reg.Resolve("")
	assert.False(t, ok)
}

func TestRegistryRejectsBadRegistration(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(" ", named("x")))
	assert.Error(t, reg.Register("example.com", nil))
	require.NoError(t, reg.Register("example.com", named("x")))
	assert.Error(t, reg.Register("Example.com", named("y")))

	reg.Freeze()
	assert.ErrorIs(t, reg.Register("other.com", named("z")), ErrRegistryFrozen)
	assert.Equal(t, 1, reg.Len())
}
