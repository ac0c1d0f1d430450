package listcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/blocksync/internal/sync/domain"
)

// countingGateway records call counts and serves canned data.
type countingGateway struct {
	lists      []domain.RemoteList
	items      map[string][]domain.Hostname
	listCalls  int
	itemCalls  int
	writeCalls int
}

func (g *countingGateway) ListLists(context.Context) ([]domain.RemoteList, error) {
	g.listCalls++
	return g.lists, nil
}

func (g *countingGateway) GetListItems(_ context.Context, id string) ([]domain.Hostname, error) {
	g.itemCalls++
	return g.items[id], nil
}

func (g *countingGateway) CreateList(_ context.Context, name string, _ []domain.Hostname) (domain.RemoteList, error) {
	g.writeCalls++
	return domain.RemoteList{ID: "new", Name: name}, nil
}

func (g *countingGateway) UpdateListItems(context.Context, string, []domain.Hostname, []domain.Hostname) error {
	g.writeCalls++
	return nil
}

func (g *countingGateway) DeleteList(context.Context, string) error {
	g.writeCalls++
	return nil
}

func newTestCache(t *testing.T, g *countingGateway) *Cache {
	t.Helper()
	c, err := New(g, 32)
	require.NoError(t, err)
	return c
}

func TestListLists_FetchedOnce(t *testing.T) {
	g := &countingGateway{lists: []domain.RemoteList{{ID: "a", Name: "pfx-000"}}}
	c := newTestCache(t, g)

	first, err := c.ListLists(context.Background())
	require.NoError(t, err)
	second, err := c.ListLists(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, g.listCalls)
}

func TestGetListItems_ReadThrough(t *testing.T) {
	g := &countingGateway{items: map[string][]domain.Hostname{"a": {"x.example.com"}}}
	c := newTestCache(t, g)

	for i := 0; i < 3; i++ {
		items, err := c.GetListItems(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, []domain.Hostname{"x.example.com"}, items)
	}
	assert.Equal(t, 1, g.itemCalls)
}

func TestMutationsPurge(t *testing.T) {
	g := &countingGateway{
		lists: []domain.RemoteList{{ID: "a", Name: "pfx-000"}},
		items: map[string][]domain.Hostname{"a": {"x.example.com"}},
	}
	c := newTestCache(t, g)

	_, err := c.ListLists(context.Background())
	require.NoError(t, err)
	_, err = c.GetListItems(context.Background(), "a")
	require.NoError(t, err)

	require.NoError(t, c.UpdateListItems(context.Background(), "a", nil, nil))

	_, err = c.ListLists(context.Background())
	require.NoError(t, err)
	_, err = c.GetListItems(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, 2, g.listCalls, "enumeration should refetch after a write")
	assert.Equal(t, 2, g.itemCalls, "membership should refetch after a write")
}

func TestCreateAndDeletePurge(t *testing.T) {
	g := &countingGateway{}
	c := newTestCache(t, g)

	_, err := c.ListLists(context.Background())
	require.NoError(t, err)

	_, err = c.CreateList(context.Background(), "pfx-001", nil)
	require.NoError(t, err)
	_, err = c.ListLists(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.DeleteList(context.Background(), "new"))
	_, err = c.ListLists(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, g.listCalls)
	assert.Equal(t, 2, g.writeCalls)
}
