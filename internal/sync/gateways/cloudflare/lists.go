package cloudflare

import (
	"context"
	"fmt"
	"net/url"

	"github.com/haukened/blocksync/internal/sync/domain"
	"github.com/haukened/blocksync/internal/sync/services/reconciler"
)

// listJSON is the wire shape of a gateway list resource.
type listJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// itemJSON is one list member on the wire.
type itemJSON struct {
	Value string `json:"value"`
}

func (l listJSON) toDomain() domain.RemoteList {
	return domain.RemoteList{ID: l.ID, Name: l.Name, Type: l.Type, Count: l.Count}
}

// ListLists enumerates every gateway list on the account, managed or not.
// Callers filter by the managed naming convention.
func (c *Client) ListLists(ctx context.Context) ([]domain.RemoteList, error) {
	var raw []listJSON
	if err := c.do(ctx, "GET", c.accountPath("/gateway/lists"), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.RemoteList, 0, len(raw))
	for _, l := range raw {
		out = append(out, l.toDomain())
	}
	return out, nil
}

// GetListItems fetches the full membership of one list.
func (c *Client) GetListItems(ctx context.Context, id string) ([]domain.Hostname, error) {
	var raw []itemJSON
	path := c.accountPath("/gateway/lists/" + url.PathEscape(id) + "/items")
	if err := c.do(ctx, "GET", path, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Hostname, 0, len(raw))
	for _, it := range raw {
		out = append(out, domain.Hostname(it.Value))
	}
	return out, nil
}

// CreateList creates a DOMAIN-typed list with the given members and
// returns the new resource including its platform-assigned identity.
func (c *Client) CreateList(ctx context.Context, name string, items []domain.Hostname) (domain.RemoteList, error) {
	body := struct {
		Name  string     `json:"name"`
		Type  string     `json:"type"`
		Items []itemJSON `json:"items"`
	}{
		Name:  name,
		Type:  domain.ListTypeDomain,
		Items: toItems(items),
	}
	var raw listJSON
	if err := c.do(ctx, "POST", c.accountPath("/gateway/lists"), body, &raw); err != nil {
		return domain.RemoteList{}, fmt.Errorf("create list %q: %w", name, err)
	}
	return raw.toDomain(), nil
}

// UpdateListItems patches a list's membership with append/remove deltas.
// The platform has no whole-set replace; callers compute the deltas.
func (c *Client) UpdateListItems(ctx context.Context, id string, add, remove []domain.Hostname) error {
	body := struct {
		Append []itemJSON `json:"append"`
		Remove []string   `json:"remove"`
	}{
		Append: toItems(add),
		Remove: toValues(remove),
	}
	path := c.accountPath("/gateway/lists/" + url.PathEscape(id))
	if err := c.do(ctx, "PATCH", path, body, nil); err != nil {
		return fmt.Errorf("update list %s: %w", id, err)
	}
	return nil
}

// DeleteList removes a list resource. The platform rejects deletion of
// a list still referenced by a rule; that surfaces as ErrExternalRejected.
func (c *Client) DeleteList(ctx context.Context, id string) error {
	path := c.accountPath("/gateway/lists/" + url.PathEscape(id))
	if err := c.do(ctx, "DELETE", path, nil, nil); err != nil {
		return fmt.Errorf("delete list %s: %w", id, err)
	}
	return nil
}

func (c *Client) accountPath(suffix string) string {
	return "/accounts/" + url.PathEscape(c.accountID) + suffix
}

func toItems(hs []domain.Hostname) []itemJSON {
	out := make([]itemJSON, 0, len(hs))
	for _, h := range hs {
		out = append(out, itemJSON{Value: h.String()})
	}
	return out
}

func toValues(hs []domain.Hostname) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.String())
	}
	return out
}

var _ reconciler.GatewayLists = (*Client)(nil)
