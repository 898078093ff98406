package shopify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// InjectScriptName identifies script tags this app installed, whatever host
// served them.
const InjectScriptName = "playku"

type ScriptTag struct {
	ID  string `json:"id"`
	Src string `json:"src"`
}

func (c *Client) ListScriptTags(ctx context.Context) ([]ScriptTag, error) {
	query := `
{
	scriptTags(first: 100) {
		edges { node { id src } }
	}
}`
	var data struct {
		ScriptTags struct {
			Edges []struct {
				Node ScriptTag `json:"node"`
			} `json:"edges"`
		} `json:"scriptTags"`
	}
	if err := c.graphql(ctx, query, nil, &data); err != nil {
		return nil, fmt.Errorf("list script tags: %w", err)
	}
	tags := make([]ScriptTag, 0, len(data.ScriptTags.Edges))
	for _, edge := range data.ScriptTags.Edges {
		tags = append(tags, edge.Node)
	}
	return tags, nil
}

func (c *Client) DeleteScriptTag(ctx context.Context, id string) error {
	mutation := `
mutation scriptTagDelete($id: ID!) {
	scriptTagDelete(id: $id) {
		deletedScriptTagId
		userErrors { field message }
	}
}`
	var data struct {
		ScriptTagDelete struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"scriptTagDelete"`
	}
	if err := c.graphql(ctx, mutation, map[string]any{"id": id}, &data); err != nil {
		return fmt.Errorf("delete script tag: %w", err)
	}
	return userErrorsToError("scriptTagDelete", data.ScriptTagDelete.UserErrors)
}

// RegisterScriptTag makes src the only injected widget script. Nothing
// changes when a tag for src already exists; otherwise tags left by
// earlier deployments are removed before the new one is created. created
// reports whether a tag was added.
func (c *Client) RegisterScriptTag(ctx context.Context, src string) (tag ScriptTag, created bool, err error) {
	existing, err := c.ListScriptTags(ctx)
	if err != nil {
		return ScriptTag{}, false, err
	}
	for _, t := range existing {
		if t.Src == src {
			return t, false, nil
		}
	}
	for _, t := range existing {
		if strings.Contains(t.Src, InjectScriptName) {
			if err := c.DeleteScriptTag(ctx, t.ID); err != nil {
				return ScriptTag{}, false, err
			}
			slog.Info("shopify: removed stale script tag", "shop", c.config.ShopDomain, "src", t.Src)
		}
	}

	mutation := `
mutation scriptTagCreate($input: ScriptTagInput!) {
	scriptTagCreate(input: $input) {
		scriptTag { id src }
		userErrors { field message }
	}
}`
	vars := map[string]any{"input": map[string]any{"src": src, "displayScope": "ALL"}}
	var data struct {
		ScriptTagCreate struct {
			ScriptTag  *ScriptTag  `json:"scriptTag"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"scriptTagCreate"`
	}
	if err := c.graphql(ctx, mutation, vars, &data); err != nil {
		return ScriptTag{}, false, fmt.Errorf("create script tag: %w", err)
	}
	if err := userErrorsToError("scriptTagCreate", data.ScriptTagCreate.UserErrors); err != nil {
		return ScriptTag{}, false, err
	}
	if data.ScriptTagCreate.ScriptTag == nil {
		return ScriptTag{}, false, fmt.Errorf("create script tag: empty response")
	}
	return *data.ScriptTagCreate.ScriptTag, true, nil
}
