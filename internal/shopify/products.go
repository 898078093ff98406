package shopify

import (
	"context"
	"errors"
	"fmt"
)

const (
	AudioNamespace = "playku"
	AudioKey       = "audio_url"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID       string `json:"id"`
	Handle   string `json:"handle"`
	Title    string `json:"title"`
	Image    string `json:"image,omitempty"`
	AudioURL string `json:"audioUrl"`
}

type ProductPage struct {
	Products  []Product `json:"products"`
	EndCursor string    `json:"endCursor,omitempty"`
	HasNext   bool      `json:"hasNext"`
}

type productNode struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Title  string `json:"title"`
	Images struct {
		Edges []struct {
			Node struct {
				URL string `json:"url"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"images"`
	Metafield *struct {
		Value string `json:"value"`
	} `json:"metafield"`
}

func (n productNode) product() Product {
	p := Product{ID: n.ID, Handle: n.Handle, Title: n.Title}
	if len(n.Images.Edges) > 0 {
		p.Image = n.Images.Edges[0].Node.URL
	}
	if n.Metafield != nil {
		p.AudioURL = n.Metafield.Value
	}
	return p
}

const productFields = `
	id
	handle
	title
	images(first: 1) { edges { node { url } } }
	metafield(namespace: "playku", key: "audio_url") { value }`

// ListProducts returns one page of products with their audio URL. An empty
// after starts from the first page.
func (c *Client) ListProducts(ctx context.Context, first int, after string) (ProductPage, error) {
	if first <= 0 || first > 250 {
		first = 20
	}
	query := `
query products($first: Int!, $after: String) {
	products(first: $first, after: $after) {
		edges { node {` + productFields + `
		} }
		pageInfo { hasNextPage endCursor }
	}
}`
	vars := map[string]any{"first": first}
	if after != "" {
		vars["after"] = after
	}

	var data struct {
		Products struct {
			Edges []struct {
				Node productNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"products"`
	}
	if err := c.graphql(ctx, query, vars, &data); err != nil {
		return ProductPage{}, fmt.Errorf("list products: %w", err)
	}

	page := ProductPage{
		Products:  make([]Product, 0, len(data.Products.Edges)),
		EndCursor: data.Products.PageInfo.EndCursor,
		HasNext:   data.Products.PageInfo.HasNextPage,
	}
	for _, edge := range data.Products.Edges {
		page.Products = append(page.Products, edge.Node.product())
	}
	return page, nil
}

func (c *Client) ProductByHandle(ctx context.Context, handle string) (Product, error) {
	query := `
query productByHandle($handle: String!) {
	productByHandle(handle: $handle) {` + productFields + `
	}
}`
	var data struct {
		ProductByHandle *productNode `json:"productByHandle"`
	}
	if err := c.graphql(ctx, query, map[string]any{"handle": handle}, &data); err != nil {
		return Product{}, fmt.Errorf("product by handle: %w", err)
	}
	if data.ProductByHandle == nil {
		return Product{}, ErrProductNotFound
	}
	return data.ProductByHandle.product(), nil
}

// SetProductAudio writes the audio URL metafield of a product.
func (c *Client) SetProductAudio(ctx context.Context, productID, audioURL string) error {
	mutation := `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
	metafieldsSet(metafields: $metafields) {
		metafields { id key value }
		userErrors { field message }
	}
}`
	vars := map[string]any{
		"metafields": []map[string]any{{
			"ownerId":   productID,
			"namespace": AudioNamespace,
			"key":       AudioKey,
			"type":      "single_line_text_field",
			"value":     audioURL,
		}},
	}

	var data struct {
		MetafieldsSet struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	if err := c.graphql(ctx, mutation, vars, &data); err != nil {
		return fmt.Errorf("set product audio: %w", err)
	}
	return userErrorsToError("metafieldsSet", data.MetafieldsSet.UserErrors)
}

// CreateAudioMetafieldDefinition registers the storefront-visible
// definition for the audio URL metafield. An existing definition is not an
// error.
func (c *Client) CreateAudioMetafieldDefinition(ctx context.Context) error {
	mutation := `
mutation metafieldDefinitionCreate($definition: MetafieldDefinitionInput!) {
	metafieldDefinitionCreate(definition: $definition) {
		createdDefinition { id }
		userErrors { field message code }
	}
}`
	vars := map[string]any{
		"definition": map[string]any{
			"name":                   "Audio Preview URL",
			"namespace":              "app--playku",
			"key":                    AudioKey,
			"description":            "Audio preview URL for PlayKu player",
			"ownerType":              "PRODUCT",
			"type":                   "single_line_text_field",
			"visibleToStorefrontApi": true,
			"access":                 map[string]any{"admin": "MERCHANT_READ_WRITE", "storefront": "PUBLIC_READ"},
		},
	}

	var data struct {
		MetafieldDefinitionCreate struct {
			UserErrors []struct {
				UserError
				Code string `json:"code"`
			} `json:"userErrors"`
		} `json:"metafieldDefinitionCreate"`
	}
	if err := c.graphql(ctx, mutation, vars, &data); err != nil {
		return fmt.Errorf("create metafield definition: %w", err)
	}

	var errs []UserError
	for _, ue := range data.MetafieldDefinitionCreate.UserErrors {
		if ue.Code == "TAKEN" {
			continue
		}
		errs = append(errs, ue.UserError)
	}
	return userErrorsToError("metafieldDefinitionCreate", errs)
}
