package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

// ContractDocument is a streamed contract file. Body must be closed.
type ContractDocument struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// ContractServiceClient creates contracts and downloads their documents
type ContractServiceClient interface {
	CreateContract(ctx context.Context, token string, body map[string]interface{}) (json.RawMessage, error)
	DownloadContract(ctx context.Context, token, contractID string) (*ContractDocument, error)
}

// ContractClient is the HTTP implementation of ContractServiceClient
type ContractClient struct {
	*httpClient
}

// NewContractClient creates a contract service client
func NewContractClient(opts Options) *ContractClient {
	return &ContractClient{newHTTPClient("contract", opts)}
}

// CreateContract posts body to /contract/create and returns the raw response
func (c *ContractClient) CreateContract(ctx context.Context, token string, body map[string]interface{}) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/contract/create", body, bearer(token), &out); err != nil {
		return nil, contractError(err)
	}
	if out == nil {
		out = json.RawMessage(`{}`)
	}
	return out, nil
}

// DownloadContract streams the contract document
func (c *ContractClient) DownloadContract(ctx context.Context, token, contractID string) (*ContractDocument, error) {
	header := bearer(token)
	header.Set("Accept", "application/pdf")

	resp, err := c.send(ctx, http.MethodGet, "/contract/download/"+url.PathEscape(contractID), nil, header)
	if err != nil {
		return nil, contractError(err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &ContractDocument{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
	}, nil
}
