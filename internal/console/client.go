package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/schema"
)

// Client calls the batch service over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption configures a client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient targets the API mounted at baseURL, e.g. http://host/api/v1.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Title   string            `json:"title"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// GenerateBatch opens a batch and returns its number.
func (c *Client) GenerateBatch(ctx context.Context, requestType models.RequestType) (string, error) {
	var batch models.Batch
	if err := c.doJSON(ctx, http.MethodPost, "/batches", dto.CreateBatchRequest{RequestType: requestType}, &batch); err != nil {
		return "", err
	}
	return batch.BatchNumber, nil
}

// ListBatches returns the first page of batches of requestType.
func (c *Client) ListBatches(ctx context.Context, requestType models.RequestType) ([]models.Batch, error) {
	var batches []models.Batch
	err := c.doJSON(ctx, http.MethodGet, "/batches?request_type="+url.QueryEscape(string(requestType)), nil, &batches)
	return batches, err
}

func (c *Client) ListRecords(ctx context.Context, batchNumber string, requestType models.RequestType) ([]dto.BatchRecordView, error) {
	var records []dto.BatchRecordView
	path := fmt.Sprintf("/batches/%s/records?request_type=%s", url.PathEscape(batchNumber), url.QueryEscape(string(requestType)))
	err := c.doJSON(ctx, http.MethodGet, path, nil, &records)
	return records, err
}

func (c *Client) BarcodeDetails(ctx context.Context, code, batchNumber string) (*models.BarcodeDetails, error) {
	var details models.BarcodeDetails
	path := fmt.Sprintf("/barcodes/%s?batch_number=%s", url.PathEscape(code), url.QueryEscape(batchNumber))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) CheckBarcodeUsed(ctx context.Context, code, batchNumber string, requestType models.RequestType) (models.GuardResult, error) {
	var result models.GuardResult
	path := fmt.Sprintf("/barcodes/%s/used?batch_number=%s&request_type=%s",
		url.PathEscape(code), url.QueryEscape(batchNumber), url.QueryEscape(string(requestType)))
	err := c.doJSON(ctx, http.MethodGet, path, nil, &result)
	return result, err
}

func (c *Client) SaveRecord(ctx context.Context, batchNumber string, sub Submission) (*dto.BatchRecordView, error) {
	var record dto.BatchRecordView
	path := fmt.Sprintf("/batches/%s/records", url.PathEscape(batchNumber))
	if err := c.sendRecord(ctx, http.MethodPost, path, sub, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) UpdateRecord(ctx context.Context, batchNumber, id string, sub Submission) (*dto.BatchRecordView, error) {
	var record dto.BatchRecordView
	path := fmt.Sprintf("/batches/%s/records/%s", url.PathEscape(batchNumber), url.PathEscape(id))
	if err := c.sendRecord(ctx, http.MethodPut, path, sub, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) DeleteRecord(ctx context.Context, batchNumber, id string) error {
	path := fmt.Sprintf("/batches/%s/records/%s", url.PathEscape(batchNumber), url.PathEscape(id))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) PostBatch(ctx context.Context, batchNumber string) (*models.Batch, error) {
	var batch models.Batch
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/batches/%s/post", url.PathEscape(batchNumber)), nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func (c *Client) UOMs(ctx context.Context) ([]models.UOM, error) {
	var rows []models.UOM
	err := c.doJSON(ctx, http.MethodGet, "/references/uom", nil, &rows)
	return rows, err
}

// Stores lists the selling locations.
func (c *Client) Stores(ctx context.Context) ([]models.Store, error) {
	var rows []models.Store
	err := c.doJSON(ctx, http.MethodGet, "/references/stores", nil, &rows)
	return rows, err
}

// Derive asks the service for the derived fields of a partial form.
func (c *Client) Derive(ctx context.Context, in schema.DerivedInput) (*schema.DerivedFields, error) {
	var out schema.DerivedFields
	if err := c.doJSON(ctx, http.MethodPost, "/derived-fields", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateStoreCodes splits codes into known and unknown stores.
func (c *Client) ValidateStoreCodes(ctx context.Context, codes []string) (*models.StoreCodeValidation, error) {
	var out models.StoreCodeValidation
	if err := c.doJSON(ctx, http.MethodPost, "/stores/validate", dto.ValidateStoresRequest{Codes: codes}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StoreListingTemplate downloads the store listing workbook template.
func (c *Client) StoreListingTemplate(ctx context.Context) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/store-listing/template", nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) sendRecord(ctx context.Context, method, path string, sub Submission, out interface{}) error {
	if sub.Image == nil {
		return c.doJSON(ctx, method, path, dto.SaveRecordRequest{RequestType: sub.RequestType, Payload: sub.Payload}, out)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("request_type", string(sub.RequestType)); err != nil {
		return err
	}
	if err := writer.WriteField("payload", string(sub.Payload)); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("image", sub.Image.Filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(sub.Image.Data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, method, path, body, writer.FormDataContentType())
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Title = env.Error.Title
		apiErr.Message = env.Error.Message
		apiErr.Fields = env.Error.Fields
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

var _ API = (*Client)(nil)
