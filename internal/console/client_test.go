package console

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api/v1", WithToken("secret"), WithHTTPClient(server.Client()))
}

func writeEnvelope(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClientCheckBarcodeUsed(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/barcodes/4800016644290/used", r.URL.Path)
		assert.Equal(t, testBatch, r.URL.Query().Get("batch_number"))
		assert.Equal(t, "change_description", r.URL.Query().Get("request_type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"data": models.NewGuardResult(models.GuardConflict, "Barcode Already Used", "in use"),
		})
	})

	result, err := client.CheckBarcodeUsed(context.Background(), "4800016644290", testBatch, models.RequestChangeDescription)
	require.NoError(t, err)
	assert.Equal(t, models.GuardConflict, result.Outcome)
	assert.True(t, result.Status)
	assert.Equal(t, "Barcode Already Used", result.Title)
}

func TestClientDecodesErrors(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": map[string]interface{}{"code": "EMPTY_BATCH", "title": "Cannot Post Batch", "message": "batch has no records to post", "status": 422},
		})
	})

	_, err := client.PostBatch(context.Background(), testBatch)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "EMPTY_BATCH", apiErr.Code)

	title, message := describe(err, "Error", "fallback")
	assert.Equal(t, "Cannot Post Batch", title)
	assert.Equal(t, "batch has no records to post", message)
}

func TestClientSaveRecordMultipart(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "new_item", r.FormValue("request_type"))
		assert.JSONEq(t, `{"barcode":"1234567890128"}`, r.FormValue("payload"))
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "front.png", header.Filename)
		assert.Equal(t, "png", string(data))
		writeEnvelope(w, http.StatusCreated, map[string]interface{}{"data": map[string]string{"id": "r-1"}})
	})

	record, err := client.SaveRecord(context.Background(), "NI-20260102-0001", Submission{
		RequestType: models.RequestNewItem,
		Payload:     json.RawMessage(`{"barcode":"1234567890128"}`),
		Image:       &dto.ImageUpload{Filename: "front.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", record.ID)
}

func TestClientDeleteNoContent(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/batches/"+testBatch+"/records/r-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, client.DeleteRecord(context.Background(), testBatch, "r-1"))
}

func TestClientGuardStatusOnlyReplies(t *testing.T) {
	cases := []struct {
		name    string
		body    map[string]interface{}
		outcome models.GuardOutcome
		title   string
	}{
		{name: "free barcode", body: map[string]interface{}{"status": false}, outcome: models.GuardOK},
		{name: "used barcode", body: map[string]interface{}{"status": true, "title": "Barcode Already Used", "message": "in use"}, outcome: models.GuardConflict, title: "Barcode Already Used"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusOK, map[string]interface{}{"data": tc.body})
			})

			result, err := client.CheckBarcodeUsed(context.Background(), "4800016644290", testBatch, models.RequestChangeDescription)
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, result.Outcome)
			assert.Equal(t, tc.title, result.Title)
		})
	}
}

func TestWorkflowSavesAfterStatusOnlyClearReply(t *testing.T) {
	saves := 0
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/barcodes/4800016644290/used":
			writeEnvelope(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{"status": false}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/batches/"+testBatch+"/records":
			saves++
			writeEnvelope(w, http.StatusCreated, map[string]interface{}{"data": map[string]string{"id": "r-1"}})
		default:
			writeEnvelope(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
		}
	})
	form, err := NewForm(nil, models.RequestChangeDescription)
	require.NoError(t, err)
	notifier := &notifierStub{}
	wf := NewWorkflow(client, form, notifier, testBatch, nil)
	fillDescription(form)

	require.NoError(t, wf.Submit())
	outcome, err := wf.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)
	assert.Equal(t, 1, saves)
	assert.True(t, notifier.last().ok)
}
