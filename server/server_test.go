package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipmark/clipmark/pkg/domain"
	"github.com/clipmark/clipmark/pkg/importer"
	"github.com/clipmark/clipmark/pkg/repository"
)

type sourceStoreMock struct {
	CreateSourceFunc       func(ctx context.Context, src *domain.ContentSource) error
	GetSourceFunc          func(ctx context.Context, id int64) (*domain.ContentSource, error)
	GetSourcesFunc         func(ctx context.Context, userID int64) ([]domain.ContentSource, error)
	UpdateSourceActiveFunc func(ctx context.Context, sourceID int64, active bool) error
	DeleteSourceFunc       func(ctx context.Context, id int64) error
}

func (m *sourceStoreMock) CreateSource(ctx context.Context, src *domain.ContentSource) error {
	return m.CreateSourceFunc(ctx, src)
}
func (m *sourceStoreMock) GetSource(ctx context.Context, id int64) (*domain.ContentSource, error) {
	return m.GetSourceFunc(ctx, id)
}
func (m *sourceStoreMock) GetSources(ctx context.Context, userID int64) ([]domain.ContentSource, error) {
	return m.GetSourcesFunc(ctx, userID)
}
func (m *sourceStoreMock) UpdateSourceActive(ctx context.Context, sourceID int64, active bool) error {
	return m.UpdateSourceActiveFunc(ctx, sourceID, active)
}
func (m *sourceStoreMock) DeleteSource(ctx context.Context, id int64) error {
	return m.DeleteSourceFunc(ctx, id)
}

type contentStoreMock struct {
	GetContentsFunc func(ctx context.Context, userID int64, limit, offset int) ([]domain.Content, error)
}

func (m *contentStoreMock) GetContents(ctx context.Context, userID int64, limit, offset int) ([]domain.Content, error) {
	return m.GetContentsFunc(ctx, userID, limit, offset)
}

type importLogStoreMock struct {
	GetImportLogsFunc func(ctx context.Context, sourceID int64, limit int) ([]domain.ImportLog, error)
}

func (m *importLogStoreMock) GetImportLogs(ctx context.Context, sourceID int64, limit int) ([]domain.ImportLog, error) {
	return m.GetImportLogsFunc(ctx, sourceID, limit)
}

type importerMock struct {
	ImportFromSourceFunc func(ctx context.Context, sourceID int64) importer.Result
}

func (m *importerMock) ImportFromSource(ctx context.Context, sourceID int64) importer.Result {
	return m.ImportFromSourceFunc(ctx, sourceID)
}

type configProviderMock struct{}

func (m *configProviderMock) GetServerConfig() (string, time.Duration) {
	return "127.0.0.1:0", 5 * time.Second
}

// testServer wires a Server with the given mocks behind an httptest server
func testServer(t *testing.T, p Params) *httptest.Server {
	t.Helper()
	p.Config = &configProviderMock{}
	p.Version = "test"
	srv := New(p)
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url string, uid string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestServer_Status(t *testing.T) {
	ts := testServer(t, Params{})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "test", status["version"])
}

func TestServer_Ping(t *testing.T) {
	ts := testServer(t, Params{})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/ping", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestServer_ListSources(t *testing.T) {
	sources := &sourceStoreMock{
		GetSourcesFunc: func(ctx context.Context, userID int64) ([]domain.ContentSource, error) {
			assert.Equal(t, int64(42), userID)
			return []domain.ContentSource{
				{ID: 1, UserID: 42, Name: "blog", URL: "http://example.com/feed", SourceType: domain.SourceTypeRSS, Active: true},
			}, nil
		},
	}
	ts := testServer(t, Params{Sources: sources})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/sources", "42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []sourceResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "blog", got[0].Name)
	assert.Equal(t, "rss", got[0].SourceType)
}

func TestServer_ListSources_NoIdentity(t *testing.T) {
	ts := testServer(t, Params{Sources: &sourceStoreMock{}})

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/v1/sources", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/v1/sources", "not-a-number", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_CreateSource(t *testing.T) {
	sources := &sourceStoreMock{
		CreateSourceFunc: func(ctx context.Context, src *domain.ContentSource) error {
			assert.Equal(t, int64(42), src.UserID)
			assert.True(t, src.Active, "new sources start active")
			src.ID = 7
			return nil
		},
	}
	ts := testServer(t, Params{Sources: sources})

	payload := []byte(`{"name":"blog","url":"http://example.com/feed","source_type":"rss"}`)
	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/v1/sources", "42", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got sourceResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, int64(7), got.ID)
	assert.True(t, got.Active)
}

func TestServer_CreateSource_Validation(t *testing.T) {
	ts := testServer(t, Params{Sources: &sourceStoreMock{}})

	tbl := []struct {
		name    string
		payload string
	}{
		{"missing name", `{"url":"http://example.com","source_type":"rss"}`},
		{"missing url", `{"name":"blog","source_type":"rss"}`},
		{"bad url", `{"name":"blog","url":"not a url","source_type":"rss"}`},
		{"bad source type", `{"name":"blog","url":"http://example.com","source_type":"podcast"}`},
		{"invalid json", `{{{`},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/v1/sources", "42", []byte(tt.payload))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServer_GetSource(t *testing.T) {
	sources := &sourceStoreMock{
		GetSourceFunc: func(ctx context.Context, id int64) (*domain.ContentSource, error) {
			switch id {
			case 1:
				return &domain.ContentSource{ID: 1, UserID: 42, Name: "mine"}, nil
			case 2:
				return &domain.ContentSource{ID: 2, UserID: 99, Name: "theirs"}, nil
			default:
				return nil, repository.ErrNotFound
			}
		},
	}
	ts := testServer(t, Params{Sources: sources})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/sources/1", "42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got sourceResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "mine", got.Name)

	// another user's source is indistinguishable from a missing one
	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/v1/sources/2", "42", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/v1/sources/12345", "42", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/v1/sources/abc", "42", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_DeleteSource(t *testing.T) {
	deleted := int64(0)
	sources := &sourceStoreMock{
		GetSourceFunc: func(ctx context.Context, id int64) (*domain.ContentSource, error) {
			return &domain.ContentSource{ID: id, UserID: 42}, nil
		},
		DeleteSourceFunc: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	ts := testServer(t, Params{Sources: sources})

	resp, _ := doRequest(t, http.MethodDelete, ts.URL+"/api/v1/sources/5", "42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(5), deleted)
}

func TestServer_ActivateDeactivate(t *testing.T) {
	var lastActive *bool
	sources := &sourceStoreMock{
		GetSourceFunc: func(ctx context.Context, id int64) (*domain.ContentSource, error) {
			return &domain.ContentSource{ID: id, UserID: 42, Active: false}, nil
		},
		UpdateSourceActiveFunc: func(ctx context.Context, sourceID int64, active bool) error {
			lastActive = &active
			return nil
		},
	}
	ts := testServer(t, Params{Sources: sources})

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/v1/sources/5/activate", "42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, lastActive)
	assert.True(t, *lastActive)
	var got sourceResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Active)

	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/v1/sources/5/deactivate", "42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, *lastActive)
}

func TestServer_ImportNow(t *testing.T) {
	sources := &sourceStoreMock{
		GetSourceFunc: func(ctx context.Context, id int64) (*domain.ContentSource, error) {
			return &domain.ContentSource{ID: id, UserID: 42, Active: true}, nil
		},
	}
	imp := &importerMock{
		ImportFromSourceFunc: func(ctx context.Context, sourceID int64) importer.Result {
			assert.Equal(t, int64(5), sourceID)
			return importer.Result{Status: domain.ImportStatusSuccess, ItemsImported: 3, ItemsSkipped: 1}
		},
	}
	ts := testServer(t, Params{Sources: sources, Importer: imp})

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/v1/sources/5/import", "42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got importer.Result
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, domain.ImportStatusSuccess, got.Status)
	assert.Equal(t, 3, got.ItemsImported)
	assert.Equal(t, 1, got.ItemsSkipped)
}

func TestServer_ImportNow_Inactive(t *testing.T) {
	sources := &sourceStoreMock{
		GetSourceFunc: func(ctx context.Context, id int64) (*domain.ContentSource, error) {
			return &domain.ContentSource{ID: id, UserID: 42, Active: false}, nil
		},
	}
	imp := &importerMock{
		ImportFromSourceFunc: func(ctx context.Context, sourceID int64) importer.Result {
			t.Error("importer must not run for an inactive source")
			return importer.Result{}
		},
	}
	ts := testServer(t, Params{Sources: sources, Importer: imp})

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/v1/sources/5/import", "42", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "source is not active")
}

func TestServer_ImportNow_ForeignSource(t *testing.T) {
	sources := &sourceStoreMock{
		GetSourceFunc: func(ctx context.Context, id int64) (*domain.ContentSource, error) {
			return &domain.ContentSource{ID: id, UserID: 99, Active: true}, nil
		},
	}
	ts := testServer(t, Params{Sources: sources, Importer: &importerMock{}})

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/v1/sources/5/import", "42", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ImportLogs(t *testing.T) {
	now := time.Now().UTC()
	sources := &sourceStoreMock{
		GetSourceFunc: func(ctx context.Context, id int64) (*domain.ContentSource, error) {
			return &domain.ContentSource{ID: id, UserID: 42}, nil
		},
	}
	logs := &importLogStoreMock{
		GetImportLogsFunc: func(ctx context.Context, sourceID int64, limit int) ([]domain.ImportLog, error) {
			assert.Equal(t, int64(5), sourceID)
			assert.Equal(t, 10, limit)
			return []domain.ImportLog{
				{ID: 2, SourceID: 5, Status: domain.ImportStatusSuccess, ItemsImported: 3, StartedAt: now, CompletedAt: &now},
			}, nil
		},
	}
	ts := testServer(t, Params{Sources: sources, Logs: logs})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/sources/5/logs?limit=10", "42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []domain.ImportLog
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, domain.ImportStatusSuccess, got[0].Status)
}

func TestServer_ListContents(t *testing.T) {
	contents := &contentStoreMock{
		GetContentsFunc: func(ctx context.Context, userID int64, limit, offset int) ([]domain.Content, error) {
			assert.Equal(t, int64(42), userID)
			assert.Equal(t, 20, limit)
			assert.Equal(t, 40, offset)
			return []domain.Content{{ID: 1, UserID: 42, Title: "item"}}, nil
		},
	}
	ts := testServer(t, Params{Contents: contents})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/contents?limit=20&offset=40", "42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []domain.Content
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "item", got[0].Title)
}

func TestServer_ListContents_DefaultPaging(t *testing.T) {
	contents := &contentStoreMock{
		GetContentsFunc: func(ctx context.Context, userID int64, limit, offset int) ([]domain.Content, error) {
			assert.Equal(t, 50, limit)
			assert.Equal(t, 0, offset)
			return nil, nil
		},
	}
	ts := testServer(t, Params{Contents: contents})

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/v1/contents?limit=bogus&offset=-3", "42", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Run_GracefulShutdown(t *testing.T) {
	srv := New(Params{Config: &configProviderMock{}, Version: "test"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
