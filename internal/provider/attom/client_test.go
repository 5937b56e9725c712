package attom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSnapshot(t *testing.T) {
	var gotPath, gotKey string
	var gotQuery map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"property": [{"identifier": {"attomId": 1}}, {"identifier": {"attomId": 2}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	items, err := c.SearchSnapshot(context.Background(), 25.7617, -80.1918, 5, 50)
	require.NoError(t, err)

	assert.Len(t, items, 2)
	assert.Equal(t, "/property/snapshot", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, []string{"5"}, gotQuery["radius"])
	assert.Equal(t, []string{"50"}, gotQuery["pagesize"])
}

func TestSearchSnapshotCapsPageSize(t *testing.T) {
	var gotPageSize string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPageSize = r.URL.Query().Get("pagesize")
		w.Write([]byte(`{"property": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.SearchSnapshot(context.Background(), 0, 0, 5, 5000)
	require.NoError(t, err)
	assert.Equal(t, "100", gotPageSize)
}

func TestDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/property/detail", r.URL.Path)
		assert.Equal(t, "158209187", r.URL.Query().Get("attomid"))
		w.Write([]byte(`{"property": [{"summary": {"propclass": "Residential"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	item, err := c.Detail(context.Background(), "158209187")
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": {"propclass": "Residential"}}`, string(item))
}

func TestDetailEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"property": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.Detail(context.Background(), "158209187")
	require.Error(t, err)
}

func TestAVM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/avm/detail", r.URL.Path)
		assert.Equal(t, "123 Ocean Dr", r.URL.Query().Get("address1"))
		assert.Equal(t, "Miami, FL 33139", r.URL.Query().Get("address2"))
		w.Write([]byte(`{"property": [{"avm": {"amount": {"value": 2500000}}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	item, err := c.AVM(context.Background(), "123 Ocean Dr", "Miami, FL 33139")
	require.NoError(t, err)
	assert.Contains(t, string(item), "2500000")
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"property": [{"identifier": {"attomId": 1}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	items, err := c.SearchSnapshot(context.Background(), 0, 0, 5, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key")
	_, err := c.SearchSnapshot(context.Background(), 0, 0, 5, 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are not retried")
}
