package supply

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileNFT = common.HexToAddress("0x98ca78e89dd1abe48a53dee5799f24cc1a462f2d")

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewFetcher(Config{Endpoint: ts.URL + "/api", APIKey: "k", Contract: profileNFT, Timeout: 5 * time.Second}, nil)
}

func TestFetchOK(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api" || q.Get("module") != "stats" || q.Get("action") != "tokensupply" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if q.Get("contractaddress") != profileNFT.Hex() || q.Get("apikey") != "k" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":"31337"}`))
	})

	res, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, uint64(31337), res.Total)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestFetchNumericResult(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": 42}`))
	})

	res, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, uint64(42), res.Total)
}

func TestFetchNon200IsDegraded(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`upstream down`))
	})

	res, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "status 503", res.Reason)
	assert.Zero(t, res.Total)
}

func TestFetchAPIErrorEnvelope(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Invalid API Key"}`))
	})

	res, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "Invalid API Key")
}

func TestFetchCanceled(t *testing.T) {
	f := NewFetcher(Config{Endpoint: "http://127.0.0.1:1/api", Contract: profileNFT}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchCanceledInFlight(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"result":"1"}`))
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseBody(t *testing.T) {
	cases := []struct {
		body string
		ok   bool
		want uint64
	}{
		{`{"result":"100"}`, true, 100},
		{`{"result":" 7 "}`, true, 7},
		{`{"result":"1.5"}`, false, 0},
		{`{"result":null}`, false, 0},
		{`{}`, false, 0},
		{`not json`, false, 0},
	}
	for _, tc := range cases {
		res := parseBody([]byte(tc.body))
		assert.Equal(t, tc.ok, res.OK, tc.body)
		assert.Equal(t, tc.want, res.Total, tc.body)
	}
}
