package engines

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgate/docgate/internal/types"
)

func verdictServer(t *testing.T, verdict string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"verdict":%q}`, verdict)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuild_Rejections(t *testing.T) {
	_, err := Build([]Config{{URL: "http://x"}})
	assert.Error(t, err, "missing name")

	_, err = Build([]Config{{Name: "av"}})
	assert.Error(t, err, "missing url")

	_, err = Build([]Config{{Name: "av", URL: "http://x", Kind: "telepathy"}})
	assert.Error(t, err, "unknown kind")
}

func TestSubmitEngine_PostsArtifact(t *testing.T) {
	var gotBody []byte
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/scan", r.URL.Path)
		gotKey = r.Header.Get("X-API-Key")
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"verdict":"clean"}`)
	}))
	defer srv.Close()

	es, err := Build([]Config{{Name: "av", Kind: KindSubmit, URL: srv.URL, APIKey: "k1"}})
	require.NoError(t, err)

	v, err := es[0].Scan(context.Background(), []byte("artifact bytes"), "cafe")
	require.NoError(t, err)
	assert.Equal(t, "clean", v.Value)
	assert.Equal(t, "artifact bytes", string(gotBody))
	assert.Equal(t, "k1", gotKey)
}

func TestLookupEngine_QueriesByHash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"verdict":"malicious"}`)
	}))
	defer srv.Close()

	es, err := Build([]Config{{Name: "rep", Kind: KindLookup, URL: srv.URL}})
	require.NoError(t, err)

	v, err := es[0].Scan(context.Background(), []byte("never sent"), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "malicious", v.Value)
	assert.Equal(t, "/lookup/deadbeef", gotPath)
}

func TestEngine_NormalizesVerdicts(t *testing.T) {
	cases := map[string]string{
		"clean": "clean", "OK": "clean", "benign": "clean",
		"suspicious": "suspicious",
		"malicious":  "malicious", "Infected": "malicious",
	}
	for wire, want := range cases {
		srv := verdictServer(t, wire)
		es, err := Build([]Config{{Name: "av", URL: srv.URL}})
		require.NoError(t, err)
		v, err := es[0].Scan(context.Background(), nil, "")
		require.NoError(t, err)
		assert.Equal(t, want, v.Value, "wire verdict %q", wire)
	}
}

func TestEngine_UnrecognizedVerdictIsAnError(t *testing.T) {
	srv := verdictServer(t, "probably fine")
	es, err := Build([]Config{{Name: "av", URL: srv.URL}})
	require.NoError(t, err)
	_, err = es[0].Scan(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestAdapter_OneResultPerEngineInOrder(t *testing.T) {
	clean := verdictServer(t, "clean")
	susp := verdictServer(t, "suspicious")
	es, err := Build([]Config{
		{Name: "first", URL: clean.URL},
		{Name: "second", URL: susp.URL},
	})
	require.NoError(t, err)

	results := NewAdapter(es, time.Second).ScanAll(context.Background(), []byte("x"), "hash")
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].EngineName)
	assert.Equal(t, types.VerdictClean, results[0].Verdict)
	assert.Equal(t, "second", results[1].EngineName)
	assert.Equal(t, types.VerdictSuspicious, results[1].Verdict)
	assert.NotEmpty(t, results[0].RawDigest)
}

func TestAdapter_TimeoutRecordsUnknown(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		fmt.Fprint(w, `{"verdict":"clean"}`)
	}))
	defer slow.Close()

	es, err := Build([]Config{{Name: "sloth", URL: slow.URL, Timeout: 50 * time.Millisecond}})
	require.NoError(t, err)

	start := time.Now()
	results := NewAdapter(es, time.Second).ScanAll(context.Background(), []byte("x"), "hash")
	require.Len(t, results, 1)
	assert.Equal(t, types.VerdictUnknown, results[0].Verdict)
	assert.NotEmpty(t, results[0].Err)
	assert.Less(t, time.Since(start), time.Second, "the adapter must settle, not block")
}

func TestAdapter_GlobalDeadlineCancelsInFlight(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	es, err := Build([]Config{{Name: "sloth", URL: slow.URL, Timeout: 10 * time.Second}})
	require.NoError(t, err)

	results := NewAdapter(es, 50*time.Millisecond).ScanAll(context.Background(), []byte("x"), "hash")
	require.Len(t, results, 1)
	assert.Equal(t, types.VerdictUnknown, results[0].Verdict)
}

func TestAdapter_RetriesOnceOnTransportFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Kill the connection mid-response to force a transport error.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		fmt.Fprint(w, `{"verdict":"clean"}`)
	}))
	defer srv.Close()

	es, err := Build([]Config{{Name: "flaky", URL: srv.URL}})
	require.NoError(t, err)

	results := NewAdapter(es, 5*time.Second).ScanAll(context.Background(), []byte("x"), "hash")
	require.Len(t, results, 1)
	assert.Equal(t, types.VerdictClean, results[0].Verdict)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAdapter_NoRetryOnDefinitiveAnswer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"verdict":"malicious"}`)
	}))
	defer srv.Close()

	es, err := Build([]Config{{Name: "av", URL: srv.URL}})
	require.NoError(t, err)

	results := NewAdapter(es, time.Second).ScanAll(context.Background(), []byte("x"), "hash")
	assert.Equal(t, types.VerdictMalicious, results[0].Verdict)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAdapter_NoEngines(t *testing.T) {
	results := NewAdapter(nil, time.Second).ScanAll(context.Background(), []byte("x"), "hash")
	assert.Empty(t, results)
}
