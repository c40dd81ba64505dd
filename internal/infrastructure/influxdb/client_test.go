package influxdb_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/influxdb"
)

// fakeServer answers /ping and /api/v2/write the way InfluxDB 2.x does.
type fakeServer struct {
	mu       sync.Mutex
	bodies   []string
	queries  []string
	tokens   []string
	rejectAs int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		f.queries = append(f.queries, r.URL.RawQuery)
		f.tokens = append(f.tokens, r.Header.Get("Authorization"))
		reject := f.rejectAs
		f.mu.Unlock()

		if reject != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(reject)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"unable to parse line"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeServer) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Backend: config.BackendV2,
		URL:     url,
		Token:   "test-token",
		Org:     "home",
		Bucket:  "sensors",
	}
}

func connect(t *testing.T, fake *fakeServer) *influxdb.Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect(t *testing.T) {
	client := connect(t, &fakeServer{})
	assert.True(t, client.IsConnected())
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestConnect_MissingBucket(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Bucket = ""
	_, err := influxdb.Connect(context.Background(), cfg)
	assert.ErrorIs(t, err, influxdb.ErrConnectionFailed)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := influxdb.Connect(context.Background(), testConfig("http://127.0.0.1:1"))
	assert.ErrorIs(t, err, influxdb.ErrConnectionFailed)
}

func TestWriteLine(t *testing.T) {
	fake := &fakeServer{}
	client := connect(t, fake)

	line := "weather,location=home temperature=69.8,humidity=45.5"
	require.NoError(t, client.WriteLine(context.Background(), line))

	bodies := fake.written()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], line)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.queries[0], "bucket=sensors")
	assert.Contains(t, fake.queries[0], "org=home")
	assert.Equal(t, "Token test-token", fake.tokens[0])
}

func TestWriteLine_Rejected(t *testing.T) {
	fake := &fakeServer{rejectAs: http.StatusBadRequest}
	client := connect(t, fake)

	err := client.WriteLine(context.Background(), "not line protocol")
	assert.ErrorIs(t, err, influxdb.ErrWriteFailed)
	assert.Len(t, fake.written(), 1, "rejected writes are not retried")
}

func TestWriteLine_AfterClose(t *testing.T) {
	client := connect(t, &fakeServer{})
	require.NoError(t, client.Close())

	assert.ErrorIs(t, client.WriteLine(context.Background(), "m f=1"), influxdb.ErrNotConnected)
	assert.ErrorIs(t, client.HealthCheck(context.Background()), influxdb.ErrNotConnected)
}
