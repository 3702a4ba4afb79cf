package retriever_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deep-rent/jwkstack/internal/retriever"
)

func TestHTTPRetrieverSuccess(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"keys":[]}`)
	}))
	defer srv.Close()

	r := retriever.NewHTTP(retriever.WithHeader("User-Agent", "jwkstack-test"))
	body, err := r.Retrieve(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, `{"keys":[]}`, string(body))
	assert.Equal(t, "jwkstack-test", gotUA)
}

func TestHTTPRetrieverNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := retriever.NewHTTP()
	_, err := r.Retrieve(context.Background(), srv.URL)

	require.Error(t, err)
	assert.ErrorContains(t, err, "unexpected status")
}

func TestHTTPRetrieverSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	r := retriever.NewHTTP(retriever.WithSizeLimit(10))
	_, err := r.Retrieve(context.Background(), srv.URL)

	require.Error(t, err)
	assert.ErrorContains(t, err, "size limit")
}

func TestHTTPRetrieverTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	r := retriever.NewHTTP(
		retriever.WithConnectTimeout(5*time.Millisecond),
		retriever.WithReadTimeout(5*time.Millisecond),
	)
	_, err := r.Retrieve(context.Background(), srv.URL)

	require.Error(t, err)
}

func TestFileRetrieverSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwks.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"keys":[]}`), 0o600))

	r := retriever.NewFile()
	body, err := r.Retrieve(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, `{"keys":[]}`, string(body))
}

func TestFileRetrieverMissing(t *testing.T) {
	r := retriever.NewFile()
	_, err := r.Retrieve(context.Background(), filepath.Join(t.TempDir(), "missing.json"))

	require.Error(t, err)
	assert.ErrorContains(t, err, "stat file")
}

func TestFileRetrieverDirectory(t *testing.T) {
	r := retriever.NewFile()
	_, err := r.Retrieve(context.Background(), t.TempDir())

	require.Error(t, err)
	assert.ErrorContains(t, err, "not regular")
}

func TestRetrieverFunc(t *testing.T) {
	r := retriever.RetrieverFunc(func(_ context.Context, loc string) ([]byte, error) {
		return []byte(loc), nil
	})
	body, err := r.Retrieve(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}
