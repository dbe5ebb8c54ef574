package net

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMissingCABundle(t *testing.T) {
	_, err := New(Config{CABundlePath: "/does/not/exist.pem"})
	assert.Error(t, err)
}

func TestRequestHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	client, err := New(Config{})
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.GetURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.RespBody))
	assert.True(t, strings.HasPrefix(gotUA, userAgentBase), "User-Agent %q", gotUA)
	assert.Equal(t, locale, gotLang)

	// The dumps capture the raw exchange for display.
	assert.NotEmpty(t, resp.ReqDump)
	assert.NotEmpty(t, resp.RespDump)
}

func TestPostURL(t *testing.T) {
	var gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, err := New(Config{})
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.PostURL(context.Background(), srv.URL, []byte(`{"protected": "x"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Response.StatusCode)
	assert.Equal(t, "application/jose+json", gotContentType)
	assert.Equal(t, `{"protected": "x"}`, gotBody)
}

func TestHeadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "HEAD", r.Method)
		w.Header().Set("Replay-Nonce", "head-nonce")
	}))
	defer srv.Close()

	client, err := New(Config{})
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.HeadURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "head-nonce", resp.Header.Get("Replay-Nonce"))
}

func TestDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := New(Config{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.GetURL(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestDoContextDeadlineWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := New(Config{Timeout: time.Hour})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = client.GetURL(ctx, srv.URL)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
