package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return strconv.Itoa(port)
}

func TestAwaitAuthCode(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready := func() {
		go func() {
			base := "http://localhost:" + port + "/callback"
			resp, err := http.Get(base + "?state=wrong&code=bad")
			if err == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			resp, err = http.Get(base + "?state=s1&code=good")
			if err == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}()
	}

	code, err := awaitAuthCode(ctx, port, "s1", ready)
	require.NoError(t, err)
	assert.Equal(t, "good", code)
}

func TestAwaitAuthCodeDenied(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready := func() {
		go func() {
			resp, err := http.Get("http://localhost:" + port + "/callback?error=access_denied")
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	_, err := awaitAuthCode(ctx, port, "s1", ready)
	assert.ErrorContains(t, err, "access_denied")
}

func TestAwaitAuthCodeTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := awaitAuthCode(ctx, freePort(t), "s1", func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
