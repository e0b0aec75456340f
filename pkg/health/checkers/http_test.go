package checkers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func statusServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPChecker(t *testing.T) {
	t.Run("uses URL as name when name is empty", func(t *testing.T) {
		srv := statusServer(t, http.StatusOK)
		assert.Equal(t, srv.URL, NewHTTPChecker(srv.URL, "").Name())
		assert.Equal(t, "bridge", NewHTTPChecker(srv.URL, "bridge").Name())
	})

	tests := []struct {
		name    string
		code    int
		strict  bool
		wantErr bool
	}{
		{"200 lenient", http.StatusOK, false, false},
		{"204 strict", http.StatusNoContent, true, false},
		{"404 lenient", http.StatusNotFound, false, false},
		{"404 strict", http.StatusNotFound, true, true},
		{"503 lenient", http.StatusServiceUnavailable, false, true},
		{"500 strict", http.StatusInternalServerError, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := statusServer(t, tt.code)
			var opts []HTTPOption
			if tt.strict {
				opts = append(opts, Strict())
			}

			err := NewHTTPChecker(srv.URL, "test", opts...).Check(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("unreachable endpoint", func(t *testing.T) {
		err := NewHTTPChecker("http://127.0.0.1:1", "down").Check(context.Background())
		assert.Error(t, err)
	})

	t.Run("custom client timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		c := NewHTTPChecker(srv.URL, "slow", WithClient(&http.Client{Timeout: 50 * time.Millisecond}))
		assert.Error(t, c.Check(context.Background()))
	})
}

type readyFunc func() error

func (f readyFunc) Ready() error { return f() }

func TestReadyChecker(t *testing.T) {
	c := NewReadyChecker("whatsapp", readyFunc(func() error { return nil }))
	assert.Equal(t, "whatsapp", c.Name())
	assert.NoError(t, c.Check(context.Background()))

	notReady := errors.New("not connected")
	c = NewReadyChecker("whatsapp", readyFunc(func() error { return notReady }))
	assert.ErrorIs(t, c.Check(context.Background()), notReady)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Check(ctx), context.Canceled)
}
