package queryexec

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/and161185/node-watchdog/internal/config"
	"github.com/and161185/node-watchdog/model"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestExecutor(t *testing.T, handler http.HandlerFunc) (*Executor, *httptest.Server) {
	t.Helper()

	router := chi.NewRouter()
	router.Get("/api/v1/query", handler)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		PromURL:       srv.URL,
		InstanceID:    "123456",
		APIKey:        "secret",
		ClientTimeout: 2,
		Logger:        zap.NewNop().Sugar(),
	}
	return New(cfg), srv
}

func TestExecute_Scalar(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "123456", user)
		require.Equal(t, "secret", pass)
		require.Equal(t, "node_load1", r.URL.Query().Get("query"))

		fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[
			{"metric":{},"value":[1700000000,"1.25"]}]}}`)
	})

	raw, err := exec.Execute(context.Background(), model.MetricQuery{Key: "load1", Expr: "node_load1", Kind: model.Scalar})
	require.NoError(t, err)
	require.Len(t, raw.Points, 1)
	require.InDelta(t, 1.25, raw.Points[0].Value, 1e-9)
}

func TestExecute_VectorLabels(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[
			{"metric":{"mountpoint":"/"},"value":[1700000000,"95"]},
			{"metric":{"mountpoint":"/var"},"value":[1700000000,"60"]}]}}`)
	})

	raw, err := exec.Execute(context.Background(), model.MetricQuery{Key: "fs", Expr: "fs_usage", Kind: model.Vector})
	require.NoError(t, err)
	require.Len(t, raw.Points, 2)
	require.Equal(t, "/", raw.Points[0].Labels["mountpoint"])
}

func TestExecute_AuthFailureNotRetried(t *testing.T) {
	var calls int32
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := exec.Execute(context.Background(), model.MetricQuery{Key: "up", Expr: "up"})
	require.Error(t, err)

	var qe *Error
	require.True(t, errors.As(err, &qe))
	require.Equal(t, AuthFailure, qe.Kind)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestExecute_ServerErrorRetriedOnce(t *testing.T) {
	old := retryDelay
	retryDelay = 10 * time.Millisecond
	defer func() { retryDelay = old }()

	var calls int32
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[
			{"metric":{},"value":[1700000000,"1"]}]}}`)
	})

	raw, err := exec.Execute(context.Background(), model.MetricQuery{Key: "up", Expr: "up"})
	require.NoError(t, err)
	require.Len(t, raw.Points, 1)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestExecute_MalformedResponses(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"broken-json", `{"status":`},
		{"api-error", `{"status":"error","error":"bad query"}`},
		{"bad-value", `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,"oops"]}]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			})

			_, err := exec.Execute(context.Background(), model.MetricQuery{Key: "up", Expr: "up"})
			var qe *Error
			require.True(t, errors.As(err, &qe))
			require.Equal(t, MalformedResponse, qe.Kind)
		})
	}
}

func TestExecute_Timeout(t *testing.T) {
	old := retryDelay
	retryDelay = time.Millisecond
	defer func() { retryDelay = old }()

	var calls int32
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := exec.Execute(ctx, model.MetricQuery{Key: "up", Expr: "up"})
	var qe *Error
	require.True(t, errors.As(err, &qe))
	require.Equal(t, Timeout, qe.Kind)
}

func TestExecute_EmptyExpression(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := exec.Execute(context.Background(), model.MetricQuery{Key: "x"})
	var qe *Error
	require.True(t, errors.As(err, &qe))
	require.Equal(t, MalformedResponse, qe.Kind)
}

func TestRetriable(t *testing.T) {
	require.True(t, Retriable(&Error{Kind: Network}))
	require.True(t, Retriable(&Error{Kind: Timeout}))
	require.False(t, Retriable(&Error{Kind: AuthFailure}))
	require.False(t, Retriable(&Error{Kind: MalformedResponse}))
	require.False(t, Retriable(errors.New("plain")))
}
