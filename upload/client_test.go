package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/model"
)

func TestClient_Upload(t *testing.T) {
	var got model.Payload
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"Success","warnings":["w1"],"errors":[]}`))
	}))
	defer srv.Close()

	c := New(zerolog.Nop(), srv.URL)
	resp, err := c.Upload(context.Background(), &model.Payload{
		Target: "token",
		Results: model.Results{Cases: []model.TestCase{
			{Suite: "A", Name: "t1", Result: model.ResultPass},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.True(t, resp.Success)
	require.Equal(t, "Success", resp.Message)
	require.Equal(t, []string{"w1"}, resp.Warnings)
	require.Empty(t, resp.Errors)

	require.Equal(t, "token", got.Target)
	require.Len(t, got.Results.Cases, 1)
	require.Equal(t, "t1", got.Results.Cases[0].Name)
}

func TestClient_UploadErrorStatusIsNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad target", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(zerolog.Nop(), srv.URL)
	_, err := c.Upload(context.Background(), &model.Payload{Target: "bad"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
	require.Contains(t, err.Error(), "bad target")
	require.Equal(t, 1, calls)
}

func TestClient_UploadUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := New(zerolog.Nop(), srv.URL).Upload(context.Background(), &model.Payload{Target: "t"})
	require.Error(t, err)
}

func TestClient_UploadCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(zerolog.Nop(), srv.URL, WithHTTPClient(srv.Client())).Upload(ctx, &model.Payload{Target: "t"})
	require.Error(t, err)
}
