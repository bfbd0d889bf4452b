package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		var req extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "report text", req.Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"metrics":{"Fasting Glucose":"130 mg/dL","hba1c":6.1,"blood_pressure":"140/90","note":null}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	got, err := c.Extract(context.Background(), "report text")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Fasting Glucose": "130 mg/dL",
		"hba1c":           "6.1",
		"blood_pressure":  "140/90",
	}, got)
}

func TestClientExtract_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unreadable scan"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := c.Extract(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable scan")
}

func TestParseLines(t *testing.T) {
	got := ParseLines("Lab Report\nFasting Glucose: 130 mg/dL\nTSH = 2.1\nHbA1c:\nBlood Pressure: 120/80\nTSH: 9\n")
	assert.Equal(t, map[string]string{
		"Fasting Glucose": "130 mg/dL",
		"TSH":             "2.1",
		"Blood Pressure":  "120/80",
	}, got)
}

type failing struct{}

func (failing) Extract(context.Context, string) (map[string]string, error) {
	return nil, errors.New("down")
}

func TestFallback(t *testing.T) {
	f := Fallback{Primary: failing{}, Logger: zap.NewNop()}
	got, err := f.Extract(context.Background(), "vitamin d: 18")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"vitamin d": "18"}, got)

	got, err = LineParser{}.Extract(context.Background(), "b12: 150")
	require.NoError(t, err)
	assert.Equal(t, "150", got["b12"])
}
