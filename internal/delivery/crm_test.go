package delivery

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

	"leadpilot/internal/lead"
	"leadpilot/internal/routing"
)

func TestCRMClient_WriteManual(t *testing.T) {
	var gotPath, gotAuth string
	var gotFields map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var req crmWriteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotFields = req.Fields
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCRMClient(srv.URL, "test-key", 5*time.Second)
	err := c.WriteManual(context.Background(), "lead-9", routing.ManualDelivery{
		NetworkURL: "https://network.example/in/dana",
		Text:       "=== INTRO ===\nHello {{FIRST_NAME}}",
	})
	require.NoError(t, err)

	assert.Equal(t, "/leads/lead-9/fields", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "ready_for_manual", gotFields["outreach_status"])
	assert.Contains(t, gotFields["outreach_text"], "{{FIRST_NAME}}")
}

func TestCRMClient_WriteManualServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCRMClient(srv.URL, "k", time.Second)
	err := c.WriteManual(context.Background(), "lead-9", routing.ManualDelivery{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
}

func TestCRMClient_ReadLead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leads/lead-9", r.URL.Path)
		json.NewEncoder(w).Encode(lead.Context{
			ID: "lead-9", Name: "Dana Reyes", Company: "Northwind", Email: "dana@northwind.example",
		})
	}))
	defer srv.Close()

	c := NewCRMClient(srv.URL, "k", time.Second)
	lc, err := c.ReadLead(context.Background(), "lead-9")
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", lc.Name)
	assert.True(t, lc.HasValidEmail())
}

func TestCRMClient_ReadLeadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewCRMClient(srv.URL, "k", time.Second)
	_, err := c.ReadLead(context.Background(), "missing")
	assert.Error(t, err)
}
