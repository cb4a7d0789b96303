package apiclient_test

import (
	"context"
	"encoding/json"
	"github.com/stripesight/stripesight/internal/apiclient"
	"github.com/stripesight/stripesight/internal/investigation"
	"github.com/stripesight/stripesight/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_Launch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/investigations", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer func() {
			require.NoError(t, file.Close())
		}()
		require.Equal(t, "tigress.jpg", header.Filename)
		payload, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "fake image bytes", string(payload))
		require.Equal(t, "Kanha NP", r.FormValue("location"))
		require.Equal(t, "seen near waterhole", r.FormValue("notes"))

		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"investigation_id": "inv-42"}))
	}))
	t.Cleanup(server.Close)

	client := apiclient.New(server.URL, testhelpers.NewLogger(io.Discard))
	id, err := client.Launch(context.Background(), apiclient.LaunchRequest{
		Image:    strings.NewReader("fake image bytes"),
		Filename: "tigress.jpg",
		Location: "Kanha NP",
		Notes:    "seen near waterhole",
	})
	require.NoError(t, err)
	require.Equal(t, "inv-42", id)
}

func TestClient_LaunchValidation(t *testing.T) {
	client := apiclient.New("http://localhost:0", testhelpers.NewLogger(io.Discard))

	_, err := client.Launch(context.Background(), apiclient.LaunchRequest{})
	require.ErrorIs(t, err, apiclient.ErrNoImage)
}

func TestClient_LaunchRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no tiger visible in image"})
	}))
	t.Cleanup(server.Close)

	client := apiclient.New(server.URL, testhelpers.NewLogger(io.Discard))
	_, err := client.Launch(context.Background(), apiclient.LaunchRequest{
		Image: strings.NewReader("not a tiger"),
	})
	require.ErrorIs(t, err, apiclient.ErrLaunchRejected)
	require.ErrorContains(t, err, "no tiger visible in image")
}

func TestClient_Snapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/investigations/inv-42", r.URL.Path)
		_ = json.NewEncoder(w).Encode(investigation.Snapshot{
			Status: "running",
			Steps: []investigation.SnapshotStep{
				{StepType: "upload_and_parse", Status: "completed"},
				{StepType: "tiger_detection", Status: "running"},
			},
		})
	}))
	t.Cleanup(server.Close)

	client := apiclient.New(server.URL, testhelpers.NewLogger(io.Discard))
	snapshot, err := client.Snapshot(context.Background(), "inv-42")
	require.NoError(t, err)
	require.Equal(t, "running", snapshot.Status)
	require.Len(t, snapshot.Steps, 2)
	require.Equal(t, "tiger_detection", snapshot.Steps[1].StepType)
}

func TestClient_SnapshotErrors(t *testing.T) {
	tests := []struct {
		name            string
		investigationID string
		status          int
		wantErr         error
	}{
		{
			name:            "no bound ID",
			investigationID: "",
			status:          http.StatusOK,
			wantErr:         apiclient.ErrNoInvestigation,
		},
		{
			name:            "unknown investigation",
			investigationID: "inv-missing",
			status:          http.StatusNotFound,
			wantErr:         apiclient.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(server.Close)

			client := apiclient.New(server.URL, testhelpers.NewLogger(io.Discard))
			_, err := client.Snapshot(context.Background(), tt.investigationID)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_RegenerateReport(t *testing.T) {
	var gotAudience string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/investigations/inv-42/report", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotAudience = body["audience"]
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	client := apiclient.New(server.URL, testhelpers.NewLogger(io.Discard))
	require.NoError(t, client.RegenerateReport(context.Background(), "inv-42", "rangers"))
	require.Equal(t, "rangers", gotAudience)

	require.ErrorIs(t,
		client.RegenerateReport(context.Background(), "", "rangers"),
		apiclient.ErrNoInvestigation)
}
