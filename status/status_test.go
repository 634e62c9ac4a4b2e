package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dealerops/featuresync/batch"
)

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestRunsEndpoint(t *testing.T) {
	// WHAT: /runs serves the latest snapshot per dealership, sorted by id,
	// and later snapshots replace earlier ones.
	s := NewServer(nil)
	s.Record(&batch.Run{DealershipID: "dealer-2", Status: batch.StatusCompleted})
	s.Record(&batch.Run{DealershipID: "dealer-1", Status: batch.StatusAborted})
	s.Record(&batch.Run{DealershipID: "dealer-1", Status: batch.StatusCompleted})

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}

	var runs []batch.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs: got %d", len(runs))
	}
	if runs[0].DealershipID != "dealer-1" || runs[1].DealershipID != "dealer-2" {
		t.Errorf("order: %s, %s", runs[0].DealershipID, runs[1].DealershipID)
	}
	if runs[0].Status != batch.StatusCompleted {
		t.Errorf("dealer-1 snapshot not replaced: %s", runs[0].Status)
	}
}

func TestRunsEmpty(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var runs []batch.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs: got %d", len(runs))
	}
}
