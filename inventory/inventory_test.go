package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dealerops/featuresync/driver"
	"github.com/dealerops/featuresync/driver/drivertest"
	"github.com/dealerops/featuresync/retry"
	"github.com/dealerops/featuresync/session"
)

func testSession(fake *drivertest.Fake) *session.Session {
	s := &session.Session{
		DealershipID: "dealer-1",
		IdleTimeout:  time.Hour,
		Driver:       fake,
	}
	s.Touch()
	return s
}

func fastDiscovery() *Discovery {
	return NewDiscovery(Config{
		Retry: retry.Policy{Attempts: 2, InitialInterval: time.Millisecond},
	})
}

func TestParseRows(t *testing.T) {
	// WHAT: Grid rows parse into records in grid order; malformed and
	// over-age rows are skipped silently.
	raw := "VIN100\t0\n" +
		"VIN200\t1 day\thttps://stickers.test/200.pdf\n" +
		"VIN300\t5\n" + // too old
		"garbage line\n" +
		"\tmissing id\n" +
		"VIN400\t1\n"

	now := time.Now()
	got := parseRows(raw, 1, now)

	wantIDs := []string{"VIN100", "VIN200", "VIN400"}
	if len(got) != len(wantIDs) {
		t.Fatalf("records: got %d, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("record %d: got %q, want %q", i, got[i].ID, id)
		}
	}
	if got[1].StickerRef != "https://stickers.test/200.pdf" {
		t.Errorf("sticker ref: got %q", got[1].StickerRef)
	}
	if got[0].StickerRef != "" {
		t.Errorf("unexpected sticker ref on row without one: %q", got[0].StickerRef)
	}
	if !got[0].DiscoveredAt.Equal(now) {
		t.Errorf("discovered at: got %v, want %v", got[0].DiscoveredAt, now)
	}
}

func TestListEmptyInventory(t *testing.T) {
	// WHAT: An empty grid yields an empty slice, not an error.
	// WHY: Downstream treats "nothing to do" as a successful run.
	fake := drivertest.New()
	fake.Texts["vehicle_rows"] = ""

	got, err := fastDiscovery().List(context.Background(), testSession(fake), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty slice", got)
	}
}

func TestListExpiredSessionFatal(t *testing.T) {
	// WHAT: Listing through a dead session fails fatally without touching
	// the UI.
	fake := drivertest.New()
	sess := testSession(fake)
	sess.MarkExpired()

	_, err := fastDiscovery().List(context.Background(), sess, 1)

	var de *DiscoveryError
	if !errors.As(err, &de) || !de.Fatal {
		t.Fatalf("expected fatal DiscoveryError, got %v", err)
	}
	if len(fake.Ops) != 0 {
		t.Errorf("UI touched on expired session: %v", fake.Ops)
	}
}

func TestListRetriesTransientFailure(t *testing.T) {
	// WHAT: A transient read failure is retried; persistent failure turns
	// fatal after the budget.
	fake := drivertest.New()
	fake.Texts["vehicle_rows"] = "VIN100\t0\n"
	fake.FailN["read_text"] = 1

	got, err := fastDiscovery().List(context.Background(), testSession(fake), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "VIN100" {
		t.Errorf("got %#v", got)
	}
	if fake.OpCount("navigate:"+driver.PageInventory) != 2 {
		t.Errorf("navigations: got %d, want 2", fake.OpCount("navigate:"+driver.PageInventory))
	}

	fake.FailN["read_text"] = 10
	_, err = fastDiscovery().List(context.Background(), testSession(fake), 1)
	var de *DiscoveryError
	if !errors.As(err, &de) || !de.Fatal {
		t.Fatalf("expected fatal DiscoveryError, got %v", err)
	}
}
