// Package drivertest provides a scriptable in-memory Driver for unit tests.
package drivertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dealerops/featuresync/driver"
)

// Fake is a deterministic Driver double. Tests preload element text, images
// and checkbox states, and can script failures per operation. All state is
// exported so tests can assert on it directly.
type Fake struct {
	mu sync.Mutex

	// Texts maps "page/name" (or just "name") to the text ReadText returns.
	Texts map[string]string
	// Images maps element names to CaptureImage payloads.
	Images map[string][]byte
	// Checked holds checkbox states, mutated by SetChecked.
	Checked map[string]bool
	// Fields holds the last value written to each input.
	Fields map[string]string
	// AliveState is what Alive reports.
	AliveState bool
	// AliveSeq, when non-empty, overrides AliveState one call at a time.
	AliveSeq []bool
	// FailN makes the named operation (e.g. "click", "commit", "navigate")
	// fail that many times before succeeding again.
	FailN map[string]int
	// StickyCheckboxes lists checkbox names whose SetChecked silently does
	// nothing, to exercise verification.
	StickyCheckboxes map[string]bool

	// Ops records every call in order, e.g. "navigate:inventory".
	Ops []string

	// Page is the id passed to the last Navigate.
	Page string

	closed bool
}

// New returns an empty Fake that reports an alive session.
func New() *Fake {
	return &Fake{
		Texts:            map[string]string{},
		Images:           map[string][]byte{},
		Checked:          map[string]bool{},
		Fields:           map[string]string{},
		FailN:            map[string]int{},
		StickyCheckboxes: map[string]bool{},
		AliveState:       true,
	}
}

func (f *Fake) record(op, name string) {
	if name != "" {
		op = op + ":" + name
	}
	f.Ops = append(f.Ops, op)
}

// fail consumes one scripted failure for op, if any.
func (f *Fake) fail(op string) error {
	if n := f.FailN[op]; n > 0 {
		f.FailN[op] = n - 1
		return &driver.UIError{Op: op, Err: fmt.Errorf("scripted failure")}
	}
	return nil
}

func (f *Fake) Navigate(ctx context.Context, pageID string, params map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate", pageID)
	if err := f.fail("navigate"); err != nil {
		return err
	}
	f.Page = pageID
	return ctx.Err()
}

func (f *Fake) ReadText(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("read_text", name)
	if err := f.fail("read_text"); err != nil {
		return "", err
	}
	if t, ok := f.Texts[f.Page+"/"+name]; ok {
		return t, nil
	}
	return f.Texts[name], nil
}

func (f *Fake) CaptureImage(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("capture_image", name)
	if err := f.fail("capture_image"); err != nil {
		return nil, err
	}
	return f.Images[name], nil
}

func (f *Fake) SetField(ctx context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set_field", name)
	if err := f.fail("set_field"); err != nil {
		return err
	}
	f.Fields[name] = value
	return nil
}

func (f *Fake) Click(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("click", name)
	return f.fail("click")
}

func (f *Fake) IsChecked(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("is_checked", name)
	if err := f.fail("is_checked"); err != nil {
		return false, err
	}
	return f.Checked[name], nil
}

func (f *Fake) SetChecked(ctx context.Context, name string, want bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set_checked", name)
	if err := f.fail("set_checked"); err != nil {
		return err
	}
	if f.StickyCheckboxes[name] {
		return nil
	}
	f.Checked[name] = want
	return nil
}

func (f *Fake) Commit(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("commit", "")
	return f.fail("commit")
}

func (f *Fake) Alive(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("alive", "")
	if err := f.fail("alive"); err != nil {
		return false, err
	}
	if len(f.AliveSeq) > 0 {
		v := f.AliveSeq[0]
		f.AliveSeq = f.AliveSeq[1:]
		return v, nil
	}
	return f.AliveState, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// OpCount returns how many times an op (with optional ":name" suffix) was
// recorded.
func (f *Fake) OpCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.Ops {
		if o == op {
			n++
		}
	}
	return n
}
