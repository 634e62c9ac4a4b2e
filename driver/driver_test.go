package driver

import (
	"errors"
	"fmt"
	"testing"
)

func TestUIErrorClassification(t *testing.T) {
	// WHAT: Fatal travels through wrapping, and the cause stays reachable.
	cause := errors.New("element detached")
	fatal := fmt.Errorf("click save: %w", &UIError{Op: "click", Name: "save", Fatal: true, Err: cause})
	transient := &UIError{Op: "read_text", Err: cause}

	if !IsFatalUI(fatal) {
		t.Error("wrapped fatal UIError not detected")
	}
	if IsFatalUI(transient) {
		t.Error("transient UIError reported fatal")
	}
	if IsFatalUI(cause) {
		t.Error("plain error reported fatal")
	}
	if !errors.Is(fatal, cause) {
		t.Error("cause lost through UIError")
	}
}
