package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// opTimeout bounds every single UI interaction. The target application is
// slow under load but anything past this is a wedged page.
const opTimeout = 30 * time.Second

// RodDriver drives the target application through a Rod page with stealth
// applied. One RodDriver per session; not safe for concurrent use.
type RodDriver struct {
	page   *rod.Page
	model  *PageModel
	logger *slog.Logger

	// pageID tracks the page the driver last navigated to, so element names
	// resolve against the right selector table.
	pageID string
}

// NewRodDriver opens a fresh stealth page against the browser.
func NewRodDriver(ctx context.Context, b *Browser, model *PageModel, logger *slog.Logger) (*RodDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rb, err := b.Handle(ctx)
	if err != nil {
		return nil, err
	}
	page, err := stealth.Page(rb)
	if err != nil {
		return nil, &UIError{Op: "open_page", Err: err}
	}
	return &RodDriver{page: page, model: model, logger: logger}, nil
}

func (d *RodDriver) Navigate(ctx context.Context, pageID string, params map[string]string) error {
	url, err := d.model.URL(pageID, params)
	if err != nil {
		return &UIError{Op: "navigate", Name: pageID, Fatal: true, Err: err}
	}

	navCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := d.page.Context(navCtx).Navigate(url); err != nil {
		return &UIError{Op: "navigate", Name: pageID, Err: err}
	}
	if err := d.page.Context(navCtx).WaitLoad(); err != nil {
		d.logger.Warn("driver: wait load timeout", "page", pageID, "error", err)
	}
	d.pageID = pageID
	return nil
}

func (d *RodDriver) ReadText(ctx context.Context, name string) (string, error) {
	el, err := d.element(ctx, "read_text", name)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", &UIError{Op: "read_text", Name: name, Err: err}
	}
	return text, nil
}

func (d *RodDriver) CaptureImage(ctx context.Context, name string) ([]byte, error) {
	el, err := d.element(ctx, "capture_image", name)
	if err != nil {
		return nil, err
	}
	img, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, &UIError{Op: "capture_image", Name: name, Err: err}
	}
	return img, nil
}

func (d *RodDriver) SetField(ctx context.Context, name, value string) error {
	el, err := d.element(ctx, "set_field", name)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return &UIError{Op: "set_field", Name: name, Err: err}
	}
	if err := el.Input(value); err != nil {
		return &UIError{Op: "set_field", Name: name, Err: err}
	}
	return nil
}

func (d *RodDriver) Click(ctx context.Context, name string) error {
	el, err := d.element(ctx, "click", name)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &UIError{Op: "click", Name: name, Err: err}
	}
	return nil
}

func (d *RodDriver) IsChecked(ctx context.Context, name string) (bool, error) {
	el, err := d.element(ctx, "is_checked", name)
	if err != nil {
		return false, err
	}
	prop, err := el.Property("checked")
	if err != nil {
		return false, &UIError{Op: "is_checked", Name: name, Err: err}
	}
	return prop.Bool(), nil
}

func (d *RodDriver) SetChecked(ctx context.Context, name string, want bool) error {
	cur, err := d.IsChecked(ctx, name)
	if err != nil {
		return err
	}
	if cur == want {
		return nil
	}
	return d.Click(ctx, name)
}

func (d *RodDriver) Commit(ctx context.Context) error {
	if err := d.Click(ctx, "save"); err != nil {
		return &UIError{Op: "commit", Err: err}
	}
	waitCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := d.page.Context(waitCtx).WaitIdle(opTimeout); err != nil {
		return &UIError{Op: "commit", Err: err}
	}
	return nil
}

func (d *RodDriver) Alive(ctx context.Context) (bool, error) {
	// The application swaps in a login form when the session dies; the
	// logged-in shell always carries the user menu.
	checkCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	sel, err := d.model.Selector(PageDashboard, "user_menu")
	if err != nil {
		return false, &UIError{Op: "alive", Fatal: true, Err: err}
	}
	has, _, err := d.page.Context(checkCtx).Has(sel)
	if err != nil {
		return false, &UIError{Op: "alive", Err: err}
	}
	return has, nil
}

func (d *RodDriver) Close() error {
	if d.page != nil {
		return d.page.Close()
	}
	return nil
}

// element resolves a logical name through the page model and waits for the
// element to appear.
func (d *RodDriver) element(ctx context.Context, op, name string) (*rod.Element, error) {
	if d.pageID == "" {
		return nil, &UIError{Op: op, Name: name, Fatal: true, Err: fmt.Errorf("no page navigated")}
	}
	sel := "body"
	if name != "" {
		var err error
		sel, err = d.model.Selector(d.pageID, name)
		if err != nil {
			return nil, &UIError{Op: op, Name: name, Fatal: true, Err: err}
		}
	}

	elCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	el, err := d.page.Context(elCtx).Element(sel)
	if err != nil {
		return nil, &UIError{Op: op, Name: name, Err: err}
	}
	return el, nil
}
