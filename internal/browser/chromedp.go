package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/config"
)

// maskWebdriver hides the automation flag the portal's scripts probe for.
const maskWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// ChromeDriver implements Browser on a headless (or headful, for manual
// captcha solving) Chrome via chromedp. Frame scoping is done in page
// script: after a frame switch every query runs against the frame's
// contentDocument, which sidesteps cross-target plumbing for same-origin
// iframes like the portal's.
type ChromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration

	// docJS is the script expression for the active document.
	docJS string
}

// NewChromeDriver launches a Chrome instance configured for the portal:
// Colombian Spanish, masked automation flag, optional headful mode.
func NewChromeDriver(cfg config.PortalConfig) (*ChromeDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("lang", "es-CO"),
		chromedp.Flag("accept-lang", "es-CO,es"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     time.Duration(cfg.NavTimeoutSecs) * time.Second,
		docJS:       "document",
	}

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(maskWebdriver).Do(ctx)
		return err
	}))
	if err != nil {
		d.Close()
		return nil, eris.Wrap(err, "chromedp: start browser")
	}

	zap.L().Info("chromedp: browser started", zap.Bool("headless", cfg.Headless))
	return d, nil
}

func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (d *ChromeDriver) eval(ctx context.Context, js string, out any) error {
	return d.run(ctx, chromedp.Evaluate(js, out))
}

// Navigate loads a URL and resets frame scoping to the top document.
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	d.docJS = "document"
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return eris.Wrapf(err, "chromedp: navigate %s", url)
	}
	return nil
}

// Fill sets an input's value and fires the input/change events the
// portal's scripts listen for.
func (d *ChromeDriver) Fill(ctx context.Context, selector, value string) error {
	js := fmt.Sprintf(`(() => {
		const el = %s.querySelector(%s);
		if (!el) return false;
		el.value = %s;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, d.docJS, strconv.Quote(selector), strconv.Quote(value))

	var ok bool
	if err := d.eval(ctx, js, &ok); err != nil {
		return eris.Wrapf(err, "chromedp: fill %s", selector)
	}
	if !ok {
		return eris.Errorf("chromedp: no element matches %s", selector)
	}
	return nil
}

func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	js := fmt.Sprintf(`(() => {
		const el = %s.querySelector(%s);
		if (!el) return false;
		el.click();
		return true;
	})()`, d.docJS, strconv.Quote(selector))

	var ok bool
	if err := d.eval(ctx, js, &ok); err != nil {
		return eris.Wrapf(err, "chromedp: click %s", selector)
	}
	if !ok {
		return eris.Errorf("chromedp: no element matches %s", selector)
	}
	return nil
}

func (d *ChromeDriver) Exists(ctx context.Context, selector string) (bool, error) {
	js := fmt.Sprintf(`%s.querySelector(%s) !== null`, d.docJS, strconv.Quote(selector))
	var ok bool
	if err := d.eval(ctx, js, &ok); err != nil {
		return false, eris.Wrapf(err, "chromedp: query %s", selector)
	}
	return ok, nil
}

func (d *ChromeDriver) Text(ctx context.Context, selector string) (string, error) {
	js := fmt.Sprintf(`(() => {
		const el = %s.querySelector(%s);
		return el ? el.textContent.trim() : '';
	})()`, d.docJS, strconv.Quote(selector))

	var text string
	if err := d.eval(ctx, js, &text); err != nil {
		return "", eris.Wrapf(err, "chromedp: text %s", selector)
	}
	return text, nil
}

func (d *ChromeDriver) Options(ctx context.Context, selector string) ([]SelectOption, error) {
	js := fmt.Sprintf(`(() => {
		const el = %s.querySelector(%s);
		if (!el) return [];
		return Array.from(el.options).map(o => ({value: o.value, text: o.textContent.trim()}));
	})()`, d.docJS, strconv.Quote(selector))

	var opts []SelectOption
	if err := d.eval(ctx, js, &opts); err != nil {
		return nil, eris.Wrapf(err, "chromedp: options %s", selector)
	}
	return opts, nil
}

func (d *ChromeDriver) SelectByValue(ctx context.Context, selector, value string) error {
	js := fmt.Sprintf(`(() => {
		const el = %s.querySelector(%s);
		if (!el) return false;
		const opt = Array.from(el.options).find(o => o.value === %s);
		if (!opt) return false;
		el.value = opt.value;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, d.docJS, strconv.Quote(selector), strconv.Quote(value))

	var ok bool
	if err := d.eval(ctx, js, &ok); err != nil {
		return eris.Wrapf(err, "chromedp: select %s", selector)
	}
	if !ok {
		return eris.Errorf("chromedp: no option with value %q in %s", value, selector)
	}
	return nil
}

func (d *ChromeDriver) SelectByText(ctx context.Context, selector, text string) error {
	js := fmt.Sprintf(`(() => {
		const el = %s.querySelector(%s);
		if (!el) return false;
		const opt = Array.from(el.options).find(o => o.textContent.trim() === %s);
		if (!opt) return false;
		el.value = opt.value;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, d.docJS, strconv.Quote(selector), strconv.Quote(text))

	var ok bool
	if err := d.eval(ctx, js, &ok); err != nil {
		return eris.Wrapf(err, "chromedp: select %s", selector)
	}
	if !ok {
		return eris.Errorf("chromedp: no option with text %q in %s", text, selector)
	}
	return nil
}

// SwitchFrameByName scopes subsequent calls to a same-origin iframe found
// by name or id.
func (d *ChromeDriver) SwitchFrameByName(ctx context.Context, name string) error {
	quoted := strconv.Quote(name)
	frameJS := fmt.Sprintf(
		`((document.getElementsByName(%s)[0] || document.getElementById(%s)) || {}).contentDocument`,
		quoted, quoted)

	var ok bool
	if err := d.eval(ctx, fmt.Sprintf(`(%s) != null`, frameJS), &ok); err != nil {
		return eris.Wrapf(err, "chromedp: switch frame %s", name)
	}
	if !ok {
		return eris.Errorf("chromedp: no accessible frame named %s", name)
	}
	d.docJS = "(" + frameJS + ")"
	return nil
}

func (d *ChromeDriver) SwitchFrameByIndex(ctx context.Context, index int) error {
	frameJS := fmt.Sprintf(`(document.getElementsByTagName('iframe')[%d] || {}).contentDocument`, index)

	var ok bool
	if err := d.eval(ctx, fmt.Sprintf(`(%s) != null`, frameJS), &ok); err != nil {
		return eris.Wrapf(err, "chromedp: switch frame %d", index)
	}
	if !ok {
		return eris.Errorf("chromedp: no accessible frame at index %d", index)
	}
	d.docJS = "(" + frameJS + ")"
	return nil
}

func (d *ChromeDriver) SwitchToDefault(_ context.Context) error {
	d.docJS = "document"
	return nil
}

func (d *ChromeDriver) HTML(ctx context.Context) (string, error) {
	js := fmt.Sprintf(`%s.documentElement.outerHTML`, d.docJS)
	var html string
	if err := d.eval(ctx, js, &html); err != nil {
		return "", eris.Wrap(err, "chromedp: capture html")
	}
	return html, nil
}

// Close tears down the browser and its allocator.
func (d *ChromeDriver) Close() error {
	d.cancel()
	d.allocCancel()
	return nil
}
