package browser

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/config"
	"github.com/sells-group/secop-cli/internal/model"
	"github.com/sells-group/secop-cli/internal/resilience"
	"github.com/sells-group/secop-cli/internal/tier"
)

// State is the engine's position in the acquisition run.
type State string

const (
	StateInit               State = "init"
	StateFormReady          State = "form_ready"
	StateSubmitted          State = "submitted"
	StateResultsFrameActive State = "results_frame_active"
	StatePaginating         State = "paginating"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
)

const formPollInterval = 500 * time.Millisecond

// Session accumulates everything one portal run produced. Pages are kept
// in visit order; DetailURLs are deduplicated across pages.
type Session struct {
	Pages        []model.PageDocument
	DetailURLs   []string
	PagesVisited int
	Warnings     []string

	seenDetail map[string]bool
}

// Engine walks the portal through an explicit state machine: navigate and
// fill the form, submit, activate the results frame, then paginate until
// the next control disappears or a cap is hit. Soft problems (missing form
// control, pagination retry exhaustion) degrade with a warning; hard ones
// (form timeout, unresolved captcha, no frame) fail the run.
type Engine struct {
	b     Browser
	cfg   config.PortalConfig
	state State

	sleep func(time.Duration) // swapped out in tests
	now   func() time.Time
}

// NewEngine creates an Engine owning the given browser handle. Run closes
// the handle on every exit path.
func NewEngine(b Browser, cfg config.PortalConfig) *Engine {
	return &Engine{
		b:     b,
		cfg:   cfg,
		state: StateInit,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// State returns the engine's current state.
func (e *Engine) State() State { return e.state }

// Run executes one full portal acquisition for the predicate.
func (e *Engine) Run(ctx context.Context, pred model.Predicate) (*Session, error) {
	defer func() { _ = e.b.Close() }()

	sess := &Session{seenDetail: make(map[string]bool)}

	if err := e.openForm(ctx); err != nil {
		return sess, err
	}
	e.fillForm(ctx, pred, sess)
	e.transition(StateFormReady)

	if err := e.submit(ctx); err != nil {
		return sess, err
	}
	e.transition(StateSubmitted)

	if err := e.activateFrame(ctx); err != nil {
		return sess, err
	}
	e.transition(StateResultsFrameActive)

	if err := e.verifyResults(ctx); err != nil {
		return sess, err
	}
	e.transition(StatePaginating)

	if err := e.paginate(ctx, pred, sess); err != nil {
		return sess, err
	}
	e.transition(StateCompleted, zap.Int("pages", sess.PagesVisited))

	return sess, nil
}

func (e *Engine) transition(next State, fields ...zap.Field) {
	fields = append(fields,
		zap.String("from", string(e.state)),
		zap.String("to", string(next)),
	)
	zap.L().Info("browser: state transition", fields...)
	e.state = next
}

// fail marks the run failed and returns the terminal sentinel, annotated
// with the underlying cause when there is one.
func (e *Engine) fail(sentinel, cause error) error {
	e.state = StateFailed
	zap.L().Error("browser: run failed",
		zap.NamedError("reason", sentinel),
		zap.Error(cause),
	)
	if cause != nil {
		return eris.Wrapf(sentinel, "%v", cause)
	}
	return sentinel
}

func (e *Engine) warn(sess *Session, msg string, fields ...zap.Field) {
	sess.Warnings = append(sess.Warnings, msg)
	zap.L().Warn("browser: "+msg, fields...)
}

// openForm navigates to the search page and waits for the submit control
// to become interactable.
func (e *Engine) openForm(ctx context.Context) error {
	if err := e.b.Navigate(ctx, e.cfg.SearchURL); err != nil {
		return e.fail(ErrFormTimeout, err)
	}

	deadline := e.now().Add(time.Duration(e.cfg.NavTimeoutSecs) * time.Second)
	for {
		ok, err := e.b.Exists(ctx, e.cfg.Selectors.Submit)
		if err == nil && ok {
			break
		}
		if e.now().After(deadline) {
			return e.fail(ErrFormTimeout, err)
		}
		e.sleep(formPollInterval)
	}

	return e.waitCaptcha(ctx)
}

// fillForm applies predicate-present fields only. A missing control is a
// warning, never a failure.
func (e *Engine) fillForm(ctx context.Context, pred model.Predicate, sess *Session) {
	sel := e.cfg.Selectors

	e.fillText(ctx, sess, "keyword", sel.Keyword, pred.Keyword)
	e.fillText(ctx, sess, "process number", sel.ProcessNumber, pred.ProcessNumber)
	e.fillText(ctx, sess, "entity", sel.Entity, pred.Entity)
	e.fillText(ctx, sess, "date from", sel.DateFrom, formatPortalDate(pred.From))
	e.fillText(ctx, sess, "date to", sel.DateTo, formatPortalDate(pred.To))

	if pred.Department != "" {
		e.selectDropdown(ctx, sess, "department", sel.Department, []string{pred.Department})
	}
	if len(pred.Modalities) > 0 {
		e.selectDropdown(ctx, sess, "modality", sel.Modality, pred.Modalities[:1])
		if len(pred.Modalities) > 1 {
			e.warn(sess, "portal form takes a single modality; extra values apply to the open-data source only")
		}
	}
	if len(pred.Statuses) > 0 {
		e.selectDropdown(ctx, sess, "status", sel.Status, pred.Statuses)
	}
}

func (e *Engine) fillText(ctx context.Context, sess *Session, name, selector, value string) {
	if value == "" {
		return
	}
	ok, err := e.b.Exists(ctx, selector)
	if err != nil || !ok {
		e.warn(sess, "form control missing, constraint skipped: "+name, zap.Error(err))
		return
	}
	if err := e.b.Fill(ctx, selector, value); err != nil {
		e.warn(sess, "form fill failed, constraint skipped: "+name, zap.Error(err))
	}
}

// selectDropdown picks the first candidate that any strategy can select:
// option value, then exact visible text, then case-insensitive substring.
// Dropdowns populated over AJAX are polled until they hold real options.
func (e *Engine) selectDropdown(ctx context.Context, sess *Session, name, selector string, candidates []string) {
	ok, err := e.b.Exists(ctx, selector)
	if err != nil || !ok {
		e.warn(sess, "dropdown missing, constraint skipped: "+name, zap.Error(err))
		return
	}

	e.waitOptions(ctx, selector)

	for _, candidate := range candidates {
		_, strategy, err := tier.Evaluate(name+" dropdown", []tier.Strategy[string]{
			{Name: "value", Try: func() (string, bool, error) {
				err := e.b.SelectByValue(ctx, selector, candidate)
				return candidate, err == nil, nil
			}},
			{Name: "text", Try: func() (string, bool, error) {
				err := e.b.SelectByText(ctx, selector, candidate)
				return candidate, err == nil, nil
			}},
			{Name: "substring", Try: func() (string, bool, error) {
				opts, err := e.b.Options(ctx, selector)
				if err != nil {
					return "", false, err
				}
				for _, opt := range opts {
					if strings.Contains(strings.ToLower(opt.Text), strings.ToLower(candidate)) {
						return candidate, e.b.SelectByValue(ctx, selector, opt.Value) == nil, nil
					}
				}
				return "", false, nil
			}},
		})
		if err == nil {
			zap.L().Debug("browser: dropdown selected",
				zap.String("dropdown", name),
				zap.String("candidate", candidate),
				zap.String("strategy", strategy),
			)
			return
		}
	}

	e.warn(sess, "no dropdown option matched, constraint skipped: "+name,
		zap.Strings("candidates", candidates))
}

// waitOptions polls an AJAX-populated select until it carries more than a
// placeholder option, bounded by the configured wait.
func (e *Engine) waitOptions(ctx context.Context, selector string) {
	deadline := e.now().Add(time.Duration(e.cfg.OptionWaitSecs) * time.Second)
	for {
		opts, err := e.b.Options(ctx, selector)
		if err == nil && len(opts) > 1 {
			return
		}
		if e.now().After(deadline) {
			zap.L().Debug("browser: dropdown options never populated",
				zap.String("selector", selector))
			return
		}
		e.sleep(formPollInterval)
	}
}

func (e *Engine) submit(ctx context.Context) error {
	ok, err := e.b.Exists(ctx, e.cfg.Selectors.Submit)
	if err != nil || !ok {
		return e.fail(ErrFormTimeout, err)
	}
	if err := e.b.Click(ctx, e.cfg.Selectors.Submit); err != nil {
		return e.fail(ErrFormTimeout, err)
	}
	e.sleep(e.settleDelay())

	return e.waitCaptcha(ctx)
}

// activateFrame switches into the results frame: by configured name, then
// first frame by index, then the default document when results render
// inline. A switch only counts when results are visible inside it.
func (e *Engine) activateFrame(ctx context.Context) error {
	_, strategy, err := tier.Evaluate("results frame", []tier.Strategy[string]{
		{Name: "by-name", Try: func() (string, bool, error) {
			if err := e.b.SwitchFrameByName(ctx, e.cfg.Selectors.ResultsFrame); err != nil {
				return "", false, err
			}
			return e.cfg.Selectors.ResultsFrame, e.resultsVisible(ctx), nil
		}},
		{Name: "first-frame", Try: func() (string, bool, error) {
			if err := e.b.SwitchFrameByIndex(ctx, 0); err != nil {
				return "", false, err
			}
			return "frame[0]", e.resultsVisible(ctx), nil
		}},
		{Name: "default-content", Try: func() (string, bool, error) {
			if err := e.b.SwitchToDefault(ctx); err != nil {
				return "", false, err
			}
			return "default", e.resultsVisible(ctx), nil
		}},
	})
	if err != nil {
		return e.fail(ErrFrameUnavailable, err)
	}
	zap.L().Debug("browser: results frame active", zap.String("strategy", strategy))
	return nil
}

func (e *Engine) resultsVisible(ctx context.Context) bool {
	if ok, _ := e.b.Exists(ctx, e.cfg.Selectors.ResultsTable); ok {
		return true
	}
	ok, _ := e.b.Exists(ctx, e.cfg.Selectors.TotalCount)
	return ok
}

// verifyResults decides whether the search matched anything: total-count
// indicator first, table presence second, explicit no-result phrasing last.
func (e *Engine) verifyResults(ctx context.Context) error {
	if ok, _ := e.b.Exists(ctx, e.cfg.Selectors.TotalCount); ok {
		text, err := e.b.Text(ctx, e.cfg.Selectors.TotalCount)
		if err == nil {
			if total, ok := parseTotal(text); ok {
				if total == 0 {
					return e.fail(ErrEmptyResult, nil)
				}
				zap.L().Info("browser: result count reported", zap.Int("total", total))
				return nil
			}
		}
	}

	if ok, _ := e.b.Exists(ctx, e.cfg.Selectors.ResultsTable); ok {
		return nil
	}

	html, err := e.b.HTML(ctx)
	if err == nil {
		lower := strings.ToLower(html)
		for _, phrase := range e.cfg.Selectors.NoResultPhrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				return e.fail(ErrEmptyResult, nil)
			}
		}
	}

	return e.fail(ErrEmptyResult, eris.New("browser: no results table and no count indicator"))
}

// paginate captures pages in strict order until the next control is gone,
// a cap is reached, or navigation retries are exhausted. A challenge is
// re-checked right after every page transition; exhaustion aborts at the
// current page with everything captured so far intact.
func (e *Engine) paginate(ctx context.Context, pred model.Predicate, sess *Session) error {
	maxPages := e.cfg.MaxPages
	if pred.MaxPages > 0 && pred.MaxPages < maxPages {
		maxPages = pred.MaxPages
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts:    e.cfg.PageRetries,
		InitialBackoff: e.settleDelay(),
		ShouldRetry: func(err error) bool {
			return !errors.Is(err, ErrCaptchaUnresolved)
		},
	}

	for page := 1; ; page++ {
		html, err := e.b.HTML(ctx)
		if err != nil {
			return e.fail(ErrFrameUnavailable, err)
		}
		sess.Pages = append(sess.Pages, model.PageDocument{
			HTML:       html,
			Index:      page,
			CapturedAt: e.now(),
		})
		sess.PagesVisited = page
		e.harvestDetailURLs(html, sess)

		if page >= maxPages {
			e.warn(sess, "page cap reached", zap.Int("max_pages", maxPages))
			return nil
		}

		hasNext, err := e.b.Exists(ctx, e.cfg.Selectors.NextPage)
		if err != nil {
			e.warn(sess, "next control lookup failed, stopping at current page",
				zap.Int("page", page), zap.Error(err))
			return nil
		}
		if !hasNext {
			return nil
		}

		err = resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
			if err := e.b.Click(ctx, e.cfg.Selectors.NextPage); err != nil {
				return err
			}
			e.sleep(e.settleDelay())
			// A challenge can replace the results view on any transition;
			// wait it out before judging the page missing.
			if err := e.waitCaptcha(ctx); err != nil {
				return err
			}
			if !e.resultsVisible(ctx) {
				return eris.New("browser: results missing after page transition")
			}
			return nil
		})
		if errors.Is(err, ErrCaptchaUnresolved) {
			return err
		}
		if err != nil {
			e.warn(sess, "pagination retries exhausted, stopping at current page",
				zap.Int("page", page), zap.Error(err))
			return nil
		}
	}
}

// waitCaptcha polls a detected challenge until it clears or the wait
// window elapses. A human solving it in a headful session unblocks the run.
func (e *Engine) waitCaptcha(ctx context.Context) error {
	present, err := e.captchaPresent(ctx)
	if err != nil || !present {
		return nil
	}

	zap.L().Warn("browser: captcha detected, waiting",
		zap.Int("window_secs", e.cfg.CaptchaWaitSecs))

	deadline := e.now().Add(time.Duration(e.cfg.CaptchaWaitSecs) * time.Second)
	for {
		if e.now().After(deadline) {
			return e.fail(ErrCaptchaUnresolved, nil)
		}
		e.sleep(time.Duration(e.cfg.CaptchaPollSecs) * time.Second)
		present, err := e.captchaPresent(ctx)
		if err == nil && !present {
			zap.L().Info("browser: captcha cleared")
			return nil
		}
	}
}

var captchaSelectors = []string{
	`iframe[src*="recaptcha"]`,
	`.g-recaptcha`,
	`div[class*="captcha"]`,
}

func (e *Engine) captchaPresent(ctx context.Context) (bool, error) {
	for _, sel := range captchaSelectors {
		if ok, _ := e.b.Exists(ctx, sel); ok {
			return true, nil
		}
	}
	html, err := e.b.HTML(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(html), "no soy un robot"), nil
}

// harvestDetailURLs collects detail links straight off the captured markup
// so the detail pass survives even when row extraction later degrades.
func (e *Engine) harvestDetailURLs(html string, sess *Session) {
	pattern := regexp.MustCompile(`href="([^"]*` + regexp.QuoteMeta(e.cfg.Selectors.DetailPattern) + `[^"]*)"`)
	base, baseErr := url.Parse(e.cfg.BaseURL)

	for _, m := range pattern.FindAllStringSubmatch(html, -1) {
		href := m[1]
		if baseErr == nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		if sess.seenDetail[href] {
			continue
		}
		sess.seenDetail[href] = true
		sess.DetailURLs = append(sess.DetailURLs, href)
	}
}

func (e *Engine) settleDelay() time.Duration {
	return time.Duration(e.cfg.SettleDelayMillis) * time.Millisecond
}

// formatPortalDate renders a predicate bound in the portal's dd/MM/yyyy.
func formatPortalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02/01/2006")
}

var totalDigits = regexp.MustCompile(`\d[\d.,]*`)

// parseTotal pulls the first integer out of a count indicator like
// "Total registros: 1.234".
func parseTotal(text string) (int, bool) {
	raw := totalDigits.FindString(text)
	if raw == "" {
		return 0, false
	}
	raw = strings.NewReplacer(".", "", ",", "").Replace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
