// Package browser drives the legacy portal through a real browser. The
// Browser interface is the capability surface the automation engine needs;
// the chromedp driver implements it against Chrome, and tests substitute a
// scripted double.
package browser

import (
	"context"

	"github.com/rotisserie/eris"
)

// SelectOption is one entry of a <select> control.
type SelectOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Browser is the capability surface the engine drives. Selectors are CSS.
// Frame switches scope all subsequent calls to the active frame until
// SwitchToDefault.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Options(ctx context.Context, selector string) ([]SelectOption, error)
	SelectByValue(ctx context.Context, selector, value string) error
	SelectByText(ctx context.Context, selector, text string) error
	SwitchFrameByName(ctx context.Context, name string) error
	SwitchFrameByIndex(ctx context.Context, index int) error
	SwitchToDefault(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Terminal run failures. Callers branch on these with errors.Is.
var (
	// ErrFormTimeout means the search form never became interactable.
	ErrFormTimeout = eris.New("browser: search form unavailable")
	// ErrCaptchaUnresolved means a challenge stayed up past the wait window.
	ErrCaptchaUnresolved = eris.New("browser: captcha unresolved")
	// ErrFrameUnavailable means no strategy could activate the results frame.
	ErrFrameUnavailable = eris.New("browser: results frame unavailable")
	// ErrEmptyResult means the search legitimately matched nothing.
	ErrEmptyResult = eris.New("browser: search returned no results")
)
