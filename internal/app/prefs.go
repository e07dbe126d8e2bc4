package app

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"edureg/internal/logsvc"
	"edureg/internal/store"
)

// Storage keys for preferences. Values are raw strings, not JSON.
const (
	ThemeKey  = "edureg_theme"
	ShowQRKey = "edureg_show_tg_qr"
)

// Theme is the colour scheme preference.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ErrInvalidTheme is returned for anything but light or dark.
var ErrInvalidTheme = errors.New("theme must be light or dark")

// ParseTheme accepts light or dark in any case.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, nil
	case Dark:
		return Dark, nil
	}
	return "", errors.Wrapf(ErrInvalidTheme, "%q", s)
}

// Preferences are the operator's display settings.
type Preferences struct {
	Theme       Theme `json:"theme"`
	ShowGroupQR bool  `json:"showGroupQr"`
}

func loadPrefs(ctx context.Context, kv store.KV, logger logsvc.Logger) (Preferences, error) {
	p := Preferences{Theme: Light}

	raw, err := kv.Get(ctx, ThemeKey)
	switch {
	case err == nil:
		if t, perr := ParseTheme(raw); perr == nil {
			p.Theme = t
		} else {
			logger.Warn("ignoring stored theme", perr)
		}
	case !errors.Is(err, store.ErrNotFound):
		return p, errors.Wrap(err, "loading theme")
	}

	raw, err = kv.Get(ctx, ShowQRKey)
	switch {
	case err == nil:
		p.ShowGroupQR = raw == "true"
	case !errors.Is(err, store.ErrNotFound):
		return p, errors.Wrap(err, "loading qr preference")
	}
	return p, nil
}

func savePrefs(ctx context.Context, kv store.KV, p Preferences) error {
	if err := kv.Set(ctx, ThemeKey, string(p.Theme)); err != nil {
		return &store.WriteError{Key: ThemeKey, Err: err}
	}
	if err := kv.Set(ctx, ShowQRKey, strconv.FormatBool(p.ShowGroupQR)); err != nil {
		return &store.WriteError{Key: ShowQRKey, Err: err}
	}
	return nil
}
