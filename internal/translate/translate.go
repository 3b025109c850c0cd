// Package translate defines the boundary to the external machine-translation
// engine. Any failure at this boundary degrades to the untranslated source
// text; it never propagates to the caller as a hard error path.
package translate

import (
	"context"
)

type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// normalizeLang maps detector-style language codes to the forms the
// translation engine expects.
func normalizeLang(code string) string {
	switch code {
	case "zh-cn":
		return "zh-CN"
	case "zh-tw":
		return "zh-TW"
	default:
		return code
	}
}
