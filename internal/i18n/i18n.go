package i18n

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Bundle holds the translations of every supported locale.
type Bundle struct {
	dict      map[string]map[string]string
	fallback  string
	supported map[string]struct{}
}

// Load reads <dir>/<locale>.yaml for each supported locale. Only the fallback locale
// must exist.
func Load(dir string, fallback string, supported []string) (*Bundle, error) {
	b := &Bundle{
		dict:      map[string]map[string]string{},
		fallback:  fallback,
		supported: map[string]struct{}{},
	}
	if len(supported) == 0 {
		supported = []string{"en", "zh"}
	}
	for _, l := range supported {
		b.supported[l] = struct{}{}
		path := filepath.Join(dir, l+".yaml")
		raw, err := os.ReadFile(path)
		if err != nil {
			if l == fallback {
				return nil, fmt.Errorf("load locale %s: %w", l, err)
			}
			continue
		}
		var m map[string]string
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", l, err)
		}
		b.dict[l] = m
	}
	if _, ok := b.dict[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %s not loaded", fallback)
	}
	return b, nil
}

func (b *Bundle) Supported() []string {
	out := make([]string, 0, len(b.supported))
	for k := range b.supported {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fallback returns the configured fallback language.
func (b *Bundle) Fallback() string { return b.fallback }

// IsSupported reports whether lang has a bundle entry.
func (b *Bundle) IsSupported(lang string) bool {
	_, ok := b.supported[lang]
	return ok
}

// T returns translation for key in lang, falling back to default and finally key.
func (b *Bundle) T(lang, key string) string {
	if lang != "" {
		if m, ok := b.dict[lang]; ok {
			if v, ok := m[key]; ok {
				return v
			}
		}
	}
	if m, ok := b.dict[b.fallback]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

// Tc picks the plural form of key for n. Messages list their forms separated by "|":
// three forms are zero, one and many; two forms are one and many. {name} placeholders
// are replaced by params first, then {count} and {n} by n.
func (b *Bundle) Tc(lang, key string, n int, params map[string]any) string {
	choices := strings.Split(b.T(lang, key), "|")
	msg := strings.TrimSpace(choices[choiceIndex(n, len(choices))])

	for name, v := range params {
		msg = strings.ReplaceAll(msg, "{"+name+"}", fmt.Sprint(v))
	}
	count := strconv.Itoa(n)
	msg = strings.ReplaceAll(msg, "{count}", count)
	msg = strings.ReplaceAll(msg, "{n}", count)
	return msg
}

func choiceIndex(n, forms int) int {
	if forms <= 1 {
		return 0
	}
	abs := int(math.Abs(float64(n)))
	if forms == 2 {
		if abs == 1 {
			return 0
		}
		return 1
	}
	if abs > 2 {
		abs = 2
	}
	return abs
}

// Resolve chooses best language from Accept-Language header. Tags are tried in q order
// and match on their base language, so zh-TW selects zh.
func (b *Bundle) Resolve(acceptLang string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil {
		return b.fallback
	}
	for _, tag := range tags {
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		if b.IsSupported(base.String()) {
			return base.String()
		}
	}
	return b.fallback
}
