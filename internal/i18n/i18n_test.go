package i18n

import "testing"

func loadTestBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := Load("../../locales", "en", []string{"en", "zh"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return b
}

func TestResolveHonorsQValues(t *testing.T) {
	b := loadTestBundle(t)
	if got := b.Resolve("en;q=0.8, zh-TW;q=0.9"); got != "zh" {
		t.Fatalf("expected zh, got %s", got)
	}
	if got := b.Resolve("ja, fr;q=0.5"); got != "en" {
		t.Fatalf("expected fallback en, got %s", got)
	}
	if got := b.Resolve(""); got != "en" {
		t.Fatalf("expected fallback for empty header, got %s", got)
	}
}

func TestTFallsBack(t *testing.T) {
	b := loadTestBundle(t)
	if got := b.T("zh", "Save"); got == "Save" || got == "" {
		t.Fatalf("expected zh translation for Save, got %q", got)
	}
	if got := b.T("ja", "Save"); got != "Save" {
		t.Fatalf("expected en fallback, got %q", got)
	}
	if got := b.T("en", "NoSuchKey"); got != "NoSuchKey" {
		t.Fatalf("expected key echo, got %q", got)
	}
}

func TestTcPluralisation(t *testing.T) {
	b := loadTestBundle(t)
	cases := map[int]string{
		0:  "Like",
		1:  "1 Like",
		12: "12 Likes",
	}
	for n, want := range cases {
		if got := b.Tc("en", "LikeCountLabel", n, nil); got != want {
			t.Errorf("Tc(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestChoiceIndex(t *testing.T) {
	tests := []struct {
		n, forms, want int
	}{
		{0, 1, 0},
		{0, 2, 1},
		{1, 2, 0},
		{5, 2, 1},
		{0, 3, 0},
		{1, 3, 1},
		{2, 3, 2},
		{40, 3, 2},
	}
	for _, tt := range tests {
		if got := choiceIndex(tt.n, tt.forms); got != tt.want {
			t.Errorf("choiceIndex(%d, %d) = %d, want %d", tt.n, tt.forms, got, tt.want)
		}
	}
}

func TestTcParams(t *testing.T) {
	b := &Bundle{
		dict:      map[string]map[string]string{"en": {"Greeting": "Hi {name} | Hi {name}, {count} times"}},
		fallback:  "en",
		supported: map[string]struct{}{"en": {}},
	}
	if got := b.Tc("en", "Greeting", 3, map[string]any{"name": "Ann"}); got != "Hi Ann, 3 times" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestTcParamOverridesCount(t *testing.T) {
	b := loadTestBundle(t)
	if got := b.Tc("en", "LikeCountLabel", 1234, map[string]any{"count": "1,234"}); got != "1,234 Likes" {
		t.Fatalf("unexpected %q", got)
	}
}
