package widget

import (
	"fmt"
	"net/url"
	"strings"
)

// Window names and features the embed page opens popups with.
const (
	WindowSignUp    = "signup"
	WindowSuperLike = "SUPER_LIKE_WINDOW"
	WindowLikeStats = "LIKER_LIST_STATS_WINDOW"
	WindowBlank     = "_blank"

	featuresSignUp    = "width=540,height=600,menubar=no,location=no,resizable=yes,scrollbars=yes,status=yes"
	featuresSuperLike = "menubar=no,location=no,width=600,height=768"
	featuresLikeStats = "menubar=no,location=no,width=576,height=768"
)

// Links are the external hosts the launcher points at.
type Links struct {
	LikeCoHostname   string
	LikerLandURLBase string
}

// Launch is a page the browser should open, either as a named popup or by navigating.
type Launch struct {
	URL        string `json:"url"`
	WindowName string `json:"windowName,omitempty"`
	Features   string `json:"features,omitempty"`
	NewWindow  bool   `json:"newWindow"`
}

// LaunchOptions selects popup or full navigation. CurrentURL is where a navigating
// sign-up returns to.
type LaunchOptions struct {
	NewWindow  bool
	CurrentURL string
}

// Launcher builds launch targets for one button. It only reads its fields.
type Launcher struct {
	Links             Links
	ID                string
	Referrer          string
	Amount            *int
	IsTrialSubscriber bool
}

// Launcher returns the launch builder for the widget's current state.
func (w *Widget) Launcher() Launcher {
	w.mu.Lock()
	trial := w.st.viewer.IsTrialSubscriber
	w.mu.Unlock()
	return Launcher{
		Links:             w.links,
		ID:                w.id,
		Referrer:          w.rc.Referrer,
		Amount:            w.creator.Amount,
		IsTrialSubscriber: trial,
	}
}

// ReferrerQueryString tags a launched page with where the click came from.
func (l Launcher) ReferrerQueryString() string {
	var b strings.Builder
	b.WriteString("?from=")
	b.WriteString(encodeURIComponent(l.ID))
	if l.Referrer != "" {
		b.WriteString("&referrer=")
		b.WriteString(encodeURIComponent(l.Referrer))
	}
	b.WriteString("&utm_source=button")
	return b.String()
}

// SignUpURL is the registration page.
func (l Launcher) SignUpURL() string {
	return fmt.Sprintf("https://%s/in/register%s&register=1&is_popup=1", l.Links.LikeCoHostname, l.ReferrerQueryString())
}

// SignUp opens registration in a popup, or navigates there with a redirect back.
func (l Launcher) SignUp(opts LaunchOptions) Launch {
	if opts.NewWindow {
		return Launch{
			URL:        l.SignUpURL(),
			WindowName: WindowSignUp,
			Features:   featuresSignUp,
			NewWindow:  true,
		}
	}
	return Launch{URL: l.SignUpURL() + "&redirect=" + encodeURIComponent(opts.CurrentURL)}
}

// SuperLikeURL is the creator's super-like page.
func (l Launcher) SuperLikeURL() string {
	amount := ""
	if l.Amount != nil && *l.Amount > 0 {
		amount = fmt.Sprintf("/%d", *l.Amount)
	}
	return fmt.Sprintf("https://%s/%s%s%s", l.Links.LikeCoHostname, l.ID, amount, l.ReferrerQueryString())
}

// SuperLikePage opens the super-like page popup.
func (l Launcher) SuperLikePage() Launch {
	return Launch{
		URL:        l.SuperLikeURL(),
		WindowName: WindowSuperLike,
		Features:   featuresSuperLike,
		NewWindow:  true,
	}
}

// LikeStats opens the liker list in a popup, or navigates to it with a back link.
func (l Launcher) LikeStats(opts LaunchOptions) Launch {
	base := "/in/embed/" + url.PathEscape(l.ID) + "/list"
	if opts.NewWindow {
		return Launch{
			URL:        base + l.ReferrerQueryString(),
			WindowName: WindowLikeStats,
			Features:   featuresLikeStats,
			NewWindow:  true,
		}
	}
	q := url.Values{"referrer": {l.Referrer}, "show_back": {"1"}}
	return Launch{URL: base + "?" + q.Encode()}
}

// CivicLiker opens the Civic Liker page; trial subscribers land on registration.
func (l Launcher) CivicLiker() Launch {
	path := "/civic"
	if l.IsTrialSubscriber {
		path += "/register"
	}
	return Launch{
		URL:        strings.TrimRight(l.Links.LikerLandURLBase, "/") + path + l.ReferrerQueryString(),
		WindowName: WindowBlank,
		NewWindow:  true,
	}
}

// componentUnescaper restores what QueryEscape encodes but encodeURIComponent keeps.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent escapes s the way browsers encode query components.
func encodeURIComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
