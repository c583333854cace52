package widget

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likecoin/likecoin-button/internal/likecoin"
)

func testLauncher() Launcher {
	amount := 8
	return Launcher{
		Links:    Links{LikeCoHostname: "like.co", LikerLandURLBase: "https://liker.land/"},
		ID:       "abc",
		Referrer: "https://example.com/a b?x=1&y=2",
		Amount:   &amount,
	}
}

func TestReferrerQueryString(t *testing.T) {
	l := testLauncher()
	assert.Equal(t, "?from=abc&referrer=https%3A%2F%2Fexample.com%2Fa%20b%3Fx%3D1%26y%3D2&utm_source=button", l.ReferrerQueryString())

	l.Referrer = ""
	assert.Equal(t, "?from=abc&utm_source=button", l.ReferrerQueryString())

	l.Referrer = "https://example.com/it's-(really)-great!*~"
	assert.Equal(t, "?from=abc&referrer=https%3A%2F%2Fexample.com%2Fit's-(really)-great!*~&utm_source=button", l.ReferrerQueryString())
}

func TestSignUpLaunch(t *testing.T) {
	l := testLauncher()
	l.Referrer = ""

	popup := l.SignUp(LaunchOptions{NewWindow: true})
	assert.Equal(t, Launch{
		URL:        "https://like.co/in/register?from=abc&utm_source=button&register=1&is_popup=1",
		WindowName: "signup",
		Features:   "width=540,height=600,menubar=no,location=no,resizable=yes,scrollbars=yes,status=yes",
		NewWindow:  true,
	}, popup)

	nav := l.SignUp(LaunchOptions{CurrentURL: "https://button.like.co/in/embed/abc/button"})
	assert.False(t, nav.NewWindow)
	assert.Equal(t, "https://like.co/in/register?from=abc&utm_source=button&register=1&is_popup=1&redirect=https%3A%2F%2Fbutton.like.co%2Fin%2Fembed%2Fabc%2Fbutton", nav.URL)
}

func TestSuperLikeLaunch(t *testing.T) {
	l := testLauncher()
	l.Referrer = ""
	launch := l.SuperLikePage()
	assert.Equal(t, "https://like.co/abc/8?from=abc&utm_source=button", launch.URL)
	assert.Equal(t, WindowSuperLike, launch.WindowName)
	assert.Equal(t, "menubar=no,location=no,width=600,height=768", launch.Features)

	l.Amount = nil
	assert.Equal(t, "https://like.co/abc?from=abc&utm_source=button", l.SuperLikeURL())
}

func TestLikeStatsLaunch(t *testing.T) {
	l := testLauncher()
	l.Referrer = "https://example.com/"

	popup := l.LikeStats(LaunchOptions{NewWindow: true})
	assert.Equal(t, "/in/embed/abc/list?from=abc&referrer=https%3A%2F%2Fexample.com%2F&utm_source=button", popup.URL)
	assert.Equal(t, WindowLikeStats, popup.WindowName)
	assert.Equal(t, "menubar=no,location=no,width=576,height=768", popup.Features)

	nav := l.LikeStats(LaunchOptions{})
	assert.Equal(t, "/in/embed/abc/list?referrer=https%3A%2F%2Fexample.com%2F&show_back=1", nav.URL)
	assert.False(t, nav.NewWindow)
}

func TestCivicLikerLaunch(t *testing.T) {
	l := testLauncher()
	l.Referrer = ""
	assert.Equal(t, "https://liker.land/civic?from=abc&utm_source=button", l.CivicLiker().URL)
	assert.Equal(t, WindowBlank, l.CivicLiker().WindowName)

	l.IsTrialSubscriber = true
	assert.Equal(t, "https://liker.land/civic/register?from=abc&utm_source=button", l.CivicLiker().URL)
}

func TestWidgetLauncherReflectsState(t *testing.T) {
	api := &fakeAPI{myStatus: likecoin.MyStatus{Liker: "viewer", IsTrialSubscriber: true}}
	w, _ := newTestWidget(t, api)
	require.NoError(t, w.Sync(context.Background()))

	l := w.Launcher()
	assert.Equal(t, "abc", l.ID)
	assert.Equal(t, testReferrer, l.Referrer)
	assert.True(t, l.IsTrialSubscriber)
	assert.Contains(t, l.CivicLiker().URL, "/civic/register?")
}

type fakeCreatorSource struct {
	user      likecoin.UserMin
	userErr   error
	social    likecoin.SocialList
	socialErr error
	gotType   string
}

func (f *fakeCreatorSource) GetUserMin(context.Context, string) (likecoin.UserMin, error) {
	return f.user, f.userErr
}

func (f *fakeCreatorSource) GetSocialList(_ context.Context, _, buttonType string) (likecoin.SocialList, error) {
	f.gotType = buttonType
	return f.social, f.socialErr
}

func TestLoadCreator(t *testing.T) {
	amount := 3
	src := &fakeCreatorSource{
		user:      likecoin.UserMin{User: "abc", DisplayName: "ABC", IsPreRegCivicLiker: true},
		socialErr: errors.New("social down"),
	}
	creator, err := LoadCreator(context.Background(), src, "abc", "medium", &amount)
	require.NoError(t, err)
	assert.Equal(t, "ABC", creator.DisplayName)
	assert.Equal(t, HaloCivicLikerPre, creator.AvatarHalo)
	assert.Equal(t, &amount, creator.Amount)
	assert.NotNil(t, creator.Platforms)
	assert.Equal(t, "medium", src.gotType)

	src.userErr = &likecoin.APIError{Op: "get_user_min", Status: 404}
	_, err = LoadCreator(context.Background(), src, "abc", "", nil)
	assert.True(t, likecoin.IsNotFound(err))
}

func TestAvatarHalo(t *testing.T) {
	assert.Equal(t, HaloCivicLiker, AvatarHalo(true, true))
	assert.Equal(t, HaloCivicLikerPre, AvatarHalo(false, true))
	assert.Equal(t, HaloNone, AvatarHalo(false, false))
}
