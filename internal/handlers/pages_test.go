package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likecoin/likecoin-button/internal/i18n"
	"github.com/likecoin/likecoin-button/internal/likecoin"
	"github.com/likecoin/likecoin-button/internal/widget"
)

func testBundle(t *testing.T) *i18n.Bundle {
	t.Helper()
	b, err := i18n.Load("../../locales", "en", []string{"en", "zh"})
	require.NoError(t, err)
	return b
}

func TestBuildButtonViewAnonymous(t *testing.T) {
	creator := widget.Creator{ID: "abc", DisplayName: "<i>ABC</i>", AvatarHalo: widget.HaloNone}
	st := widget.State{TotalLike: 1234, CooldownPhase: widget.PhaseIdle.String()}

	v := BuildButtonView(testBundle(t), "en", creator, st, "sid-1", "tok")
	assert.Equal(t, "/in/embed/abc/button", v.BasePath)
	assert.Equal(t, "ABC", v.DisplayName)
	assert.Equal(t, "1,234 Likes", v.LikeLabel)
	assert.Equal(t, "Save", v.SaveLabel)
	assert.True(t, v.ShowSignUp)
	assert.False(t, v.ShowBookmark)
	assert.False(t, v.ShowFollow)
	assert.False(t, v.Poll)
	assert.Equal(t, "0.00%", v.Cooldown)
}

func TestBuildButtonViewSuperLikeAndCooldown(t *testing.T) {
	creator := widget.Creator{ID: "abc"}
	st := widget.State{
		LikeCount:     widget.MaxLike,
		CanSuperLike:  true,
		HasBookmarked: true,
		CooldownPhase: widget.PhaseIdle.String(),
		Viewer:        widget.Viewer{IsLoggedIn: true, Liker: "viewer"},
	}
	v := BuildButtonView(testBundle(t), "en", creator, st, "sid", "tok")
	assert.Equal(t, "Super Like", v.LikeLabel)
	assert.Equal(t, "Saved", v.SaveLabel)
	assert.True(t, v.ShowBookmark)
	assert.True(t, v.ShowFollow)

	st.CooldownProgress = 40
	st.CooldownPhase = widget.PhaseCoolingDown.String()
	v = BuildButtonView(testBundle(t), "en", creator, st, "sid", "tok")
	assert.Equal(t, "Like", v.LikeLabel)
	assert.Equal(t, "50.00%", v.Cooldown)
	assert.True(t, v.Poll)

	st.Viewer.Liker = "abc"
	v = BuildButtonView(testBundle(t), "en", creator, st, "sid", "tok")
	assert.False(t, v.ShowFollow, "creators do not follow themselves")
}

type fakeListSource struct {
	mu      sync.Mutex
	likers  []string
	listErr error
	total   int
	users   map[string]likecoin.UserMin
	title   string
	titleOf string
}

func (f *fakeListSource) GetUserMin(_ context.Context, id string) (likecoin.UserMin, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return likecoin.UserMin{}, &likecoin.APIError{Op: "get_user_min", Status: 404}
}

func (f *fakeListSource) GetLikeButtonLikerList(context.Context, string, string) ([]string, error) {
	return f.likers, f.listErr
}

func (f *fakeListSource) GetLikeButtonTotalCount(context.Context, string, string) (likecoin.TotalCount, error) {
	return likecoin.TotalCount{Total: f.total}, nil
}

func (f *fakeListSource) GetPageTitle(_ context.Context, pageURL string) string {
	f.mu.Lock()
	f.titleOf = pageURL
	f.mu.Unlock()
	return f.title
}

func TestBuildListView(t *testing.T) {
	src := &fakeListSource{
		likers: []string{"alice", "ghost"},
		total:  12,
		users: map[string]likecoin.UserMin{
			"alice": {User: "alice", DisplayName: "Alice <b>A</b>", IsSubscribedCivicLiker: true},
		},
		title: "Hello <em>World</em>",
	}
	view, err := BuildListView(context.Background(), src, "abc", "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, 12, view.Total)
	assert.Equal(t, "https://example.com/post", src.titleOf)
	assert.Equal(t, "Hello World", view.PageTitle)
	require.Len(t, view.Likers, 2)
	assert.Equal(t, Liker{ID: "alice", DisplayName: "Alice A", AvatarHalo: widget.HaloCivicLiker}, view.Likers[0])
	assert.Equal(t, "ghost", view.Likers[1].DisplayName, "failed profiles fall back to the id")
}

func TestBuildListViewFailsOnList(t *testing.T) {
	src := &fakeListSource{listErr: errors.New("down")}
	_, err := BuildListView(context.Background(), src, "abc", "")
	require.Error(t, err)
	assert.Empty(t, src.titleOf, "no title lookup without a referrer")
}

func TestAnalyticsEnabled(t *testing.T) {
	assert.False(t, Analytics{}.Enabled())
	assert.True(t, Analytics{GA4MeasurementID: "G-1"}.Enabled())
}
