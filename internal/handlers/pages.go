package handlers

import (
	"context"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/likecoin/likecoin-button/internal/format"
	"github.com/likecoin/likecoin-button/internal/i18n"
	"github.com/likecoin/likecoin-button/internal/likecoin"
	"github.com/likecoin/likecoin-button/internal/widget"
)

const (
	displayNameLimit = 40
	titleLimit       = 80
	maxListedLikers  = 50
	likerFetchLimit  = 8
)

// PageData is a generic view model for pages using the shared layout.
type PageData struct {
	Title     string
	Lang      string
	Analytics Analytics
	Path      string

	Button  *ButtonView
	List    *ListView
	Message string
}

// ButtonView is everything the button fragment renders.
type ButtonView struct {
	ID       string
	SID      string
	CSRF     string
	Lang     string
	BasePath string

	DisplayName string
	Avatar      string
	AvatarHalo  string
	CivicSince  string

	State       widget.State
	LikeLabel   string
	SaveLabel   string
	FollowLabel string
	Cooldown    string

	ShowBookmark bool
	ShowFollow   bool
	ShowSignUp   bool
	// Poll keeps the fragment refreshing while a super-like countdown runs.
	Poll bool
	// AwaitTimezone asks the browser to send its UTC offset on load.
	AwaitTimezone bool
}

// BuildButtonView renders labels for the snapshot st of a button owned by creator.
func BuildButtonView(bundle *i18n.Bundle, lang string, creator widget.Creator, st widget.State, sid, csrf string) ButtonView {
	likeLabel := bundle.Tc(lang, widget.LabelLikeCount, st.TotalLike, map[string]any{"count": format.Count(int64(st.TotalLike))})
	if st.LikeLabel() == widget.LabelSuperLikeNow {
		likeLabel = bundle.T(lang, widget.LabelSuperLikeNow)
	}
	v := st.Viewer
	return ButtonView{
		ID:       creator.ID,
		SID:      sid,
		CSRF:     csrf,
		Lang:     lang,
		BasePath: "/in/embed/" + url.PathEscape(creator.ID) + "/button",

		DisplayName: format.Text(creator.DisplayName, displayNameLimit),
		Avatar:      creator.Avatar,
		AvatarHalo:  creator.AvatarHalo,
		CivicSince:  format.Since(creator.CivicLikerSince, lang),

		State:       st,
		LikeLabel:   likeLabel,
		SaveLabel:   bundle.T(lang, st.SaveLabel()),
		FollowLabel: bundle.T(lang, st.FollowLabel()),
		Cooldown:    format.Percent(st.CooldownProgress / 80 * 100),

		ShowBookmark: v.IsLoggedIn,
		ShowFollow:   v.IsLoggedIn && v.Liker != creator.ID,
		ShowSignUp:   !v.IsLoggedIn,
		Poll:         st.CooldownPhase != widget.PhaseIdle.String(),
	}
}

// Liker is one row of the liker list.
type Liker struct {
	ID          string
	DisplayName string
	Avatar      string
	AvatarHalo  string
}

// ListView is the liker list page.
type ListView struct {
	ID        string
	PageTitle string
	Referrer  string
	Total     int
	Likers    []Liker
	ShowBack  bool
	BackURL   string
}

// ListSource is the anonymous API surface the list page reads. *likecoin.Client satisfies it.
type ListSource interface {
	GetUserMin(ctx context.Context, id string) (likecoin.UserMin, error)
	GetLikeButtonLikerList(ctx context.Context, id, referrer string) ([]string, error)
	GetLikeButtonTotalCount(ctx context.Context, id, referrer string) (likecoin.TotalCount, error)
	GetPageTitle(ctx context.Context, pageURL string) string
}

// BuildListView loads the likers of id on referrer. Profiles that fail to load are listed
// by id only; a failing list or total is an error.
func BuildListView(ctx context.Context, src ListSource, id, referrer string) (ListView, error) {
	view := ListView{ID: id, Referrer: referrer}
	var ids []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := src.GetLikeButtonLikerList(gctx, id, referrer)
		ids = list
		return err
	})
	g.Go(func() error {
		total, err := src.GetLikeButtonTotalCount(gctx, id, referrer)
		view.Total = total.Total
		return err
	})
	g.Go(func() error {
		if referrer != "" {
			view.PageTitle = format.Text(src.GetPageTitle(gctx, referrer), titleLimit)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return ListView{}, err
	}

	if len(ids) > maxListedLikers {
		ids = ids[:maxListedLikers]
	}
	view.Likers = make([]Liker, len(ids))
	lg, lctx := errgroup.WithContext(ctx)
	lg.SetLimit(likerFetchLimit)
	for i, likerID := range ids {
		view.Likers[i] = Liker{ID: likerID, DisplayName: likerID, AvatarHalo: widget.HaloNone}
		lg.Go(func() error {
			user, err := src.GetUserMin(lctx, likerID)
			if err != nil {
				return nil
			}
			name := format.Text(user.DisplayName, displayNameLimit)
			if name == "" {
				name = likerID
			}
			view.Likers[i] = Liker{
				ID:          likerID,
				DisplayName: name,
				Avatar:      user.Avatar,
				AvatarHalo:  widget.AvatarHalo(user.IsSubscribedCivicLiker, user.IsPreRegCivicLiker),
			}
			return nil
		})
	}
	_ = lg.Wait()
	return view, nil
}
