package main

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	handlersPkg "github.com/likecoin/likecoin-button/internal/handlers"
	"github.com/likecoin/likecoin-button/internal/likecoin"
	mw "github.com/likecoin/likecoin-button/internal/middleware"
	"github.com/likecoin/likecoin-button/internal/observability"
	"github.com/likecoin/likecoin-button/internal/referrer"
)

// ListPageHandler renders who liked the referrer page.
func (a *app) ListPageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := mw.Lang(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	q := r.URL.Query()
	ref := referrer.Normalize(q.Get("referrer"))

	view, err := handlersPkg.BuildListView(ctx, a.client, id, ref)
	if err != nil {
		if likecoin.IsNotFound(err) {
			a.renderNotFound(w, r, lang)
			return
		}
		observability.FromContext(ctx).Warn("load liker list failed", zap.String("button_id", id), zap.Error(err))
		view = handlersPkg.ListView{ID: id, Referrer: ref}
	}
	if q.Get("show_back") == "1" {
		view.ShowBack = true
		back := "/in/embed/" + url.PathEscape(id) + "/button"
		if ref != "" {
			back += "?" + url.Values{"referrer": {ref}}.Encode()
		}
		view.BackURL = back
	}

	title := i18nBundle.T(lang, "LikerList")
	if view.PageTitle != "" {
		title = view.PageTitle + " | " + title
	}
	render(w, r, http.StatusOK, handlersPkg.PageData{
		Title:     title,
		Lang:      lang,
		Analytics: a.analytics,
		Path:      r.URL.Path,
		List:      &view,
	})
}
