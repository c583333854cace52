package widget

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/likecoin/likecoin-button/internal/likecoin"
)

// Avatar halo types.
const (
	HaloNone          = "none"
	HaloCivicLiker    = "civic-liker"
	HaloCivicLikerPre = "civic-liker-pre"
)

// Creator is the profile shown on the button, loaded once per page.
type Creator struct {
	ID                     string
	DisplayName            string
	Avatar                 string
	AvatarHalo             string
	IsPreRegCivicLiker     bool
	IsSubscribedCivicLiker bool
	CivicLikerSince        int64
	Amount                 *int
	Platforms              map[string]any
}

// CreatorSource loads creator profiles. *likecoin.Client satisfies it.
type CreatorSource interface {
	GetUserMin(ctx context.Context, id string) (likecoin.UserMin, error)
	GetSocialList(ctx context.Context, id, buttonType string) (likecoin.SocialList, error)
}

// LoadCreator fetches the profile and social links of id in parallel. A missing profile is
// an error; missing social links are not.
func LoadCreator(ctx context.Context, src CreatorSource, id, socialType string, amount *int) (Creator, error) {
	var (
		user      likecoin.UserMin
		platforms likecoin.SocialList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = src.GetUserMin(gctx, id)
		if err != nil {
			return fmt.Errorf("load creator %s: %w", id, err)
		}
		return nil
	})
	g.Go(func() error {
		list, err := src.GetSocialList(gctx, id, socialType)
		if err == nil {
			platforms = list
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Creator{}, err
	}
	if platforms == nil {
		platforms = likecoin.SocialList{}
	}

	return Creator{
		ID:                     id,
		DisplayName:            user.DisplayName,
		Avatar:                 user.Avatar,
		AvatarHalo:             AvatarHalo(user.IsSubscribedCivicLiker, user.IsPreRegCivicLiker),
		IsPreRegCivicLiker:     user.IsPreRegCivicLiker,
		IsSubscribedCivicLiker: user.IsSubscribedCivicLiker,
		CivicLikerSince:        user.CivicLikerSince,
		Amount:                 amount,
		Platforms:              platforms,
	}, nil
}

// AvatarHalo picks the ring drawn around a creator's avatar.
func AvatarHalo(subscribed, preRegistered bool) string {
	switch {
	case subscribed:
		return HaloCivicLiker
	case preRegistered:
		return HaloCivicLikerPre
	default:
		return HaloNone
	}
}
