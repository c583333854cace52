package likecoin

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

func fakeUserMin(id string) UserMin {
	return UserMin{
		User:        id,
		DisplayName: id,
		Avatar:      "https://static.like.co/likecoin_de-portrait.jpg",
	}
}

func fakeLikerList(id string) []string {
	return []string{
		fmt.Sprintf("%s-reader", strings.TrimSpace(id)),
		"likecoin-foundation",
	}
}

func fakeBookmark(pageURL string) Bookmark {
	return Bookmark{
		ID:  ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		URL: pageURL,
	}
}
