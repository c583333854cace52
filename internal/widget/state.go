package widget

// MaxLike caps how many likes one viewer can give a page in a session.
const MaxLike = 5

// Cooldown progress is kept in hundredths so the 0.2 decay lands on zero exactly.
const (
	cooldownStart = 8000
	cooldownStep  = 20
)

// Phase is the super-like cooldown state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTriggered
	PhaseCoolingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseTriggered:
		return "triggered"
	case PhaseCoolingDown:
		return "cooling_down"
	default:
		return "idle"
	}
}

// Viewer describes who is looking at the button.
type Viewer struct {
	IsLoggedIn        bool   `json:"isLoggedIn"`
	IsSubscribed      bool   `json:"isSubscribed"`
	IsTrialSubscriber bool   `json:"isTrialSubscriber"`
	Liker             string `json:"liker,omitempty"`
	HasCookieSupport  bool   `json:"hasCookieSupport"`
}

// State is a point-in-time copy of a widget's state.
type State struct {
	LikeCount int `json:"likeCount"`
	LikeSent  int `json:"likeSent"`
	TotalLike int `json:"totalLike"`

	CanSuperLike      bool    `json:"canSuperLike"`
	HasSuperLiked     bool    `json:"hasSuperLiked"`
	NextSuperLikeTime int64   `json:"nextSuperLikeTime"`
	CooldownProgress  float64 `json:"cooldownProgress"`
	CooldownPhase     string  `json:"cooldownPhase"`
	ParentSuperLikeID string  `json:"parentSuperLikeID,omitempty"`

	HasBookmarked     bool   `json:"hasBookmarked"`
	IsLoadingBookmark bool   `json:"isLoadingBookmark"`
	BookmarkID        string `json:"bookmarkID,omitempty"`

	HasFollowedCreator    bool `json:"hasFollowedCreator"`
	IsLoadingFollowStatus bool `json:"isLoadingFollowStatus"`

	Viewer Viewer `json:"viewer"`
}

// IsMaxLike reports whether the viewer used up their likes.
func (s State) IsMaxLike() bool { return s.LikeCount >= MaxLike }

// IsCoolingDown reports whether a super-like countdown is showing.
func (s State) IsCoolingDown() bool { return s.CooldownProgress > 0 }

// CanSuperLikeNow is true when the next click would send a super-like.
func (s State) CanSuperLikeNow() bool {
	return s.IsMaxLike() && s.CanSuperLike && s.CooldownProgress <= 0
}

type state struct {
	likeCount int
	likeSent  int
	totalLike int

	canSuperLike      bool
	hasSuperLiked     bool
	nextSuperLikeTime int64
	cooldown          int
	phase             Phase
	parentSuperLikeID string

	hasBookmarked     bool
	isLoadingBookmark bool
	bookmarkID        string

	hasFollowedCreator    bool
	isLoadingFollowStatus bool

	viewer Viewer
}

func newState(parentSuperLikeID string, cookieSupport bool) state {
	return state{
		nextSuperLikeTime: -1,
		parentSuperLikeID: parentSuperLikeID,
		isLoadingBookmark: true,
		viewer:            Viewer{HasCookieSupport: cookieSupport},
	}
}

func (s *state) setLikeCount(v int) {
	if v > MaxLike {
		v = MaxLike
	}
	if v < 0 {
		v = 0
	}
	s.likeCount = v
}

func (s *state) snapshot() State {
	return State{
		LikeCount:             s.likeCount,
		LikeSent:              s.likeSent,
		TotalLike:             s.totalLike,
		CanSuperLike:          s.canSuperLike,
		HasSuperLiked:         s.hasSuperLiked,
		NextSuperLikeTime:     s.nextSuperLikeTime,
		CooldownProgress:      float64(s.cooldown) / 100,
		CooldownPhase:         s.phase.String(),
		ParentSuperLikeID:     s.parentSuperLikeID,
		HasBookmarked:         s.hasBookmarked,
		IsLoadingBookmark:     s.isLoadingBookmark,
		BookmarkID:            s.bookmarkID,
		HasFollowedCreator:    s.hasFollowedCreator,
		IsLoadingFollowStatus: s.isLoadingFollowStatus,
		Viewer:                s.viewer,
	}
}
