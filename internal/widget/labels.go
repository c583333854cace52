package widget

// Locale keys of the button labels.
const (
	LabelLikeCount    = "LikeCountLabel"
	LabelSuperLikeNow = "SuperLikeNow"
	LabelSave         = "Save"
	LabelSaved        = "Saved"
	LabelFollow       = "Follow"
	LabelFollowing    = "Following"
)

// LikeLabel is the like button caption key. It switches to the super-like prompt once
// the next click would send one.
func (s State) LikeLabel() string {
	if s.CanSuperLikeNow() {
		return LabelSuperLikeNow
	}
	return LabelLikeCount
}

// SaveLabel is the bookmark button caption key.
func (s State) SaveLabel() string {
	if s.HasBookmarked {
		return LabelSaved
	}
	return LabelSave
}

// FollowLabel is the avatar caption key.
func (s State) FollowLabel() string {
	if s.HasFollowedCreator {
		return LabelFollowing
	}
	return LabelFollow
}
