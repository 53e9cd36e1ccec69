package models

// Post is a feed item as served to clients. Engagement counts are
// denormalized onto the row by the surrounding application.
type Post struct {
	ID           int64    `json:"id"`
	AuthorID     int64    `json:"authorId"`
	Content      string   `json:"content"`
	CreatedAt    int64    `json:"createdAt"`
	LikeCount    int64    `json:"likeCount"`
	CommentCount int64    `json:"commentCount"`
	Media        []string `json:"media,omitempty"`

	// Followed is true when the viewer follows the author. Set by the
	// candidate fetcher, used for the affinity boost when feeds mix
	// followed and discovery content.
	Followed bool `json:"followed"`

	Hidden bool `json:"-"`
}

// RankedPost pairs a post with its computed score.
type RankedPost struct {
	Post
	Score float64 `json:"-"`
}

// FollowEdge is a (follower, following) pair with no payload.
type FollowEdge struct {
	FollowerID  int64 `json:"followerId"`
	FollowingID int64 `json:"followingId"`
	CreatedAt   int64 `json:"createdAt"`
}

// SeenItemRef identifies an item a viewer has been shown. Type is
// "post" for now; profile suggestions reuse the same ledger.
type SeenItemRef struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// SeenRecord is a row in the seen-item ledger.
type SeenRecord struct {
	ViewerID   int64  `json:"viewerId"`
	ItemID     int64  `json:"itemId"`
	ItemType   string `json:"itemType"`
	LastSeenAt int64  `json:"lastSeenAt"`
}

// FeedPage is one page of a paginated feed. Cursor is nil when the
// traversal is exhausted.
type FeedPage struct {
	Items      []Post  `json:"items"`
	NextCursor *string `json:"nextCursor"`
}
