package feeds

import (
	"fmt"

	"canter/models"
)

// Paginate cuts one page out of a ranked list. The cursor holds the
// rank key of the last item delivered on the previous page; the page
// resumes strictly after it. Returns the page and the encoded cursor
// for the next page, nil at end of feed.
func Paginate(ranked []models.RankedPost, cursor Cursor, pageSize int, epsilon float64) ([]models.RankedPost, *string, error) {
	if pageSize <= 0 {
		return nil, nil, fmt.Errorf("%w: page size must be positive", ErrInvalidArgument)
	}

	start := 0
	if !cursor.IsZero() {
		start = seek(ranked, cursor, epsilon)
	}

	end := start + pageSize
	if end > len(ranked) {
		end = len(ranked)
	}
	page := ranked[start:end]

	var nextCursor *string
	if end < len(ranked) && len(page) > 0 {
		last := page[len(page)-1]
		token := EncodeCursor(Cursor{
			Anchor:    cursor.Anchor,
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
			Score:     last.Score,
		})
		nextCursor = &token
	}

	return page, nextCursor, nil
}

// seek finds the resume index for a cursor key. The exact item is
// normally still present since ranking is deterministic for a
// snapshot; if it was deleted between requests the seek degrades to
// the first item sorting strictly after the cursor under the same
// comparator that ordered the list. The list is score-ordered, so the
// fallback must compare scores first: a recency-keyed scan would land
// below high-scoring older posts and serve them a second time.
func seek(ranked []models.RankedPost, cursor Cursor, epsilon float64) int {
	for i, item := range ranked {
		if item.CreatedAt == cursor.CreatedAt && item.ID == cursor.ID {
			return i + 1
		}
	}

	key := models.RankedPost{
		Post:  models.Post{ID: cursor.ID, CreatedAt: cursor.CreatedAt},
		Score: cursor.Score,
	}
	for i, item := range ranked {
		if rankedLess(key, item, epsilon) {
			return i
		}
	}
	return len(ranked)
}
