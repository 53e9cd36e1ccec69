package feeds

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Cursors are opaque to clients: a version tag followed by the
// base64url-encoded traversal anchor and rank key of the last item
// returned. The anchor pins ranking and seen-filtering to the moment
// the traversal started so later pages resume deterministically; the
// rank key (score, created_at, id) keeps pagination stable when new
// posts land above the resume point, which raw offsets cannot.
const cursorVersion = "v1"

// Cursor is the decoded resume state for one feed traversal.
type Cursor struct {
	// Anchor is the unix time the traversal started; ranking and the
	// seen window are evaluated as of this instant on every page.
	Anchor int64
	// CreatedAt, ID and Score form the rank key of the last delivered
	// item, in the same order the ranker sorts by. Zero on the first
	// page.
	CreatedAt int64
	ID        int64
	Score     float64
}

// IsZero reports whether the cursor marks the start of a feed.
func (c Cursor) IsZero() bool {
	return c.CreatedAt == 0 && c.ID == 0
}

// EncodeCursor builds the opaque resume token. The score uses the
// shortest decimal form that round-trips the float64 exactly.
func EncodeCursor(c Cursor) string {
	payload := fmt.Sprintf("%d.%d.%d.%s",
		c.Anchor, c.CreatedAt, c.ID, strconv.FormatFloat(c.Score, 'g', -1, 64))
	return cursorVersion + "." + base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// DecodeCursor parses a resume token. An empty token means start of
// feed and yields the zero cursor. Unknown versions and undecodable
// tokens fail with ErrInvalidArgument so stale clients get a clear
// rejection instead of a silently wrong page.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	version, encoded, found := strings.Cut(token, ".")
	if !found || version != cursorVersion {
		return Cursor{}, fmt.Errorf("%w: unsupported cursor version", ErrInvalidArgument)
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidArgument)
	}

	// The first three fields are integers; the score tail may itself
	// contain a decimal point, so only split three times.
	parts := strings.SplitN(string(payload), ".", 4)
	if len(parts) != 4 {
		return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidArgument)
	}

	var cursor Cursor
	for i, dst := range []*int64{&cursor.Anchor, &cursor.CreatedAt, &cursor.ID} {
		value, err := strconv.ParseInt(parts[i], 10, 64)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidArgument)
		}
		*dst = value
	}

	score, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidArgument)
	}
	cursor.Score = score

	return cursor, nil
}
