package model

// Post is a text post with its append-only reactions and comments.
//
// Reactions and Comments are always non-nil slices so they serialise as []
// rather than null.
type Post struct {
	ID        int64      `json:"id"`
	AuthorID  int64      `json:"authorId"`
	Title     string     `json:"title"`
	Text      string     `json:"text"`
	Reactions []Reaction `json:"reactions"`
	Comments  []Comment  `json:"comments"`
}

// Reaction is a free-form short string (usually an emoji). The same user may
// react any number of times, including with the same value.
type Reaction struct {
	UserID   int64  `json:"userId"`
	Reaction string `json:"reaction"`
}

// Comment ids are unique only within their post.
type Comment struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Text   string `json:"text"`
}

// UnknownUsername is shown for reactions, comments and authors whose user
// record no longer resolves.
const UnknownUsername = "Unknown"

// PostDetail is the joined view served by GET /api/posts/{postId}.
// AuthorImage is nil (JSON null) when the author cannot be resolved.
type PostDetail struct {
	ID          int64            `json:"id"`
	AuthorID    int64            `json:"authorId"`
	Title       string           `json:"title"`
	Text        string           `json:"text"`
	AuthorName  string           `json:"authorName"`
	AuthorImage *string          `json:"authorImage"`
	Reactions   []ReactionDetail `json:"reactions"`
	Comments    []CommentDetail  `json:"comments"`
}

type ReactionDetail struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Reaction string `json:"reaction"`
}

type CommentDetail struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// NextCommentID returns max(comment ids) + 1, or 1 for a post with no comments.
func (p *Post) NextCommentID() int64 {
	var maxID int64
	for _, c := range p.Comments {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	return maxID + 1
}
