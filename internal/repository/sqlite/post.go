package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/social-demo/internal/apperror"
	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/repository"
)

// PostDB implements repository.PostRepository.
type PostDB struct {
	db *DB
}

var _ repository.PostRepository = (*PostDB)(nil)

// Create inserts a post and fills in post.ID. Reactions and comments on the
// passed struct are ignored; a new post starts with none.
func (p *PostDB) Create(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC()
	res, err := p.db.conn.ExecContext(ctx,
		`INSERT INTO posts (author_id, title, text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		post.AuthorID,
		post.Title,
		post.Text,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading post id: %w", err)
	}
	post.ID = id
	post.Reactions = []model.Reaction{}
	post.Comments = []model.Comment{}
	return nil
}

// GetByID loads one post with its reactions and comments in insertion order.
func (p *PostDB) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	var post model.Post

	err := p.db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id, author_id, title, text FROM posts WHERE id = ?`, id,
		).Scan(&post.ID, &post.AuthorID, &post.Title, &post.Text)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("post", strconv.FormatInt(id, 10))
			}
			return fmt.Errorf("sqlite: getting post %d: %w", id, err)
		}

		byPost := map[int64]*model.Post{post.ID: &post}
		if err := loadReactions(ctx, tx, `WHERE post_id = ?`, []any{id}, byPost); err != nil {
			return err
		}
		return loadComments(ctx, tx, `WHERE post_id = ?`, []any{id}, byPost)
	})
	if err != nil {
		return nil, err
	}

	return &post, nil
}

// List returns every post, newest id first.
//
// Three queries instead of N+1: posts, then all reactions, then all comments,
// stitched together in memory by post id. Each *sql.Rows is closed before the
// next query starts (see the single-connection note in sqlite.go).
func (p *PostDB) List(ctx context.Context) ([]model.Post, error) {
	var posts []model.Post

	err := p.db.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, author_id, title, text FROM posts ORDER BY id DESC`)
		if err != nil {
			return fmt.Errorf("sqlite: listing posts: %w", err)
		}

		posts = make([]model.Post, 0)
		for rows.Next() {
			var post model.Post
			if err := rows.Scan(&post.ID, &post.AuthorID, &post.Title, &post.Text); err != nil {
				rows.Close()
				return fmt.Errorf("sqlite: scanning post row: %w", err)
			}
			posts = append(posts, post)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite: iterating posts: %w", err)
		}
		rows.Close()

		// Index into the slice only after it has stopped growing.
		byPost := make(map[int64]*model.Post, len(posts))
		for i := range posts {
			byPost[posts[i].ID] = &posts[i]
		}

		if err := loadReactions(ctx, tx, "", nil, byPost); err != nil {
			return err
		}
		return loadComments(ctx, tx, "", nil, byPost)
	})
	if err != nil {
		return nil, err
	}

	return posts, nil
}

// Update writes title and text. Reactions and comments live in their own
// tables, so a concurrent react/comment can never be overwritten by an edit.
func (p *PostDB) Update(ctx context.Context, post *model.Post) error {
	result, err := p.db.conn.ExecContext(ctx,
		`UPDATE posts SET title = ?, text = ?, updated_at = ? WHERE id = ?`,
		post.Title,
		post.Text,
		time.Now().UTC(),
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %d: %w", post.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", strconv.FormatInt(post.ID, 10))
	}
	return nil
}

// Delete removes a post; ON DELETE CASCADE drops its reactions and comments.
func (p *PostDB) Delete(ctx context.Context, id int64) error {
	result, err := p.db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	return nil
}

// AddReaction appends a reaction. No uniqueness of any kind is enforced.
func (p *PostDB) AddReaction(ctx context.Context, postID int64, reaction model.Reaction) error {
	return p.db.withTx(ctx, func(tx *sql.Tx) error {
		if err := postExists(ctx, tx, postID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reactions (post_id, user_id, reaction, created_at) VALUES (?, ?, ?, ?)`,
			postID, reaction.UserID, reaction.Reaction, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: adding reaction to post %d: %w", postID, err)
		}
		return nil
	})
}

// AddComment appends a comment whose id is max(id within the post) + 1.
// The MAX and the INSERT share a transaction, and the (post_id, id) primary
// key rejects any duplicate that would slip through.
func (p *PostDB) AddComment(ctx context.Context, postID int64, comment *model.Comment) error {
	return p.db.withTx(ctx, func(tx *sql.Tx) error {
		if err := postExists(ctx, tx, postID); err != nil {
			return err
		}

		var maxID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(id), 0) FROM comments WHERE post_id = ?`, postID,
		).Scan(&maxID); err != nil {
			return fmt.Errorf("sqlite: reading max comment id: %w", err)
		}
		comment.ID = maxID + 1

		_, err := tx.ExecContext(ctx,
			`INSERT INTO comments (post_id, id, user_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			postID, comment.ID, comment.UserID, comment.Text, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: adding comment to post %d: %w", postID, err)
		}
		return nil
	})
}

func postExists(ctx context.Context, tx *sql.Tx, postID int64) error {
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE id = ?`, postID,
	).Scan(&n); err != nil {
		return fmt.Errorf("sqlite: checking post %d: %w", postID, err)
	}
	if n == 0 {
		return apperror.NotFound("post", strconv.FormatInt(postID, 10))
	}
	return nil
}

// loadReactions appends reactions to the posts in byPost. Posts with no
// reactions still end up with an empty, non-nil slice.
func loadReactions(ctx context.Context, tx *sql.Tx, where string, args []any, byPost map[int64]*model.Post) error {
	for _, post := range byPost {
		post.Reactions = []model.Reaction{}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT post_id, user_id, reaction FROM reactions `+where+` ORDER BY seq`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: listing reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID int64
			r      model.Reaction
		)
		if err := rows.Scan(&postID, &r.UserID, &r.Reaction); err != nil {
			return fmt.Errorf("sqlite: scanning reaction row: %w", err)
		}
		if post, ok := byPost[postID]; ok {
			post.Reactions = append(post.Reactions, r)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating reactions: %w", err)
	}
	return nil
}

func loadComments(ctx context.Context, tx *sql.Tx, where string, args []any, byPost map[int64]*model.Post) error {
	for _, post := range byPost {
		post.Comments = []model.Comment{}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT post_id, id, user_id, text FROM comments `+where+` ORDER BY post_id, id`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: listing comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID int64
			c      model.Comment
		)
		if err := rows.Scan(&postID, &c.ID, &c.UserID, &c.Text); err != nil {
			return fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		if post, ok := byPost[postID]; ok {
			post.Comments = append(post.Comments, c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return nil
}
