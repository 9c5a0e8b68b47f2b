// Package jsonfile implements the repositories on top of a single JSON
// document holding every user and post:
//
//	{ "users": [...], "posts": [...], "sequences": {"users": 3, "posts": 9} }
//
// Every repository call is one read-modify-write cycle over the whole file:
// take the store mutex, Load the document, mutate it, Save it back. Save goes
// through atomicwriter (temp file, fsync, rename), so a crash mid-write leaves
// either the old or the new document on disk, never a torn one.
//
// CONSISTENCY:
// The mutex serialises cycles within one process, which removes the lost
// update you would get from two unsynchronised read-modify-write cycles.
// Separate processes sharing the file are NOT coordinated; use the sqlite
// driver for that.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/moby/sys/atomicwriter"

	"github.com/sakif/social-demo/internal/apperror"
	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/repository"
)

// Document is the full persisted state.
type Document struct {
	Users     []UserRecord `json:"users"`
	Posts     []model.Post `json:"posts"`
	Sequences Sequences    `json:"sequences"`
}

// Sequences hold the last id handed out per collection. They only ever grow,
// so a deleted post's id is never assigned again. Files written before the
// counters existed start from the largest id present.
type Sequences struct {
	Users int64 `json:"users"`
	Posts int64 `json:"posts"`
}

// UserRecord is the on-disk shape of a user. Unlike model.User it persists
// the password hash.
type UserRecord struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Password     *string `json:"password"`
	Name         string  `json:"name"`
	ProfileImage string  `json:"profileImage"`
	Verified     bool    `json:"verified"`
	GoogleID     *string `json:"googleId,omitempty"`
}

func (r UserRecord) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		Username:     r.Username,
		Password:     r.Password,
		Name:         r.Name,
		ProfileImage: r.ProfileImage,
		Verified:     r.Verified,
		GoogleID:     r.GoogleID,
	}
}

// Store is a file-backed repository.Store.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ repository.Store = (*Store)(nil)

// Open returns a Store for path, creating the parent directory and an empty
// document if the file does not exist yet. An existing file must parse.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: creating data directory: %w", err)
	}

	s := &Store{path: path}

	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := s.save(&Document{}); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, apperror.IO("jsonfile: checking "+path, err)
	default:
		if _, err := s.load(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Close is a no-op; nothing is held open between operations.
func (s *Store) Close() error { return nil }

func (s *Store) Users() repository.UserRepository { return &userRepo{store: s} }
func (s *Store) Posts() repository.PostRepository { return &postRepo{store: s} }

// Load returns the entire persisted state. An unreadable or malformed file
// is reported as apperror.ErrIO.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save overwrites the entire persisted state atomically.
func (s *Store) Save(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

// update runs one locked read-modify-write cycle. When fn fails nothing is
// written.
func (s *Store) update(ctx context.Context, fn func(doc *Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

// view runs fn against a freshly loaded document without writing it back.
func (s *Store) view(ctx context.Context, fn func(doc *Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

func (s *Store) load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperror.IO("jsonfile: reading "+s.path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperror.IO("jsonfile: parsing "+s.path, err)
	}

	doc.normalize()
	return &doc, nil
}

func (s *Store) save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding document: %w", err)
	}
	if err := atomicwriter.WriteFile(s.path, data, 0o644); err != nil {
		return apperror.IO("jsonfile: writing "+s.path, err)
	}
	return nil
}

// normalize fills nil collections and lifts the sequences to at least the
// largest stored id.
func (d *Document) normalize() {
	if d.Users == nil {
		d.Users = []UserRecord{}
	}
	if d.Posts == nil {
		d.Posts = []model.Post{}
	}
	for i := range d.Users {
		if d.Users[i].ID > d.Sequences.Users {
			d.Sequences.Users = d.Users[i].ID
		}
	}
	for i := range d.Posts {
		p := &d.Posts[i]
		if p.Reactions == nil {
			p.Reactions = []model.Reaction{}
		}
		if p.Comments == nil {
			p.Comments = []model.Comment{}
		}
		if p.ID > d.Sequences.Posts {
			d.Sequences.Posts = p.ID
		}
	}
}

func (d *Document) nextUserID() int64 {
	d.Sequences.Users++
	return d.Sequences.Users
}

func (d *Document) nextPostID() int64 {
	d.Sequences.Posts++
	return d.Sequences.Posts
}
