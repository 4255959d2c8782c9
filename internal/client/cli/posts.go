package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/client/api"
	"github.com/dmitrijs2005/blogkeeper/internal/client/models"
)

const excerptLen = 60

func (a *App) Posts(ctx context.Context) error {
	list, err := a.posts.Fetch(ctx)
	if err != nil {
		a.println("Could not load posts:", a.posts.Err())
		return err
	}
	a.printPosts(list, "No posts yet.")
	return nil
}

// MyPosts lists the cached posts written by the current user, loading the
// list first when the cache is empty.
func (a *App) MyPosts(ctx context.Context) error {
	u := a.session.User()
	if u == nil {
		a.println("Profile not loaded, try 'whoami' first.")
		return nil
	}

	if a.posts.Count() == 0 {
		if _, err := a.posts.Fetch(ctx); err != nil {
			a.println("Could not load posts:", a.posts.Err())
			return err
		}
	}
	a.printPosts(a.posts.ByAuthor(u.ID), "You have not written any posts yet.")
	return nil
}

func (a *App) Show(ctx context.Context, rawID string) error {
	id, err := models.ParseID(rawID)
	if err != nil {
		a.println("Invalid post id:", rawID)
		return err
	}

	p, err := a.posts.FetchOne(ctx, id)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			a.println("Post not found.")
		} else {
			a.println("Could not load post:", a.posts.Err())
		}
		return err
	}

	a.printf("#%s %s\n", p.ID, p.Title)
	a.printf("by %s, %s\n\n", author(p.Author, p.AuthorID), formatDate(p.CreatedAt))
	a.println(p.Content)
	a.println()

	thread, err := a.comments.Fetch(ctx, id)
	if err != nil {
		a.println("Could not load comments:", a.comments.ErrFor(id))
		return nil
	}
	a.printComments(thread)
	return nil
}

func (a *App) Create(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Content (at least 10 characters)", a.out)
	if err != nil {
		return err
	}

	in := models.PostInput{Title: title, Content: content}
	if err := models.Validate(in); err != nil {
		a.println(err.Error())
		return err
	}

	p, err := a.posts.Create(ctx, in)
	if err != nil {
		a.println("Error:", a.posts.Err())
		return err
	}
	a.printf("Created post #%s.\n", p.ID)
	return nil
}

// Edit loads the post (from cache when possible) and lets the user replace
// title and content. Empty answers keep the current text.
func (a *App) Edit(ctx context.Context, rawID string) error {
	id, err := models.ParseID(rawID)
	if err != nil {
		a.println("Invalid post id:", rawID)
		return err
	}

	p, ok := a.posts.Get(id)
	if !ok {
		if p, err = a.posts.FetchOne(ctx, id); err != nil {
			if errors.Is(err, api.ErrNotFound) {
				a.println("Post not found.")
			} else {
				a.println("Could not load post:", a.posts.Err())
			}
			return err
		}
	}

	if u := a.session.User(); u != nil && !p.WrittenBy(u.ID) {
		a.println("You can only edit your own posts.")
		return nil
	}

	title, err := getSimpleText(a.reader, "Title (empty keeps \""+p.Title+"\")", a.out)
	if err != nil {
		return err
	}
	if title == "" {
		title = p.Title
	}
	content, err := GetMultiline(a.reader, "Content (empty keeps current)", a.out)
	if err != nil {
		return err
	}
	if content == "" {
		content = p.Content
	}

	in := models.PostInput{Title: title, Content: content}
	if err := models.Validate(in); err != nil {
		a.println(err.Error())
		return err
	}

	if _, err := a.posts.Update(ctx, id, in, a.session.Token()); err != nil {
		a.println("Error:", a.posts.Err())
		return err
	}
	a.printf("Updated post #%s.\n", id)
	return nil
}

func (a *App) Delete(ctx context.Context, rawID string) error {
	id, err := models.ParseID(rawID)
	if err != nil {
		a.println("Invalid post id:", rawID)
		return err
	}

	if !confirm(a.reader, fmt.Sprintf("Delete post #%s?", id), a.out) {
		a.println("Cancelled.")
		return nil
	}

	if err := a.posts.Delete(ctx, id, a.session.Token()); err != nil {
		a.println("Error:", a.posts.Err())
		return err
	}
	a.comments.Clear(id)
	a.printf("Deleted post #%s.\n", id)
	return nil
}

func (a *App) printPosts(list []models.Post, empty string) {
	if len(list) == 0 {
		a.println(empty)
		return
	}
	for _, p := range list {
		a.printf("#%-4s %s  (%s, %s)\n", p.ID, p.Title, author(p.Author, p.AuthorID), formatDate(p.CreatedAt))
		if ex := excerpt(p.Content); ex != "" {
			a.printf("      %s\n", ex)
		}
	}
}

func author(u *models.User, id models.ID) string {
	if u != nil {
		return u.DisplayName()
	}
	if id != 0 {
		return "user " + id.String()
	}
	return "unknown"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "undated"
	}
	return t.Local().Format(time.DateOnly)
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen]) + "..."
}
