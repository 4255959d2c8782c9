package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/blogkeeper/internal/client/models"
)

func (a *App) Comment(ctx context.Context, rawPostID string) error {
	postID, err := models.ParseID(rawPostID)
	if err != nil {
		a.println("Invalid post id:", rawPostID)
		return err
	}

	content, err := getSimpleText(a.reader, "Comment", a.out)
	if err != nil {
		return err
	}

	in := models.CommentInput{PostID: postID, Content: strings.TrimSpace(content)}
	if err := models.Validate(in); err != nil {
		a.println(err.Error())
		return err
	}

	if err := a.comments.Add(ctx, postID, in.Content, a.session.Token()); err != nil {
		a.println("Error:", a.comments.Err())
		return err
	}
	a.printf("Comment added, %d in thread.\n", a.comments.Count(postID))
	return nil
}

func (a *App) Uncomment(ctx context.Context, rawPostID, rawCommentID string) error {
	postID, err := models.ParseID(rawPostID)
	if err != nil {
		a.println("Invalid post id:", rawPostID)
		return err
	}
	commentID, err := models.ParseID(rawCommentID)
	if err != nil {
		a.println("Invalid comment id:", rawCommentID)
		return err
	}

	if a.comments.Count(postID) > 0 && !hasComment(a.comments.Comments(postID), commentID) {
		a.println("No such comment on this post.")
		return errors.New("comment not in thread")
	}

	if err := a.comments.Delete(ctx, commentID, postID, a.session.Token()); err != nil {
		a.println("Error:", a.comments.Err())
		return err
	}
	a.printf("Comment deleted, %d left in thread.\n", a.comments.Count(postID))
	return nil
}

func hasComment(thread []models.Comment, id models.ID) bool {
	for _, c := range thread {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (a *App) printComments(thread []models.Comment) {
	switch len(thread) {
	case 0:
		a.println("No comments yet.")
		return
	case 1:
		a.println("1 comment:")
	default:
		a.printf("%d comments:\n", len(thread))
	}
	for _, c := range thread {
		a.printf("  [%s] %s: %s\n", c.ID, author(c.Author, c.AuthorID), c.Content)
	}
}
