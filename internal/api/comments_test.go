package api

import (
	"net/http"
	"testing"

	"postboard/internal/models"
)

func TestCreateCommentIncludesAuthor(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")
	post := createPost(t, ts, alice.AccessToken, "post")

	rr := ts.do(http.MethodPost, "/comment", CreateCommentRequest{PostID: post.ID, Content: "nice <i>post</i>"}, bob.AccessToken)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}
	comment := decodeJSON[models.Comment](t, rr)
	if comment.Content != "nice post" {
		t.Fatalf("content = %q, want %q", comment.Content, "nice post")
	}
	if comment.Author == nil || comment.Author.Username != "bob" {
		t.Fatalf("author = %+v, want bob", comment.Author)
	}
}

func TestCreateCommentOnMissingPost(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")

	rr := ts.do(http.MethodPost, "/comment", CreateCommentRequest{PostID: "missing", Content: "hello"}, alice.AccessToken)
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)
}

func TestListCommentsByPost(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")
	post := createPost(t, ts, alice.AccessToken, "post")
	other := createPost(t, ts, alice.AccessToken, "other")

	for _, c := range []struct {
		token, postID, content string
	}{
		{bob.AccessToken, post.ID, "one"},
		{alice.AccessToken, post.ID, "two"},
		{bob.AccessToken, other.ID, "elsewhere"},
	} {
		rr := ts.do(http.MethodPost, "/comment", CreateCommentRequest{PostID: c.postID, Content: c.content}, c.token)
		if rr.Code != http.StatusCreated {
			t.Fatalf("create status = %d, body=%q", rr.Code, rr.Body.String())
		}
	}

	rr := ts.do(http.MethodGet, "/comment?post_id="+post.ID, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}
	comments := decodeJSON[[]models.Comment](t, rr)
	if len(comments) != 2 || comments[0].Content != "one" || comments[1].Content != "two" {
		t.Fatalf("comments = %+v, want [one two]", comments)
	}
	if comments[1].Author == nil || comments[1].Author.ID != alice.ID {
		t.Fatalf("author = %+v, want alice", comments[1].Author)
	}

	rr = ts.do(http.MethodGet, "/comment", nil, "")
	requireError(t, rr, http.StatusBadRequest, ErrCodeInvalidRequest)
}

func TestUpdateAndDeleteCommentAreOwnerOnly(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")
	post := createPost(t, ts, alice.AccessToken, "post")

	rr := ts.do(http.MethodPost, "/comment", CreateCommentRequest{PostID: post.ID, Content: "mine"}, bob.AccessToken)
	comment := decodeJSON[models.Comment](t, rr)

	rr = ts.do(http.MethodPut, "/comment/"+comment.ID, UpdateCommentRequest{Content: "theirs"}, alice.AccessToken)
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)

	rr = ts.do(http.MethodDelete, "/comment/"+comment.ID, nil, alice.AccessToken)
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)

	rr = ts.do(http.MethodPut, "/comment/"+comment.ID, UpdateCommentRequest{Content: "edited"}, bob.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body=%q", rr.Code, rr.Body.String())
	}
	if got := decodeJSON[models.Comment](t, rr).Content; got != "edited" {
		t.Fatalf("content = %q, want edited", got)
	}

	rr = ts.do(http.MethodDelete, "/comment/"+comment.ID, nil, bob.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body=%q", rr.Code, rr.Body.String())
	}
	if got := decodeJSON[DeleteCommentResponse](t, rr).ID; got != comment.ID {
		t.Fatalf("id = %q, want %q", got, comment.ID)
	}

	rr = ts.do(http.MethodGet, "/comment/"+comment.ID, nil, "")
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)
}

func TestDeletePostRemovesComments(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")
	post := createPost(t, ts, alice.AccessToken, "post")

	rr := ts.do(http.MethodPost, "/comment", CreateCommentRequest{PostID: post.ID, Content: "soon gone"}, alice.AccessToken)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}

	rr = ts.do(http.MethodDelete, "/post/"+post.ID, nil, alice.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.do(http.MethodGet, "/comment?post_id="+post.ID, nil, "")
	if comments := decodeJSON[[]models.Comment](t, rr); len(comments) != 0 {
		t.Fatalf("comments = %+v, want none", comments)
	}
}
