package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, ID(42), id)

	_, err = ParseID("abc")
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = ParseID("")
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestID_UnmarshalJSON_NumberAndStringAreEqual(t *testing.T) {
	var fromNumber, fromString struct {
		ID ID `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id": 17}`), &fromNumber))
	require.NoError(t, json.Unmarshal([]byte(`{"id": "17"}`), &fromString))

	assert.Equal(t, fromNumber.ID, fromString.ID)
	assert.Equal(t, ID(17), fromString.ID)
}

func TestID_UnmarshalJSON_Rejects(t *testing.T) {
	for _, in := range []string{`{"id":"x1"}`, `{"id":1.5}`, `{"id":true}`} {
		var v struct {
			ID ID `json:"id"`
		}
		err := json.Unmarshal([]byte(in), &v)
		require.ErrorIs(t, err, ErrInvalidID, in)
	}
}

func TestID_NullLeavesZero(t *testing.T) {
	var v struct {
		ID ID `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":null}`), &v))
	assert.Zero(t, v.ID)
}

func TestID_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(CommentInput{PostID: 9, Content: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"postId":9,"content":"hi"}`, string(b))
}

func TestPost_WrittenBy(t *testing.T) {
	assert.True(t, Post{AuthorID: 3}.WrittenBy(3))
	assert.False(t, Post{AuthorID: 3}.WrittenBy(4))
	assert.True(t, Post{Author: &User{ID: 5}}.WrittenBy(5))
	assert.False(t, Post{}.WrittenBy(5))
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Ann", User{Name: "Ann", Username: "ann", Email: "a@b.com"}.DisplayName())
	assert.Equal(t, "ann", User{Username: "ann", Email: "a@b.com"}.DisplayName())
	assert.Equal(t, "a@b.com", User{Email: "a@b.com"}.DisplayName())
}
