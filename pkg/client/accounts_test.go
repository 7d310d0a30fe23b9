package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoginAndChats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "u1", body["userId"])
			fmt.Fprint(w, `{"success":true,"data":{"token":"tok"}}`)
		case "/api/chats":
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"success":true,"data":[{"id":"c1","title":"Hello"}]}`)
		case "/api/chats/c1/messages":
			fmt.Fprint(w, `{"success":true,"data":[{"id":"m1","role":"user","content":"Hi"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL, "", nil)

	session, err := c.Login(ctx, "u1", []string{"fox", "owl", "cat"})
	require.NoError(t, err)
	require.Equal(t, "tok", session.Token)
	require.Equal(t, "u1", session.UserID)

	c = c.WithToken(session.Token)
	chats, err := c.Chats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, "Hello", chats[0].Title)

	messages, err := c.Messages(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "Hi", messages[0].Content)

	_, err = c.Personas(ctx)
	require.True(t, IsStatus(err, http.StatusNotFound))
}
