package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/emilythestrangee/warroom/backend/internal/conversations"
	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/votes"
)

// view is the part of a session the renderer reads.
type view interface {
	UserID() string
	Conversations() []conversations.Conversation
	Unread() int
	Threads() []models.Thread
	Posts() []models.Post
	Ledger(postID string) votes.Ledger
}

func render(v view) string {
	var b strings.Builder
	fmt.Fprintf(&b, "user %s, %d unread\n", v.UserID(), v.Unread())

	convs := tablewriter.NewWriter(&b)
	convs.SetHeader([]string{"Peer", "Last message", "At", "Unread"})
	convs.SetAutoWrapText(false)
	for _, c := range v.Conversations() {
		convs.Append([]string{
			c.Peer.Username,
			truncate(c.LastMessage.Content, 40),
			c.LastMessage.CreatedAt.Format("2006-01-02 15:04"),
			strconv.Itoa(c.UnreadCount),
		})
	}
	convs.Render()

	if list := v.Threads(); len(list) > 0 {
		board := tablewriter.NewWriter(&b)
		board.SetHeader([]string{"Thread", "Title", "Category", "Views"})
		board.SetAutoWrapText(false)
		for _, th := range list {
			title := truncate(th.Title, 40)
			if th.IsPinned {
				title = "* " + title
			}
			board.Append([]string{truncate(th.ID, 8), title, th.Category, strconv.Itoa(th.ViewCount)})
		}
		board.Render()
	}

	if posts := v.Posts(); len(posts) > 0 {
		table := tablewriter.NewWriter(&b)
		table.SetHeader([]string{"Post", "Content", "Up", "Down", "Score", "Mine"})
		table.SetAutoWrapText(false)
		for _, p := range posts {
			l := v.Ledger(p.ID)
			table.Append([]string{
				truncate(p.ID, 8),
				truncate(p.Content, 40),
				strconv.Itoa(l.Tally.Up),
				strconv.Itoa(l.Tally.Down),
				strconv.Itoa(l.Tally.Score()),
				l.Vote.String(),
			})
		}
		table.Render()
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
