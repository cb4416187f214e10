package session

import (
	"context"

	"github.com/emilythestrangee/warroom/backend/internal/realtime"
)

func (s *Session) merger() *realtime.Merger {
	m := realtime.NewMerger(s.log)
	m.Handle(realtime.Messages, realtime.HandlerFunc(s.mergeMessage))
	m.Handle(realtime.Votes, realtime.HandlerFunc(s.mergeVote))
	m.Handle(realtime.Posts, realtime.HandlerFunc(s.mergePost))
	m.Handle(realtime.Threads, realtime.HandlerFunc(s.mergeThread))
	return m
}

func (s *Session) mergeMessage(ctx context.Context, e realtime.Event) error {
	in := s.mailbox()
	switch e.Operation {
	case realtime.Insert:
		return in.MergeInserted(ctx, e.ID)
	case realtime.Update:
		return in.MergeUpdated(ctx, e.ID)
	default:
		s.log.DebugContext(ctx, "message event ignored", "event", e.String())
		return nil
	}
}

// mergeVote recounts the post from the store whatever the operation. The
// viewer's own row is re-read only when the change was theirs.
func (s *Session) mergeVote(ctx context.Context, e realtime.Event) error {
	m := s.machine()
	if !m.Tracks(e.PostID) {
		return nil
	}
	return m.Recount(ctx, e.PostID, e.UserID == s.UserID())
}

func (s *Session) mergePost(ctx context.Context, e realtime.Event) error {
	if e.Operation != realtime.Insert {
		s.log.DebugContext(ctx, "post event ignored", "event", e.String())
		return nil
	}
	s.mu.Lock()
	f := s.thread
	s.mu.Unlock()
	if f == nil || (e.ThreadID != "" && e.ThreadID != f.ThreadID()) {
		return nil
	}
	added, err := f.MergeInserted(ctx, e.ID)
	if err != nil || !added {
		return err
	}
	return s.machine().Recount(ctx, e.ID, false)
}

// mergeThread refetches the thread list on any thread change.
func (s *Session) mergeThread(ctx context.Context, _ realtime.Event) error {
	s.mu.Lock()
	b := s.board
	s.mu.Unlock()
	return b.Load(ctx)
}
