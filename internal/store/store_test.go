package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// mustCreateSession creates a session or fails the test.
func mustCreateSession(t *testing.T, s *SQLiteStore) string {
	t.Helper()
	id, err := s.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return id
}

func Test_Store_CreateSessionReturnsUniqueIDs(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	a := mustCreateSession(t, s)
	b := mustCreateSession(t, s)

	if a == "" || b == "" {
		t.Fatal("session IDs must be non-empty")
	}
	if a == b {
		t.Fatalf("session IDs must be unique, got %s twice", a)
	}
}

func Test_Store_SaveAndHistoryRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	sid := mustCreateSession(t, s)

	cu := &ContextUsed{
		Chunks: []ChunkRef{
			{Title: "ROS2 Basics", FilePath: "ros2/basics.md", RelevanceScore: 0.81},
			{Title: "ROS2 Basics", FilePath: "ros2/nodes.md", RelevanceScore: 0.70},
		},
		RetrievalCount: 2,
	}

	if _, err := s.SaveMessage(ctx, sid, RoleUser, "what is ROS2?", "a selected passage", nil); err != nil {
		t.Fatalf("save user message: %v", err)
	}
	if _, err := s.SaveMessage(ctx, sid, RoleAssistant, "ROS2 is a robotics middleware.", "", cu); err != nil {
		t.Fatalf("save assistant message: %v", err)
	}

	msgs, err := s.History(ctx, sid)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}

	user, assistant := msgs[0], msgs[1]
	if user.Role != RoleUser || user.Content != "what is ROS2?" {
		t.Errorf("user message: got %s/%q", user.Role, user.Content)
	}
	if user.SelectedText != "a selected passage" {
		t.Errorf("selected text: want %q, got %q", "a selected passage", user.SelectedText)
	}
	if user.ContextUsed != nil {
		t.Errorf("user message must not carry context, got %+v", user.ContextUsed)
	}

	if assistant.Role != RoleAssistant {
		t.Errorf("assistant role: got %s", assistant.Role)
	}
	if assistant.ContextUsed == nil {
		t.Fatal("assistant message must carry context")
	}
	if assistant.ContextUsed.RetrievalCount != 2 {
		t.Errorf("retrieval count: want 2, got %d", assistant.ContextUsed.RetrievalCount)
	}
	if len(assistant.ContextUsed.Chunks) != 2 {
		t.Fatalf("want 2 chunk refs, got %d", len(assistant.ContextUsed.Chunks))
	}
	if got := assistant.ContextUsed.Chunks[0]; got.Title != "ROS2 Basics" || got.FilePath != "ros2/basics.md" || got.RelevanceScore != 0.81 {
		t.Errorf("chunk ref round-trip mismatch: %+v", got)
	}
}

func Test_Store_HistoryOrderedOldestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	sid := mustCreateSession(t, s)

	contents := []string{"first", "second", "third", "fourth"}
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if _, err := s.SaveMessage(ctx, sid, role, c, "", nil); err != nil {
			t.Fatalf("save %q: %v", c, err)
		}
	}

	msgs, err := s.History(ctx, sid)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("want %d messages, got %d", len(contents), len(msgs))
	}
	for i, want := range contents {
		if msgs[i].Content != want {
			t.Errorf("msg[%d]: want %q, got %q", i, want, msgs[i].Content)
		}
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Errorf("created_at not non-decreasing at index %d", i)
		}
	}
}

func Test_Store_HistoryUnknownSessionIsEmptyNotError(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	msgs, err := s.History(context.Background(), "b3b9c1de-0000-4000-8000-000000000000")
	if err != nil {
		t.Fatalf("history for unknown session must not error, got %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("want empty history, got %d messages", len(msgs))
	}
}

func Test_Store_SessionIsolation(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	sidA := mustCreateSession(t, s)
	sidB := mustCreateSession(t, s)

	if _, err := s.SaveMessage(ctx, sidA, RoleUser, "from a", "", nil); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if _, err := s.SaveMessage(ctx, sidB, RoleUser, "from b", "", nil); err != nil {
		t.Fatalf("save b: %v", err)
	}

	msgsA, err := s.History(ctx, sidA)
	if err != nil {
		t.Fatalf("history a: %v", err)
	}
	if len(msgsA) != 1 || msgsA[0].Content != "from a" {
		t.Errorf("session a isolation failed: %+v", msgsA)
	}
}

func Test_Store_SaveMessageRejectsBadRole(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	sid := mustCreateSession(t, s)

	_, err := s.SaveMessage(context.Background(), sid, Role("system"), "hi", "", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError for bad role, got %v", err)
	}
	if verr.Field != "role" {
		t.Errorf("want role violation, got %s", verr.Field)
	}

	msgs, _ := s.History(context.Background(), sid)
	if len(msgs) != 0 {
		t.Errorf("rejected message must not be written, got %d rows", len(msgs))
	}
}

func Test_Store_SaveMessageRejectsContentLength(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	sid := mustCreateSession(t, s)

	cases := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"over maximum", strings.Repeat("x", MaxContentLen+1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.SaveMessage(ctx, sid, RoleUser, tc.content, "", nil)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if verr.Field != "content" {
				t.Errorf("want content violation, got %s", verr.Field)
			}
		})
	}

	msgs, _ := s.History(ctx, sid)
	if len(msgs) != 0 {
		t.Errorf("rejected messages must not be written, got %d rows", len(msgs))
	}
}

func Test_Store_SaveMessageAcceptsMaxLengthContent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	sid := mustCreateSession(t, s)

	if _, err := s.SaveMessage(context.Background(), sid, RoleUser, strings.Repeat("x", MaxContentLen), "", nil); err != nil {
		t.Fatalf("content of exactly %d chars must be accepted: %v", MaxContentLen, err)
	}
}

func Test_Store_ContentLengthCountsCharactersNotBytes(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	sid := mustCreateSession(t, s)

	// 5000 characters but 15000 bytes — within the character limit.
	multibyte := strings.Repeat("日", 5000)
	if _, err := s.SaveMessage(context.Background(), sid, RoleUser, multibyte, "", nil); err != nil {
		t.Fatalf("multibyte content of 5000 chars must be accepted: %v", err)
	}

	var verr *ValidationError
	_, err := s.SaveMessage(context.Background(), sid, RoleUser, strings.Repeat("日", MaxContentLen+1), "", nil)
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError for %d chars, got %v", MaxContentLen+1, err)
	}
}

func Test_Store_SaveMessageUnknownSessionFails(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	// Foreign key enforcement: a message write never creates a session.
	_, err := s.SaveMessage(context.Background(), "b3b9c1de-0000-4000-8000-000000000001", RoleUser, "orphan", "", nil)
	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("want StoreError for unknown session, got %v", err)
	}
}

func Test_Store_HealthCheck(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check on open store: %v", err)
	}
}
