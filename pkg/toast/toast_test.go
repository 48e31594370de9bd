package toast

import "testing"

func TestHelpers(t *testing.T) {
	rec := NewRecorder()

	Success(rec, "saved")
	Error(rec, "boom")
	Warning(rec, "careful")
	Info(rec, "fyi")
	WithTitle(rec, LevelInfo, "User joined", "Bob joined")

	notes := rec.All()
	if len(notes) != 5 {
		t.Fatalf("expected 5 notifications, got %d", len(notes))
	}

	want := []Level{LevelSuccess, LevelError, LevelWarning, LevelInfo, LevelInfo}
	for i, lvl := range want {
		if notes[i].Level != lvl {
			t.Errorf("notification %d: expected level %q, got %q", i, lvl, notes[i].Level)
		}
	}
	if notes[4].Title != "User joined" {
		t.Errorf("expected title 'User joined', got %q", notes[4].Title)
	}
}

func TestSinkDoesNotBlock(t *testing.T) {
	s := NewSinkSize(2)

	// Fill the buffer and then some. Show must never block.
	for i := 0; i < 5; i++ {
		s.Show(Notification{Level: LevelInfo, Message: "n"})
	}

	if got := len(s.C); got != 2 {
		t.Errorf("expected 2 buffered notifications, got %d", got)
	}
	if s.Dropped() != 3 {
		t.Errorf("expected 3 dropped, got %d", s.Dropped())
	}
}

func TestRecorderReset(t *testing.T) {
	rec := NewRecorder()
	Info(rec, "one")
	rec.Reset()
	if rec.Count() != 0 {
		t.Errorf("expected empty recorder after reset, got %d", rec.Count())
	}
}
