package gotlive

import "testing"

// mounted returns the state right after an element for text is mounted in
// lang at generation gen, plus the command issued.
func mounted(text, lang string, gen uint64) (State, Command) {
	s := State{Phase: PhaseSource, Text: text, Display: text}
	return Reduce(s, LanguageChanged{Lang: lang, Gen: gen})
}

func TestReduce_MountEvaluates(t *testing.T) {
	s, cmd := mounted("Hello", "es", 3)

	if s.Phase != PhaseSource || s.Display != "Hello" {
		t.Errorf("Mount should show source text, got %+v", s)
	}
	if cmd.Kind != CmdEvaluate || cmd.Token != s.Token || cmd.Lang != "es" {
		t.Errorf("Mount should request evaluation, got %+v", cmd)
	}
	if s.Token.Gen != 3 || s.Token.Rev != 1 {
		t.Errorf("Unexpected token %+v", s.Token)
	}
}

func TestReduce_Evaluation(t *testing.T) {
	tests := []struct {
		name  string
		ev    Evaluated
		phase Phase
		cmd   CommandKind
		shown string
	}{
		{"skip", Evaluated{Skip: true}, PhaseSource, CmdNone, "Hello"},
		{"hit", Evaluated{Hit: true, Value: "Hola"}, PhaseResolved, CmdNone, "Hola"},
		{"gated", Evaluated{GatesOpen: false}, PhaseAwaitingGate, CmdWaitGates, "Hello"},
		{"miss", Evaluated{GatesOpen: true}, PhasePending, CmdEnqueue, "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := mounted("Hello", "es", 1)
			tt.ev.Token = s.Token

			next, cmd := Reduce(s, tt.ev)
			if next.Phase != tt.phase {
				t.Errorf("phase = %v, want %v", next.Phase, tt.phase)
			}
			if cmd.Kind != tt.cmd {
				t.Errorf("command = %v, want %v", cmd.Kind, tt.cmd)
			}
			if next.Display != tt.shown {
				t.Errorf("display = %q, want %q", next.Display, tt.shown)
			}
		})
	}
}

func TestReduce_GatesThenSettle(t *testing.T) {
	s, _ := mounted("Hello", "es", 1)
	s, _ = Reduce(s, Evaluated{Token: s.Token, GatesOpen: false})

	s, cmd := Reduce(s, GatesOpened{Token: s.Token})
	if s.Phase != PhasePending || cmd.Kind != CmdEnqueue {
		t.Fatalf("Opening gates should enqueue, got %v / %v", s.Phase, cmd.Kind)
	}

	// A second notification is ignored.
	if _, cmd := Reduce(s, GatesOpened{Token: s.Token}); cmd.Kind != CmdNone {
		t.Errorf("Duplicate GatesOpened should be ignored, got %v", cmd.Kind)
	}

	s, _ = Reduce(s, Settled{Token: s.Token, Result: Result{Text: "Hola", Outcome: OutcomeTranslated}})
	if s.Phase != PhaseResolved || s.Display != "Hola" {
		t.Errorf("Expected resolved Hola, got %+v", s)
	}
}

func TestReduce_DegradedThenRetry(t *testing.T) {
	s, _ := mounted("Hello", "es", 1)
	s, _ = Reduce(s, Evaluated{Token: s.Token, GatesOpen: true})
	s, _ = Reduce(s, Settled{Token: s.Token, Result: Result{Text: "Hello", Outcome: OutcomeDegraded}})

	if s.Phase != PhaseFailed || s.Display != "Hello" {
		t.Fatalf("Expected failed phase showing source, got %+v", s)
	}

	s, cmd := Reduce(s, RetryRequested{})
	if s.Phase != PhasePending || cmd.Kind != CmdRetry {
		t.Errorf("Retry should go pending with a retry command, got %v / %v", s.Phase, cmd.Kind)
	}
}

func TestReduce_RetryIgnoredUnlessFailed(t *testing.T) {
	s, _ := mounted("Hello", "es", 1)

	next, cmd := Reduce(s, RetryRequested{})
	if next != s || cmd.Kind != CmdNone {
		t.Errorf("Retry outside PhaseFailed should be a no-op")
	}
}

func TestReduce_StaleEventsIgnored(t *testing.T) {
	s, _ := mounted("Hello", "es", 1)
	old := s.Token
	s, _ = Reduce(s, Evaluated{Token: old, GatesOpen: true}) // pending under old token

	// Language switch starts a new evaluation.
	s, cmd := Reduce(s, LanguageChanged{Lang: "fr", Gen: 2})
	if cmd.Kind != CmdEvaluate || s.Phase != PhaseSource || s.Lang != "fr" {
		t.Fatalf("Language change should reset and re-evaluate, got %+v / %v", s, cmd.Kind)
	}

	late := Settled{Token: old, Result: Result{Text: "Hola", Outcome: OutcomeTranslated}}
	if next, _ := Reduce(s, late); next != s {
		t.Errorf("Result for an old generation must be ignored, got %+v", next)
	}
	if next, _ := Reduce(s, Evaluated{Token: old, Hit: true, Value: "Hola"}); next != s {
		t.Errorf("Evaluation for an old generation must be ignored")
	}
}

func TestReduce_OlderLanguageChangeIgnored(t *testing.T) {
	s, _ := mounted("Hello", "fr", 5)

	if next, cmd := Reduce(s, LanguageChanged{Lang: "es", Gen: 4}); next != s || cmd.Kind != CmdNone {
		t.Errorf("A notification for an older generation must be ignored")
	}
	if next, cmd := Reduce(s, LanguageChanged{Lang: "fr", Gen: 5}); next != s || cmd.Kind != CmdNone {
		t.Errorf("A duplicate notification must be ignored")
	}

	// Refresh: same language, newer generation.
	next, cmd := Reduce(s, LanguageChanged{Lang: "fr", Gen: 6})
	if cmd.Kind != CmdEvaluate || next.Token.Gen != 6 {
		t.Errorf("Refresh should re-evaluate, got %v", cmd.Kind)
	}
}

func TestReduce_TextChange(t *testing.T) {
	s, _ := mounted("Hello", "es", 1)
	s, _ = Reduce(s, Evaluated{Token: s.Token, Hit: true, Value: "Hola"})

	next, cmd := Reduce(s, TextChanged{Text: "Hello"})
	if next != s || cmd.Kind != CmdNone {
		t.Error("Setting the same text should be a no-op")
	}

	next, cmd = Reduce(s, TextChanged{Text: "Goodbye"})
	if next.Phase != PhaseSource || next.Display != "Goodbye" || cmd.Kind != CmdEvaluate {
		t.Errorf("New text should reset and re-evaluate, got %+v / %v", next, cmd.Kind)
	}
	if next.Token.Rev != s.Token.Rev+1 || next.Token.Gen != s.Token.Gen {
		t.Errorf("Text change should bump only the revision, got %+v", next.Token)
	}
}

func TestReduce_StaleOutcomeFallsBackToSource(t *testing.T) {
	s, _ := mounted("Hello", "es", 1)
	s, _ = Reduce(s, Evaluated{Token: s.Token, GatesOpen: true})

	s, _ = Reduce(s, Settled{Token: s.Token, Result: Result{Outcome: OutcomeStale, Err: ErrStaleGeneration}})
	if s.Phase != PhaseSource || s.Display != "Hello" {
		t.Errorf("Stale outcome should show the source text, got %+v", s)
	}
}
