package gotlive

// Phase is the lifecycle position of a localized element.
type Phase int

const (
	// PhaseSource shows the source text. It is the initial phase and the
	// terminal one for empty text or the source language.
	PhaseSource Phase = iota
	// PhaseAwaitingGate waits for the element to become visible or the page
	// to settle.
	PhaseAwaitingGate
	// PhasePending waits for the queue to settle the request.
	PhasePending
	// PhaseResolved shows a translation.
	PhaseResolved
	// PhaseFailed shows the source text after retries were exhausted.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSource:
		return "source"
	case PhaseAwaitingGate:
		return "awaiting-gate"
	case PhasePending:
		return "pending"
	case PhaseResolved:
		return "resolved"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Token identifies one evaluation of an element: the language generation and
// a local revision bumped on every text or language change. Events produced
// by an older evaluation carry an older token and are ignored.
type Token struct {
	Gen uint64
	Rev uint64
}

// State is the complete, immutable view of a localized element.
type State struct {
	Phase   Phase
	Text    string // source text as given
	Lang    string // target language of the current evaluation
	Display string // what should be rendered
	Token   Token
}

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// TextChanged reports new source text.
type TextChanged struct {
	Text string
}

// LanguageChanged reports a language switch or refresh.
type LanguageChanged struct {
	Lang string
	Gen  uint64
}

// Evaluated carries the facts gathered for CmdEvaluate.
type Evaluated struct {
	Token     Token
	Skip      bool   // empty text or source language
	Hit       bool   // cache hit
	Value     string // cached value when Hit
	GatesOpen bool
}

// GatesOpened reports that visibility and readiness both hold.
type GatesOpened struct {
	Token Token
}

// Settled carries the queue's result.
type Settled struct {
	Token  Token
	Result Result
}

// RetryRequested is a manual retry from the failed phase.
type RetryRequested struct{}

func (TextChanged) isEvent()     {}
func (LanguageChanged) isEvent() {}
func (Evaluated) isEvent()       {}
func (GatesOpened) isEvent()     {}
func (Settled) isEvent()         {}
func (RetryRequested) isEvent()  {}

// CommandKind is a side effect requested by Reduce.
type CommandKind int

const (
	CmdNone CommandKind = iota
	// CmdEvaluate asks for an Evaluated event (cache read, gate check).
	CmdEvaluate
	// CmdWaitGates asks for a GatesOpened event once the gates open.
	CmdWaitGates
	// CmdEnqueue asks for the translation to be queued.
	CmdEnqueue
	// CmdRetry asks for the translation to be queued with back-off bypassed.
	CmdRetry
)

// Command is a side effect together with the state it applies to.
type Command struct {
	Kind  CommandKind
	Token Token
	Text  string
	Lang  string
}

// Reduce computes the next state of an element. It is pure: all I/O is
// expressed through the returned Command and fed back as events.
func Reduce(s State, ev Event) (State, Command) {
	switch e := ev.(type) {
	case TextChanged:
		if e.Text == s.Text && s.Token.Rev > 0 {
			return s, Command{}
		}
		return reset(s, e.Text, s.Lang, s.Token.Gen)

	case LanguageChanged:
		if e.Gen < s.Token.Gen || (e.Gen == s.Token.Gen && e.Lang == s.Lang && s.Token.Rev > 0) {
			return s, Command{}
		}
		return reset(s, s.Text, e.Lang, e.Gen)

	case Evaluated:
		if e.Token != s.Token || s.Phase != PhaseSource {
			return s, Command{}
		}
		switch {
		case e.Skip:
			return s, Command{}
		case e.Hit:
			s.Phase = PhaseResolved
			s.Display = e.Value
			return s, Command{}
		case !e.GatesOpen:
			s.Phase = PhaseAwaitingGate
			return s, command(CmdWaitGates, s)
		default:
			s.Phase = PhasePending
			return s, command(CmdEnqueue, s)
		}

	case GatesOpened:
		if e.Token != s.Token || s.Phase != PhaseAwaitingGate {
			return s, Command{}
		}
		s.Phase = PhasePending
		return s, command(CmdEnqueue, s)

	case Settled:
		if e.Token != s.Token || s.Phase != PhasePending {
			return s, Command{}
		}
		switch e.Result.Outcome {
		case OutcomeTranslated, OutcomeCached:
			s.Phase = PhaseResolved
			s.Display = e.Result.Text
		case OutcomeDegraded:
			s.Phase = PhaseFailed
			s.Display = s.Text
		default:
			s.Phase = PhaseSource
			s.Display = s.Text
		}
		return s, Command{}

	case RetryRequested:
		if s.Phase != PhaseFailed {
			return s, Command{}
		}
		s.Phase = PhasePending
		return s, command(CmdRetry, s)
	}

	return s, Command{}
}

func reset(s State, text, lang string, gen uint64) (State, Command) {
	next := State{
		Phase:   PhaseSource,
		Text:    text,
		Lang:    lang,
		Display: text,
		Token:   Token{Gen: gen, Rev: s.Token.Rev + 1},
	}
	return next, command(CmdEvaluate, next)
}

func command(kind CommandKind, s State) Command {
	return Command{Kind: kind, Token: s.Token, Text: s.Text, Lang: s.Lang}
}
