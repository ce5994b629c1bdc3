package sendflow

// State is a step of one send interception.
type State int

const (
	Idle State = iota
	CheckingBreaker
	CheckingBypass
	ProcessingSilent
	GatheringContent
	CallingAPI
	ApplyingEdits
	SavingBypass
	HandlingFailure
	Allowed
	Blocked
)

var stateNames = map[State]string{
	Idle:             "idle",
	CheckingBreaker:  "checking-breaker",
	CheckingBypass:   "checking-bypass",
	ProcessingSilent: "processing-silent",
	GatheringContent: "gathering-content",
	CallingAPI:       "calling-api",
	ApplyingEdits:    "applying-edits",
	SavingBypass:     "saving-bypass",
	HandlingFailure:  "handling-failure",
	Allowed:          "allowed",
	Blocked:          "blocked",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether the send decision has been made.
func (s State) Terminal() bool {
	return s == Allowed || s == Blocked
}

// Reason says why a send was allowed or blocked.
type Reason string

const (
	ReasonFailOpen      Reason = "fail-open"
	ReasonBypass        Reason = "bypass"
	ReasonClear         Reason = "clear"
	ReasonConfirm       Reason = "confirm-required"
	ReasonError         Reason = "error"
	ReasonFailOpenAfter Reason = "fail-open-after-error"
)

// Outcome is the send decision. Message is shown when the send is blocked.
type Outcome struct {
	Allow   bool
	Reason  Reason
	Message string
	Trace   []State
}
