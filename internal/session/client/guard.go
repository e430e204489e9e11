package client

type Decision int

const (
	// DecisionWait means the session is still loading. Render neither the
	// protected content nor a redirect.
	DecisionWait Decision = iota
	DecisionRedirect
	DecisionRender
)

func (d Decision) String() string {
	switch d {
	case DecisionWait:
		return "wait"
	case DecisionRedirect:
		return "redirect"
	case DecisionRender:
		return "render"
	default:
		return "unknown"
	}
}

// Guard decides what a protected client surface does for a session state.
func Guard(s State) Decision {
	switch s.Status {
	case StatusAuthenticated:
		return DecisionRender
	case StatusUnauthenticated:
		return DecisionRedirect
	default:
		return DecisionWait
	}
}
