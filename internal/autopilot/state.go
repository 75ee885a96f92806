package autopilot

// State is the page-session automation lifecycle. It only moves through
// transitions driven by page-load events, probe results and poll outcomes;
// the one-shot guards live next to it on the controller so each trigger is
// provably single-fire.
type State int

const (
	StateIdle State = iota
	StateShopLookup
	StateShopSuccess
	StateShopFail
	StateAddScheduled
	StateAddLookup
	StateAddSuccess
	StateAddFail
	StatePageError
	StateFallbackRedirected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateShopLookup:
		return "shopLookupInFlight"
	case StateShopSuccess:
		return "shopSuccess"
	case StateShopFail:
		return "shopFail"
	case StateAddScheduled:
		return "addLookupScheduled"
	case StateAddLookup:
		return "addLookupInFlight"
	case StateAddSuccess:
		return "addSuccess"
	case StateAddFail:
		return "addFail"
	case StatePageError:
		return "pageError"
	case StateFallbackRedirected:
		return "fallbackRedirected"
	default:
		return "unknown"
	}
}

// Signal is emitted to the host on every meaningful transition.
type Signal struct {
	State   State
	Message string
}
