package acquiring

// Status is a payment state as reported by the gateway, extended with the
// two states the admin backend assigns on its own (CANCELLED, ERROR).
type Status string

const (
	StatusNew             Status = "NEW"
	StatusFormShowed      Status = "FORMSHOWED"
	StatusAuthorizing     Status = "AUTHORIZING"
	StatusAuthorized      Status = "AUTHORIZED"
	StatusConfirmed       Status = "CONFIRMED"
	StatusCompleted       Status = "COMPLETED"
	StatusRejected        Status = "REJECTED"
	StatusReversed        Status = "REVERSED"
	StatusRefunding       Status = "REFUNDING"
	StatusPartialRefunded Status = "PARTIAL_REFUNDED"
	StatusRefunded        Status = "REFUNDED"
	StatusChecking        Status = "CHECKING"

	// Local only, never reported by the gateway.
	StatusCancelled Status = "CANCELLED"
	StatusError     Status = "ERROR"
)

var statusMessages = map[Status]string{
	StatusNew:             "New payment",
	StatusFormShowed:      "Payment form opened",
	StatusAuthorizing:     "Authorizing",
	StatusAuthorized:      "Authorized",
	StatusConfirmed:       "Confirmed",
	StatusCompleted:       "Completed",
	StatusRejected:        "Rejected",
	StatusReversed:        "Reversed",
	StatusRefunding:       "Refund in progress",
	StatusPartialRefunded: "Partially refunded",
	StatusRefunded:        "Refunded",
	StatusChecking:        "Under review",
	StatusCancelled:       "Cancelled by administrator",
	StatusError:           "Payment initialization failed",
}

// IsKnown reports whether s belongs to the enumeration above. Only known
// statuses are ever written to the transaction store.
func (s Status) IsKnown() bool {
	_, ok := statusMessages[s]
	return ok
}

// IsTerminal reports whether no further transition is expected from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusReversed, StatusRefunded, StatusCancelled, StatusError:
		return true
	}
	return false
}

// lifecycleRank orders statuses along the payment lifecycle. Terminal
// statuses share the top rank.
var lifecycleRank = map[Status]int{
	StatusNew:             0,
	StatusFormShowed:      1,
	StatusAuthorizing:     2,
	StatusChecking:        2,
	StatusAuthorized:      3,
	StatusConfirmed:       4,
	StatusRefunding:       5,
	StatusPartialRefunded: 6,
	StatusCompleted:       7,
	StatusRejected:        7,
	StatusReversed:        7,
	StatusRefunded:        7,
	StatusCancelled:       7,
	StatusError:           7,
}

// Advances reports whether moving from s to next goes forward in the
// lifecycle. Nothing leaves a terminal status, and unknown statuses never
// advance anything.
func (s Status) Advances(next Status) bool {
	if !next.IsKnown() || s.IsTerminal() {
		return false
	}
	current, ok := lifecycleRank[s]
	if !ok {
		return true
	}
	return lifecycleRank[next] > current
}

// Message returns a human-readable description of the status.
func (s Status) Message() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return "Unknown status"
}

func (s Status) String() string {
	return string(s)
}
