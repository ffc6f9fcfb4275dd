package message

// Trigger is one of the fixed, ordered lifecycle operations driven
// against a package inside its VM (spec section 3).
type Trigger int

const (
	TriggerUnknown Trigger = iota
	Extract
	Install
	StopService
	StartService
	RunBinaries
	Remove
	Purge
)

// Order is the canonical sequence every analysis run walks exactly once.
// Section 4.4's state list and the original implementation's trigger
// wiring both run StopService before StartService; that is the order
// used here even though section 3's set notation lists the names the
// other way (resolved open question, see DESIGN.md).
var Order = []Trigger{Extract, Install, StopService, StartService, RunBinaries, Remove, Purge}

var triggerNames = map[Trigger]string{
	Extract:      "EXTRACT",
	Install:      "INSTALL",
	StartService: "START_SERVICE",
	StopService:  "STOP_SERVICE",
	RunBinaries:  "RUN_BINARIES",
	Remove:       "REMOVE",
	Purge:        "PURGE",
}

var namesToTrigger = func() map[string]Trigger {
	m := make(map[string]Trigger, len(triggerNames))
	for t, n := range triggerNames {
		m[n] = t
	}
	return m
}()

func (t Trigger) String() string {
	if n, ok := triggerNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Index returns the trigger's position in Order, or -1 if it isn't a
// member of the canonical sequence.
func (t Trigger) Index() int {
	for i, o := range Order {
		if o == t {
			return i
		}
	}
	return -1
}

// ParseTrigger looks a trigger up by its canonical name, the inverse of
// String. Text-encoded descriptors carry integer trigger values and are
// decoded without it.
func ParseTrigger(s string) (Trigger, bool) {
	t, ok := namesToTrigger[s]
	return t, ok
}

// DiffPair is an ordered pair (before, after) with before earlier than
// after in the canonical order (spec section 3).
type DiffPair struct {
	Before Trigger `json:"before" msgpack:"before"`
	After  Trigger `json:"after" msgpack:"after"`
}

func (p DiffPair) String() string {
	return p.Before.String() + ":" + p.After.String()
}

// Valid reports whether Before strictly precedes After in Order.
func (p DiffPair) Valid() bool {
	bi, ai := p.Before.Index(), p.After.Index()
	return bi >= 0 && ai >= 0 && bi < ai
}
