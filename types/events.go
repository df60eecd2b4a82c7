package types

// EventKind discriminates the events parsed from the control channel.
type EventKind string

// Event kinds.
const (
	EventKindSlotName     EventKind = "slot_name"
	EventKindPageComplete EventKind = "page_complete"
	EventKindUnrecognized EventKind = "unrecognized"
)

// Event is a typed control channel event. The set of implementations is
// closed: SlotNameEvent, PageCompletionSignal, UnrecognizedLine.
type Event interface {
	Kind() EventKind
	sealed()
}

// SlotNameEvent announces the catalog entry placed in a grid slot.
type SlotNameEvent struct {
	Slot int
	Name string
}

// Kind implements Event.
func (SlotNameEvent) Kind() EventKind { return EventKindSlotName }
func (SlotNameEvent) sealed()         {}

// PageCompletionSignal marks that the renderer finished populating a page.
type PageCompletionSignal struct {
	Page int
}

// Kind implements Event.
func (PageCompletionSignal) Kind() EventKind { return EventKindPageComplete }
func (PageCompletionSignal) sealed()         {}

// UnrecognizedLine is any inbound line matching no protocol pattern.
// It is informational only.
type UnrecognizedLine struct {
	Line string
}

// Kind implements Event.
func (UnrecognizedLine) Kind() EventKind { return EventKindUnrecognized }
func (UnrecognizedLine) sealed()         {}

// PageRequest asks the renderer to populate one page.
type PageRequest struct {
	Page int
}

// SlotNameMap maps slot index to the raw announced name for one page.
type SlotNameMap map[int]string
