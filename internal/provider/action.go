package provider

// ActionKind is the closed set of action kinds from spec.md §4.1.
type ActionKind string

const (
	ActionOpen               ActionKind = "open"
	ActionOpenInBrowser      ActionKind = "open_in_browser"
	ActionCopyLink           ActionKind = "copy_link"
	ActionPreview            ActionKind = "preview"
	ActionMarkRead           ActionKind = "mark_read"
	ActionMarkUnread         ActionKind = "mark_unread"
	ActionSave               ActionKind = "save"
	ActionUnsave             ActionKind = "unsave"
	ActionArchive            ActionKind = "archive"
	ActionTag                ActionKind = "tag"
	ActionAddToCollection    ActionKind = "add_to_collection"
	ActionRemoveFromCollection ActionKind = "remove_from_collection"
	ActionExecuteCustom      ActionKind = "execute_custom"
)

// Action describes one operation available on an item.
type Action struct {
	ID            string
	Name          string
	Description   string
	Kind          ActionKind
	CustomTag     string // set when Kind == ActionExecuteCustom
	KeyboardHint  string
}

// ActionResult is the outcome of executing an Action.
type ActionResult struct {
	Success bool
	Message string
}

// coreHandledKinds are fulfilled by the core before delegation to the
// provider, per spec.md §4.1: "execute_action for MarkRead/MarkUnread/
// Save/Unsave/Archive is fulfilled by the core before delegation to the
// provider; the provider is invoked only when the action demands external
// state change."
var coreHandledKinds = map[ActionKind]bool{
	ActionMarkRead:   true,
	ActionMarkUnread: true,
	ActionSave:       true,
	ActionUnsave:     true,
	ActionArchive:    true,
}

// IsCoreHandled reports whether the core satisfies this action kind
// locally before any provider delegation occurs.
func IsCoreHandled(kind ActionKind) bool {
	return coreHandledKinds[kind]
}
