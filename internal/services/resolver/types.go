package resolver

// Resolution state machine states. Transitions are strictly sequential
// within one listing; every state's failure path lands on StateFallback.
const (
	StateNavigating           = "navigating"
	StateAwaitingActionTarget = "awaiting_action_target"
	StatePopupOpened          = "popup_opened"
	StateNoPopup              = "no_popup"
	StateAwaitingPopupContent = "awaiting_popup_content"
	StateResolved             = "resolved"
	StateFallback             = "fallback"
)
