// Package integrity turns raw browser events from the exam page into forced
// submissions.
package integrity

import "strings"

// Reason names the integrity trigger recorded with an AUTO submission.
type Reason string

const (
	ReasonVisibilityHidden Reason = "visibility_hidden"
	ReasonWindowBlur       Reason = "window_blur"
	ReasonAltTab           Reason = "alt_tab"
	ReasonMetaKey          Reason = "meta_key"
	ReasonEscapeKey        Reason = "escape_key"
	ReasonFullscreenExit   Reason = "fullscreen_exit"
	ReasonPageReload       Reason = "page_reload"
)

// Kind is a browser event type.
type Kind string

const (
	KindVisibilityChange Kind = "visibilitychange"
	KindBlur             Kind = "blur"
	KindFocus            Kind = "focus"
	KindKeyDown          Kind = "keydown"
	KindFullscreenChange Kind = "fullscreenchange"
	KindBeforeUnload     Kind = "beforeunload"
)

var kindAliases = map[string]Kind{
	"webkitfullscreenchange": KindFullscreenChange,
	"mozfullscreenchange":    KindFullscreenChange,
	"msfullscreenchange":     KindFullscreenChange,
}

// BrowserEvent is the subset of a DOM event the exam page forwards.
type BrowserEvent struct {
	Kind       string `json:"kind"`
	Visibility string `json:"visibility,omitempty"`
	Key        string `json:"key,omitempty"`
	AltKey     bool   `json:"altKey,omitempty"`
	CtrlKey    bool   `json:"ctrlKey,omitempty"`
	MetaKey    bool   `json:"metaKey,omitempty"`
	ShiftKey   bool   `json:"shiftKey,omitempty"`
	// Fullscreen reports whether the document is fullscreen after a
	// fullscreenchange.
	Fullscreen *bool `json:"fullscreen,omitempty"`
}

// NormalizedKind folds vendor-prefixed event names onto the standard ones.
func (e BrowserEvent) NormalizedKind() Kind {
	k := strings.ToLower(strings.TrimSpace(e.Kind))
	if alias, ok := kindAliases[k]; ok {
		return alias
	}
	return Kind(k)
}

// IsReloadShortcut reports F5 and Ctrl/Cmd+R.
func (e BrowserEvent) IsReloadShortcut() bool {
	if e.Key == "F5" {
		return true
	}
	return (e.CtrlKey || e.MetaKey) && strings.EqualFold(e.Key, "r")
}

// keyReason classifies a keydown. Alt+Tab is best-effort: most operating
// systems swallow it before the page sees it.
func (e BrowserEvent) keyReason() (Reason, bool) {
	switch {
	case e.Key == "Escape" || e.Key == "Esc":
		return ReasonEscapeKey, true
	case e.AltKey && e.Key == "Tab":
		return ReasonAltTab, true
	case e.Key == "Meta" || e.Key == "OS":
		return ReasonMetaKey, true
	}
	return "", false
}
