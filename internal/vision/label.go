package vision

import "fmt"

// Label names one recognisable UI element or scene marker.
type Label string

// Every label the automaton knows about.
const (
	LabelLoginButton              Label = "login_button"
	LabelCharSelectButton         Label = "char_select_button"
	LabelBossIndicator            Label = "boss_indicator"
	LabelMenuChannelButton        Label = "menu_channel_button"
	LabelSwitchChannelButton      Label = "switch_channel_button"
	LabelConfirmButton            Label = "confirm_button"
	LabelLoginSceneIndicator      Label = "login_scene_indicator"
	LabelCharSelectSceneIndicator Label = "char_select_scene_indicator"
)

var allLabels = []Label{
	LabelLoginSceneIndicator,
	LabelLoginButton,
	LabelCharSelectSceneIndicator,
	LabelCharSelectButton,
	LabelBossIndicator,
	LabelMenuChannelButton,
	LabelSwitchChannelButton,
	LabelConfirmButton,
}

// Labels returns every known label in a stable order.
func Labels() []Label {
	out := make([]Label, len(allLabels))
	copy(out, allLabels)
	return out
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	for _, known := range allLabels {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLabel converts a string to a Label, rejecting unknown names.
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLabel, s)
	}
	return l, nil
}

func (l Label) String() string { return string(l) }
