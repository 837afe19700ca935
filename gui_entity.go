package settings

import (
	"fmt"

	"github.com/pypeclub/OpenPype/schema"
)

// guiEntity is a presentation-only node such as a label or a separator.
type guiEntity struct {
	baseEntity
}

func newGUIEntity(r *Root, node *schema.Node, parent item) *guiEntity {
	g := &guiEntity{}
	g.init(r, g, node, parent, node.Key, false)
	return g
}

func (g *guiEntity) Value() any { return nil }

func (g *guiEntity) Set(any) error {
	return fmt.Errorf("settings: %s entity %q has no value", g.node.Type, displayPath(g.Path()))
}

func (g *guiEntity) SettingsValue() any { return NotSet }

func (g *guiEntity) settingsValue() any { return NotSet }

func (g *guiEntity) updateLayer(OverrideState, any) {}

func (g *guiEntity) applyState(state OverrideState) { g.state = state }

func (g *guiEntity) HasDefaultValue() bool { return true }

func (g *guiEntity) HasUnsavedChanges() bool { return false }

func (g *guiEntity) HasStudioOverride() bool { return false }

func (g *guiEntity) HasProjectOverride() bool { return false }

func (g *guiEntity) addStudio() {}

func (g *guiEntity) addProject() {}

func (g *guiEntity) removeStudio() {}

func (g *guiEntity) removeProject() {}

// Label returns the text shown by a label entity.
func (g *guiEntity) Label() string {
	if g.node.Label != "" {
		return g.node.Label
	}
	return g.node.StringOption("label", "")
}
