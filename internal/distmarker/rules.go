// Package distmarker decides which program elements belong to a single
// distribution (client or dedicated server) of a merged artifact.
//
// The decision core is representation-agnostic: both the compiled-class
// engine and the Java source engine describe what they see as an Element tree
// and ask an Engine which parts of it must go.
package distmarker

// Rule describes one annotation convention used to mark distribution-only code.
type Rule struct {
	Name           string // short label used in logs
	AnnotationType string // dotted, fully-qualified annotation type
	ValueAttribute string // attribute holding the enum-style side value
	ClientValue    string
	ServerValue    string

	// InterfaceAttribute, when set, names the attribute that scopes an
	// instance to an implemented interface instead of the annotated element.
	InterfaceAttribute string

	// RepeatableContainer is the annotation type that wraps repeated
	// instances of AnnotationType in its value array.
	RepeatableContainer string
}

// Order matters: the first matching rule decides.
var ruleTable = [...]Rule{
	{
		Name:                "neoforge",
		AnnotationType:      "net.neoforged.api.distmarker.OnlyIn",
		ValueAttribute:      "value",
		ClientValue:         "CLIENT",
		ServerValue:         "DEDICATED_SERVER",
		InterfaceAttribute:  "_interface",
		RepeatableContainer: "net.neoforged.api.distmarker.OnlyIns",
	},
	{
		Name:                "forge",
		AnnotationType:      "net.minecraftforge.api.distmarker.OnlyIn",
		ValueAttribute:      "value",
		ClientValue:         "CLIENT",
		ServerValue:         "DEDICATED_SERVER",
		InterfaceAttribute:  "_interface",
		RepeatableContainer: "net.minecraftforge.api.distmarker.OnlyIns",
	},
	{
		Name:           "fml",
		AnnotationType: "net.minecraftforge.fml.relauncher.SideOnly",
		ValueAttribute: "value",
		ClientValue:    "CLIENT",
		ServerValue:    "SERVER",
	},
	{
		Name:           "cpw",
		AnnotationType: "cpw.mods.fml.relauncher.SideOnly",
		ValueAttribute: "value",
		ClientValue:    "CLIENT",
		ServerValue:    "SERVER",
	},
	{
		Name:           "fabric",
		AnnotationType: "net.fabricmc.api.Environment",
		ValueAttribute: "value",
		ClientValue:    "CLIENT",
		ServerValue:    "SERVER",
	},
}

// Rules returns a copy of the rule table in priority order.
func Rules() []Rule {
	out := make([]Rule, len(ruleTable))
	copy(out, ruleTable[:])
	return out
}

// AnnotationTypes returns every annotation type the rule table reacts to,
// containers included. Adapters use it to skip decoding unrelated annotations.
func AnnotationTypes() map[string]struct{} {
	types := make(map[string]struct{}, len(ruleTable)*2)
	for _, r := range ruleTable {
		types[r.AnnotationType] = struct{}{}
		if r.RepeatableContainer != "" {
			types[r.RepeatableContainer] = struct{}{}
		}
	}
	return types
}
