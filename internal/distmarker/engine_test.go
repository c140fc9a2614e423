package distmarker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onlyIn(rule Rule, value string) Annotation {
	return Annotation{Type: rule.AnnotationType, Values: map[string]string{rule.ValueAttribute: value}}
}

func TestRulesOrder(t *testing.T) {
	rules := Rules()
	require.Len(t, rules, 5)

	want := []string{
		"net.neoforged.api.distmarker.OnlyIn",
		"net.minecraftforge.api.distmarker.OnlyIn",
		"net.minecraftforge.fml.relauncher.SideOnly",
		"cpw.mods.fml.relauncher.SideOnly",
		"net.fabricmc.api.Environment",
	}
	for i, r := range rules {
		assert.Equal(t, want[i], r.AnnotationType)
		assert.Equal(t, "value", r.ValueAttribute)
		assert.Equal(t, "CLIENT", r.ClientValue)
	}
	assert.Equal(t, "DEDICATED_SERVER", rules[0].ServerValue)
	assert.Equal(t, "net.neoforged.api.distmarker.OnlyIns", rules[0].RepeatableContainer)
	assert.Equal(t, "SERVER", rules[4].ServerValue)
	assert.Empty(t, rules[4].RepeatableContainer)

	// Callers get a copy.
	rules[0].ClientValue = "mutated"
	assert.Equal(t, "CLIENT", Rules()[0].ClientValue)
}

func TestParseDistribution(t *testing.T) {
	for _, name := range []string{"CLIENT", "client", " Server ", "common"} {
		_, err := ParseDistribution(name)
		assert.NoError(t, err, name)
	}

	d, err := ParseDistribution("server")
	require.NoError(t, err)
	assert.False(t, d.AllowClient)
	assert.True(t, d.AllowServer)
	assert.Equal(t, []string{ManifestClientOnlyEntries}, d.ManifestAttributes)

	_, err = ParseDistribution("both")
	assert.True(t, errors.Is(err, ErrUnknownDistribution))
	assert.Contains(t, err.Error(), "CLIENT, SERVER, COMMON")
	assert.Equal(t, []string{"CLIENT", "SERVER", "COMMON"}, DistributionNames())
}

func TestDecide_NoRecognizedAnnotationKeeps(t *testing.T) {
	for _, d := range Distributions() {
		e := NewEngine(d)
		assert.False(t, e.Decide(nil).Remove)
		assert.False(t, e.Decide([]Annotation{
			{Type: "java.lang.Deprecated"},
			{Type: "com.example.OnlyIn", Values: map[string]string{"value": "CLIENT"}},
		}).Remove, d.Name)
	}
}

func TestDecide_EveryRuleBothSides(t *testing.T) {
	for _, rule := range Rules() {
		for _, d := range Distributions() {
			e := NewEngine(d)

			client := e.Decide([]Annotation{onlyIn(rule, rule.ClientValue)})
			assert.Equal(t, !d.AllowClient, client.Remove, "%s client under %s", rule.Name, d.Name)

			server := e.Decide([]Annotation{onlyIn(rule, rule.ServerValue)})
			assert.Equal(t, !d.AllowServer, server.Remove, "%s server under %s", rule.Name, d.Name)

			if client.Remove {
				assert.Equal(t, rule.Name, client.Rule)
			}
		}
	}
}

func TestDecide_QualifiedLiteral(t *testing.T) {
	rule := Rules()[0]
	e := NewEngine(Server)

	assert.True(t, e.Decide([]Annotation{onlyIn(rule, "Dist.CLIENT")}).Remove)
	assert.True(t, e.Decide([]Annotation{onlyIn(rule, "net.neoforged.api.distmarker.Dist.CLIENT")}).Remove)
	assert.False(t, e.Decide([]Annotation{onlyIn(rule, "Dist.DEDICATED_SERVER")}).Remove)
}

func TestDecide_MissingValueKeeps(t *testing.T) {
	rule := Rules()[2]
	e := NewEngine(Common)
	v := e.Decide([]Annotation{{Type: rule.AnnotationType, Values: map[string]string{"other": "CLIENT"}}})
	assert.False(t, v.Remove)
	v = e.Decide([]Annotation{{Type: rule.AnnotationType}})
	assert.False(t, v.Remove)
}

func TestDecide_RepeatableContainer(t *testing.T) {
	rule := Rules()[1]
	container := func(values ...string) Annotation {
		a := Annotation{Type: rule.RepeatableContainer}
		for _, v := range values {
			a.Nested = append(a.Nested, onlyIn(rule, v))
		}
		return a
	}

	tests := []struct {
		name   string
		dist   Distribution
		values []string
		remove bool
	}{
		{"single client on server", Server, []string{"CLIENT"}, true},
		{"single server on server", Server, []string{"DEDICATED_SERVER"}, false},
		{"any of many triggers", Client, []string{"CLIENT", "DEDICATED_SERVER"}, true},
		{"none trigger", Client, []string{"CLIENT", "CLIENT"}, false},
		{"empty container", Common, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewEngine(tt.dist).Decide([]Annotation{container(tt.values...)})
			assert.Equal(t, tt.remove, v.Remove)
		})
	}
}

func TestDecide_ContainerOfOtherRuleIgnored(t *testing.T) {
	neo := Rules()[0]
	forge := Rules()[1]
	a := Annotation{Type: neo.RepeatableContainer, Nested: []Annotation{onlyIn(forge, "CLIENT")}}
	// The nested instance belongs to the neo container, so the neo rule applies it.
	v := NewEngine(Server).Decide([]Annotation{a})
	assert.True(t, v.Remove)
	assert.Equal(t, neo.Name, v.Rule)
}

func TestDecide_FirstRuleWins(t *testing.T) {
	rules := Rules()
	e := NewEngine(Server)
	v := e.Decide([]Annotation{
		onlyIn(rules[4], "CLIENT"),
		onlyIn(rules[2], "CLIENT"),
	})
	require.True(t, v.Remove)
	assert.Equal(t, rules[2].Name, v.Rule)
}

func TestDecide_InterfaceScoped(t *testing.T) {
	rule := Rules()[0]
	scoped := Annotation{Type: rule.AnnotationType, Values: map[string]string{
		"value":      "CLIENT",
		"_interface": "com/example/ClientHook",
	}}

	v := NewEngine(Server).Decide([]Annotation{{Type: rule.RepeatableContainer, Nested: []Annotation{scoped}}})
	assert.False(t, v.Remove)
	assert.Equal(t, []string{"com/example/ClientHook"}, v.Interfaces)

	v = NewEngine(Client).Decide([]Annotation{scoped})
	assert.False(t, v.Remove)
	assert.Empty(t, v.Interfaces)

	// A plain instance still removes the element.
	v = NewEngine(Server).Decide([]Annotation{scoped, onlyIn(rule, "CLIENT")})
	assert.True(t, v.Remove)
	assert.Empty(t, v.Interfaces)
}

func TestResolve_MembersIndependently(t *testing.T) {
	rule := Rules()[4]
	clientMethod := &Element{Kind: KindMethod, Name: "render()V", Annotations: []Annotation{onlyIn(rule, "CLIENT")}}
	serverMethod := &Element{Kind: KindMethod, Name: "tick()V", Annotations: []Annotation{onlyIn(rule, "SERVER")}}
	plain := &Element{Kind: KindField, Name: "count:I"}
	class := &Element{Kind: KindClass, Name: "com/example/Block", Methods: []*Element{clientMethod, serverMethod}, Fields: []*Element{plain}}

	res := NewEngine(Common).Resolve(class, Scope{})
	assert.False(t, res.IsRemoved(class))
	assert.True(t, res.IsRemoved(clientMethod))
	assert.True(t, res.IsRemoved(serverMethod))
	assert.False(t, res.IsRemoved(plain))

	res = NewEngine(Client).Resolve(class, Scope{})
	require.Len(t, res.Removed, 1)
	assert.Same(t, serverMethod, res.Removed[0].Element)
}

func TestResolve_RemovedClassHidesMembers(t *testing.T) {
	rule := Rules()[3]
	member := &Element{Kind: KindMethod, Name: "a()V", Annotations: []Annotation{onlyIn(rule, "CLIENT")}}
	class := &Element{
		Kind:        KindClass,
		Name:        "com/example/Screen",
		Annotations: []Annotation{onlyIn(rule, "CLIENT")},
		Methods:     []*Element{member},
	}

	res := NewEngine(Server).Resolve(class, Scope{})
	require.Len(t, res.Removed, 1)
	assert.Same(t, class, res.Removed[0].Element)
	assert.Equal(t, rule.Name, res.Removed[0].Reason)
}

func TestResolve_ExcludedAndInspect(t *testing.T) {
	rule := Rules()[0]
	innerMethod := &Element{Kind: KindMethod, Name: "draw()V", Annotations: []Annotation{onlyIn(rule, "CLIENT")}}
	inner := &Element{Kind: KindClass, Name: "a/Outer$Inner", Methods: []*Element{innerMethod}}
	excluded := &Element{Kind: KindClass, Name: "a/Gone"}
	outer := &Element{Kind: KindClass, Name: "a/Outer", Classes: []*Element{inner}}
	pkg := &Element{Kind: KindPackage, Name: "a", Classes: []*Element{outer, excluded}}

	scope := Scope{Excluded: func(el *Element) bool { return el.Name == "a/Gone" }}
	res := NewEngine(Server).Resolve(pkg, scope)
	require.Len(t, res.Removed, 2)
	assert.Same(t, innerMethod, res.Removed[0].Element)
	assert.Same(t, excluded, res.Removed[1].Element)
	assert.Equal(t, ReasonManifest, res.Removed[1].Reason)

	scope.Inspect = func(el *Element) bool { return el.Name == "a/Outer" }
	res = NewEngine(Server).Resolve(pkg, scope)
	require.Len(t, res.Removed, 1)
	assert.Same(t, excluded, res.Removed[0].Element)
}

func TestResolve_PackageRemoval(t *testing.T) {
	rule := Rules()[4]
	pkg := &Element{
		Kind:        KindPackage,
		Name:        "com.example.client",
		Annotations: []Annotation{onlyIn(rule, "EnvType.CLIENT")},
		Classes:     []*Element{{Kind: KindClass, Name: "com/example/client/A"}},
	}
	res := NewEngine(Server).Resolve(pkg, Scope{})
	require.Len(t, res.Removed, 1)
	assert.Same(t, pkg, res.Removed[0].Element)
}

func TestResolve_InterfacesCollected(t *testing.T) {
	rule := Rules()[1]
	class := &Element{Kind: KindClass, Name: "a/B", Annotations: []Annotation{{
		Type: rule.RepeatableContainer,
		Nested: []Annotation{
			{Type: rule.AnnotationType, Values: map[string]string{"value": "CLIENT", "_interface": "a/I"}},
			{Type: rule.AnnotationType, Values: map[string]string{"value": "DEDICATED_SERVER", "_interface": "a/J"}},
		},
	}}}

	res := NewEngine(Common).Resolve(class, Scope{})
	assert.Empty(t, res.Removed)
	assert.Equal(t, []string{"a/I", "a/J"}, res.Interfaces[class])
	assert.False(t, res.Empty())
}
