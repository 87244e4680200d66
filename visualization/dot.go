// Package visualization renders state machine definitions with Graphviz
package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anggasct/crossing/pkg/fsm"
)

// DOTGenerator generates Graphviz DOT format representations of state machines
type DOTGenerator struct {
	definition fsm.Definition
	options    DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	Name              string
	ShowEvents        bool
	ShowGuards        bool
	ShowActions       bool
	HighlightState    string
	RankDirection     string // "TB", "LR", "BT", "RL"
	NodeShape         string
	FinalShape        string
	GuardedEdgeStyle  string
	DefaultEdgeStyle  string
	InitialFillColor  string
	FinalFillColor    string
	DefaultFillColor  string
	HighlightPenWidth int
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		Name:              "StateMachine",
		ShowEvents:        true,
		ShowGuards:        true,
		ShowActions:       true,
		RankDirection:     "LR",
		NodeShape:         "box",
		FinalShape:        "doublecircle",
		GuardedEdgeStyle:  "dashed",
		DefaultEdgeStyle:  "solid",
		InitialFillColor:  "lightgreen",
		FinalFillColor:    "lightcoral",
		DefaultFillColor:  "lightblue",
		HighlightPenWidth: 3,
	}
}

// NewDOTGenerator creates a new DOT generator for the given machine definition
func NewDOTGenerator(definition fsm.Definition, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		definition: definition,
		options:    opts,
	}
}

// Generate creates a DOT representation of the state machine
func (g *DOTGenerator) Generate() (string, error) {
	if g.definition == nil {
		return "", fmt.Errorf("no machine definition")
	}

	var dot strings.Builder

	dot.WriteString(fmt.Sprintf("digraph %s {\n", quoteID(g.options.Name)))
	dot.WriteString(fmt.Sprintf("  rankdir=%s;\n", g.options.RankDirection))
	dot.WriteString(fmt.Sprintf("  node [shape=%s];\n", g.options.NodeShape))
	dot.WriteString("  edge [fontsize=10];\n\n")

	g.generateStates(&dot)
	dot.WriteString("\n")
	g.generateTransitions(&dot)

	dot.WriteString("}\n")
	return dot.String(), nil
}

// generateStates generates DOT nodes for all states in declaration order
func (g *DOTGenerator) generateStates(dot *strings.Builder) {
	initial := g.definition.GetInitialState()

	dot.WriteString("  // States\n")
	for _, state := range g.definition.GetStates() {
		id := state.ID()
		shape := g.options.NodeShape
		fill := g.options.DefaultFillColor
		label := id

		switch {
		case id == initial:
			fill = g.options.InitialFillColor
			label += "\\n(initial)"
		case state.IsFinal():
			shape = g.options.FinalShape
			fill = g.options.FinalFillColor
		}

		extra := ""
		if id == g.options.HighlightState {
			extra = fmt.Sprintf(" penwidth=%d", g.options.HighlightPenWidth)
		}

		dot.WriteString(fmt.Sprintf("  %s [shape=%s style=\"filled\" fillcolor=%s label=\"%s\"%s];\n",
			quoteID(id), shape, fill, label, extra))
	}
}

// generateTransitions generates DOT edges for all transitions
func (g *DOTGenerator) generateTransitions(dot *strings.Builder) {
	dot.WriteString("  // Transitions\n")
	for _, t := range g.definition.GetTransitions() {
		style := g.options.DefaultEdgeStyle
		if t.Guard != nil {
			style = g.options.GuardedEdgeStyle
		}

		attrs := []string{fmt.Sprintf("style=%s", style)}
		if label := g.edgeLabel(t); label != "" {
			attrs = append(attrs, fmt.Sprintf("label=\"%s\"", label))
		}

		dot.WriteString(fmt.Sprintf("  %s -> %s [%s];\n",
			quoteID(t.SourceState), quoteID(t.TargetState), strings.Join(attrs, " ")))
	}
}

func (g *DOTGenerator) edgeLabel(t *fsm.Transition) string {
	var label string
	if g.options.ShowEvents {
		label = t.EventName
	}
	if g.options.ShowGuards && t.Guard != nil {
		label += " [guard]"
	}
	if g.options.ShowActions && t.Action != nil {
		label += " / action"
	}
	return strings.TrimSpace(label)
}

func quoteID(id string) string {
	return "\"" + strings.ReplaceAll(id, "\"", "\\\"") + "\""
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// SVGGenerator generates SVG representations by calling Graphviz
type SVGGenerator struct {
	dotGenerator *DOTGenerator
}

// NewSVGGenerator creates a new SVG generator
func NewSVGGenerator(definition fsm.Definition, options ...DOTOptions) *SVGGenerator {
	return &SVGGenerator{
		dotGenerator: NewDOTGenerator(definition, options...),
	}
}

// Generate creates an SVG representation of the state machine
func (g *SVGGenerator) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}
