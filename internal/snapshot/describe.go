// Package snapshot renders a plain-text description of a diagram for
// readers that cannot see the canvas.
package snapshot

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/haasonsaas/whiteboard/internal/canvas"
)

// EmptyDescription is returned for a sequence with no live elements.
const EmptyDescription = "The canvas is empty."

const idPrefixLen = 8

// Link lists the targets connected from one source element.
// Ids are truncated to their first 8 characters.
type Link struct {
	Source  string   `json:"source"`
	Targets []string `json:"targets"`
}

// Report is the result of Describe.
type Report struct {
	Description string `json:"description"`
	Connections []Link `json:"connections"`
	Shapes      int    `json:"shapes"`
	Texts       int    `json:"texts"`
	Arrows      int    `json:"arrows"`
}

// Describe summarizes elements. Tombstoned elements are skipped. The result
// depends only on the input sequence.
func Describe(elements []canvas.Element) Report {
	live := canvas.FilterDeleted(elements)
	report := Report{Connections: []Link{}}
	if len(live) == 0 {
		report.Description = EmptyDescription
		return report
	}

	labels := containerLabels(live)

	var shapes, texts, arrows []string
	linkIndex := map[string]int{}
	for _, el := range live {
		switch {
		case el.Type.IsLinear():
			arrows = append(arrows, fmt.Sprintf("Arrow from (%s, %s) to (%s, %s)",
				round(el.X), round(el.Y), round(el.X+el.Width), round(el.Y+el.Height)))
			start, end := bindingEnds(el)
			if start == "" || end == "" {
				continue
			}
			i, ok := linkIndex[start]
			if !ok {
				i = len(report.Connections)
				linkIndex[start] = i
				report.Connections = append(report.Connections, Link{Source: truncate(start)})
			}
			report.Connections[i].Targets = append(report.Connections[i].Targets, truncate(end))
		case el.Type == canvas.TypeText:
			content := ""
			if el.Text != nil {
				content = el.Text.Content
			}
			if content == "" {
				content = "(empty)"
			}
			texts = append(texts, fmt.Sprintf(`Text: "%s"`, content))
		case el.Type.IsShape():
			line := capitalize(string(el.Type))
			if label := labels[el.ID]; label != "" {
				line += fmt.Sprintf(` labeled "%s"`, label)
			}
			shapes = append(shapes, fmt.Sprintf("%s at (%s, %s)", line, round(el.X), round(el.Y)))
		}
	}

	report.Shapes = len(shapes)
	report.Texts = len(texts)
	report.Arrows = len(arrows)

	var b strings.Builder
	fmt.Fprintf(&b, "Canvas contains %d element(s):\n\n", len(live))
	writeSection(&b, "Shapes", shapes)
	writeSection(&b, "Text elements", texts)
	writeSection(&b, "Connections", arrows)
	if len(report.Connections) > 0 {
		b.WriteString("Element connections:\n")
		for _, link := range report.Connections {
			fmt.Fprintf(&b, "- Element %s connects to: %s\n", link.Source, strings.Join(link.Targets, ", "))
		}
	}
	report.Description = strings.TrimSpace(b.String())
	return report
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "%s (%d):\n", title, len(lines))
	for _, line := range lines {
		fmt.Fprintf(b, "- %s\n", line)
	}
	b.WriteString("\n")
}

// containerLabels maps shape id to the content of the first live text bound to it.
func containerLabels(elements []canvas.Element) map[string]string {
	labels := map[string]string{}
	for _, el := range elements {
		if el.Type != canvas.TypeText || el.Text == nil || el.Text.ContainerID == "" {
			continue
		}
		if _, ok := labels[el.Text.ContainerID]; !ok {
			labels[el.Text.ContainerID] = el.Text.Content
		}
	}
	return labels
}

func bindingEnds(el canvas.Element) (string, string) {
	if el.Arrow == nil {
		return "", ""
	}
	var start, end string
	if el.Arrow.StartBinding != nil {
		start = el.Arrow.StartBinding.ElementID
	}
	if el.Arrow.EndBinding != nil {
		end = el.Arrow.EndBinding.ElementID
	}
	return start, end
}

// round rounds half up, so -2.5 becomes -2.
func round(v float64) string {
	return strconv.FormatFloat(math.Floor(v+0.5)+0, 'f', -1, 64)
}

func truncate(id string) string {
	runes := []rune(id)
	if len(runes) <= idPrefixLen {
		return id
	}
	return string(runes[:idPrefixLen])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
