// Package format renders the heterogeneous full-query payload into plain
// text and pulls out specific answers (solutions, steps, facts, statistics).
package format

import (
	"fmt"
	"strings"

	"wolframgate/internal/wolfram"
)

// Sentinels returned when no matching content exists. Extractors never fail
// on an empty result; callers show these directly.
const (
	NoResult   = "no result"
	NoSolution = "no solution found"
)

// solverScanner is the remote-side classifier tag for the equation solver.
const solverScanner = "Solve"

// Fact is one free-text fragment paired with the section it came from.
type Fact struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// minFactLen filters out degenerate fragments ("x", "4", units-only lines).
const minFactLen = 10

// RenderText renders a full query result as ordered text sections.
//
// Pods titled "Input" are dropped (the caller already knows what it asked).
// Pods marked primary are preferred; when none is marked primary all
// remaining pods are rendered. Each pod contributes its title followed by
// its plain-text fragments. Assumptions and warnings, when present, follow
// the main sections in that order.
func RenderText(qr *wolfram.QueryResult) string {
	if qr == nil || len(qr.Pods) == 0 {
		return NoResult
	}

	pods := selectPods(qr)

	var b strings.Builder
	for _, pod := range pods {
		texts := podTexts(pod)
		if len(texts) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pod.Title)
		for _, text := range texts {
			b.WriteString("\n")
			b.WriteString(text)
		}
	}

	if b.Len() == 0 {
		return NoResult
	}

	if block := assumptionsBlock(qr.Assumptions); block != "" {
		b.WriteString("\n\n")
		b.WriteString(block)
	}
	if block := warningsBlock(qr.Warnings); block != "" {
		b.WriteString("\n\n")
		b.WriteString(block)
	}

	return b.String()
}

// selectPods drops "Input" pods and applies the primary preference.
func selectPods(qr *wolfram.QueryResult) []wolfram.Pod {
	remaining := make([]wolfram.Pod, 0, len(qr.Pods))
	primary := make([]wolfram.Pod, 0, 2)
	for _, pod := range qr.Pods {
		if pod.Title == "Input" {
			continue
		}
		remaining = append(remaining, pod)
		if pod.Primary {
			primary = append(primary, pod)
		}
	}
	if len(primary) > 0 {
		return primary
	}
	return remaining
}

func podTexts(pod wolfram.Pod) []string {
	texts := make([]string, 0, len(pod.SubPods))
	for _, sp := range pod.SubPods {
		if t := strings.TrimSpace(sp.PlainText); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

func assumptionsBlock(assumptions []wolfram.Assumption) string {
	lines := make([]string, 0, len(assumptions))
	for _, a := range assumptions {
		descs := make([]string, 0, len(a.Values))
		for _, v := range a.Values {
			if v.Desc != "" {
				descs = append(descs, v.Desc)
			}
		}
		if len(descs) > 0 {
			lines = append(lines, strings.Join(descs, ", "))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Assumptions:\n" + strings.Join(lines, "\n")
}

func warningsBlock(warnings []wolfram.Warning) string {
	lines := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if w.Text != "" {
			lines = append(lines, w.Text)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Warnings:\n" + strings.Join(lines, "\n")
}

// Solution extracts an equation solution: the first non-empty fragment of a
// pod titled "Solution" or "Result", or whose title mentions a solution.
func Solution(qr *wolfram.QueryResult) string {
	if qr == nil {
		return NoSolution
	}
	for _, pod := range qr.Pods {
		if !isSolutionPod(pod.Title) {
			continue
		}
		for _, text := range podTexts(pod) {
			return text
		}
	}
	return NoSolution
}

func isSolutionPod(title string) bool {
	if title == "Solution" || title == "Result" {
		return true
	}
	return strings.Contains(strings.ToLower(title), "solution")
}

// Steps extracts step-by-step text: pods whose title mentions steps or which
// the equation solver produced. When nothing matches, every pod is rendered
// as "title: text" so the caller still gets the full working.
func Steps(qr *wolfram.QueryResult) []string {
	if qr == nil || len(qr.Pods) == 0 {
		return []string{NoResult}
	}

	steps := make([]string, 0, len(qr.Pods))
	for _, pod := range qr.Pods {
		if !strings.Contains(strings.ToLower(pod.Title), "step") && pod.Scanner != solverScanner {
			continue
		}
		steps = append(steps, podTexts(pod)...)
	}
	if len(steps) > 0 {
		return steps
	}

	for _, pod := range qr.Pods {
		for _, text := range podTexts(pod) {
			steps = append(steps, fmt.Sprintf("%s: %s", pod.Title, text))
		}
	}
	if len(steps) == 0 {
		return []string{NoResult}
	}
	return steps
}

// Facts collects every substantial plain-text fragment with its pod title.
// Returns nil when nothing qualifies; callers substitute a placeholder.
func Facts(qr *wolfram.QueryResult) []Fact {
	if qr == nil {
		return nil
	}
	var facts []Fact
	for _, pod := range qr.Pods {
		for _, text := range podTexts(pod) {
			if len(text) > minFactLen {
				facts = append(facts, Fact{Title: pod.Title, Text: text})
			}
		}
	}
	return facts
}

// Statistics maps each pod title to its plain-text fragments.
func Statistics(qr *wolfram.QueryResult) map[string][]string {
	analysis := make(map[string][]string)
	if qr == nil {
		return analysis
	}
	for _, pod := range qr.Pods {
		if texts := podTexts(pod); len(texts) > 0 {
			analysis[pod.Title] = append(analysis[pod.Title], texts...)
		}
	}
	return analysis
}
