// Package render turns document content into snapshot bytes. The text
// renderer is the built-in default; PDF or Word renderers plug in behind
// the same interface.
package render

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	dErrors "lexflow/pkg/domain-errors"
)

// SignatureLine is one completed signature shown on a rendered snapshot.
type SignatureLine struct {
	SignerName string
	SignedAt   time.Time
	IPAddress  string
	Position   int
}

// Input is everything a renderer needs. Signatures is empty for the
// original snapshot.
type Input struct {
	Title      string
	Content    string
	Variables  map[string]string
	Signatures []SignatureLine
}

type Output struct {
	Data        []byte
	ContentType string
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Text substitutes {{ name }} placeholders and appends a signature block.
type Text struct {
	// Strict fails on placeholders with no value instead of leaving them
	// verbatim.
	Strict bool
}

func (t Text) Render(_ context.Context, in Input) (Output, error) {
	var missing []string
	body := placeholder.ReplaceAllStringFunc(in.Content, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := in.Variables[name]; ok {
			return v
		}
		missing = append(missing, name)
		return m
	})
	if t.Strict && len(missing) > 0 {
		return Output{}, dErrors.New(dErrors.CodeValidation, "missing template variables: "+strings.Join(missing, ", "))
	}

	var b strings.Builder
	b.WriteString(in.Title)
	b.WriteString("\n\n")
	b.WriteString(body)
	if len(in.Signatures) > 0 {
		lines := append([]SignatureLine(nil), in.Signatures...)
		sort.SliceStable(lines, func(i, j int) bool {
			return lines[i].SignedAt.Before(lines[j].SignedAt)
		})
		b.WriteString("\n\n-- Signatures --\n")
		for _, l := range lines {
			fmt.Fprintf(&b, "%s signed at %s from %s\n", l.SignerName, l.SignedAt.UTC().Format(time.RFC3339), l.IPAddress)
		}
	}
	return Output{Data: []byte(b.String()), ContentType: "text/plain; charset=utf-8"}, nil
}
