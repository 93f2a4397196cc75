package city

import (
	"fmt"
	"strings"
)

// Matcher normalizes user input to one of a list of canonical names
type Matcher interface {
	Match(input string, candidates []string) (string, bool)
}

// SubstringMatcher accepts exact names, else the first candidate that contains
// the input (case-sensitive)
type SubstringMatcher struct{}

func (SubstringMatcher) Match(input string, candidates []string) (string, bool) {
	if input == "" {
		return "", false
	}
	for _, c := range candidates {
		if c == input {
			return c, true
		}
	}
	for _, c := range candidates {
		if strings.Contains(c, input) {
			return c, true
		}
	}
	return "", false
}

// ResolveStation maps user input to a station name. Candidates are tried in
// sorted order.
func (c *City) ResolveStation(m Matcher, input string) (string, error) {
	if m == nil {
		m = SubstringMatcher{}
	}
	name, ok := m.Match(input, c.StationNames())
	if !ok {
		return "", fmt.Errorf("station %q: %w", input, ErrNotFound)
	}
	return name, nil
}

// ResolveLine maps user input to a line name, trying lines in declaration order.
// Line codes are accepted as exact aliases.
func (c *City) ResolveLine(m Matcher, input string) (string, error) {
	if m == nil {
		m = SubstringMatcher{}
	}
	if _, ok := c.Lines[input]; !ok {
		for _, name := range c.LineOrder {
			if code := c.Lines[name].Code; code != "" && code == input {
				return name, nil
			}
		}
	}
	name, ok := m.Match(input, c.LineOrder)
	if !ok {
		return "", fmt.Errorf("line %q: %w", input, ErrNotFound)
	}
	return name, nil
}
