package main

import (
	"errors"
	"strings"
)

// factInput is the parsed form of a command-line fact description:
//
//	activity@category, description #tag #tag
//
// Everything past the activity is optional.
type factInput struct {
	Activity    string
	Category    string
	Description string
	Tags        []string
}

var errEmptyActivity = errors.New("activity name is required")

// parseFactInput splits the activity@category, description #tag form.
// Tags are picked off the end of the description; a '#' inside running
// text is left alone.
func parseFactInput(s string) (factInput, error) {
	var in factInput

	head := s
	if i := strings.Index(s, ","); i >= 0 {
		head = s[:i]
		in.Description = strings.TrimSpace(s[i+1:])
	}

	if i := strings.Index(head, "@"); i >= 0 {
		in.Activity = strings.TrimSpace(head[:i])
		in.Category = strings.TrimSpace(head[i+1:])
	} else {
		in.Activity = strings.TrimSpace(head)
	}
	if in.Activity == "" {
		return factInput{}, errEmptyActivity
	}

	// Trailing #tags belong to the fact, not the description.
	for {
		i := strings.LastIndex(in.Description, "#")
		if i < 0 || strings.ContainsAny(in.Description[i+1:], " \t") {
			break
		}
		tag := strings.TrimSpace(in.Description[i+1:])
		if tag == "" {
			break
		}
		in.Tags = append([]string{tag}, in.Tags...)
		in.Description = strings.TrimSpace(in.Description[:i])
	}
	return in, nil
}
