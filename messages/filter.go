package messages

import (
	"fmt"
	"strings"
)

// Tab selects which messages are shown
type Tab string

const (
	TabAll       Tab = "all" // Everything that is not archived
	TabFavorites Tab = "favorites"
	TabArchived  Tab = "archived"
)

func ParseTab(s string) (Tab, error) {
	switch t := Tab(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TabAll, nil
	case TabAll, TabFavorites, TabArchived:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown tab %q", ErrValidation, s)
	}
}

// Filter keeps the messages that belong on tab and contain search (case-insensitive)
func Filter(msgs []Message, tab Tab, search string) []Message {
	search = strings.ToLower(strings.TrimSpace(search))

	filtered := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if search != "" && !strings.Contains(strings.ToLower(m.Content), search) {
			continue
		}
		switch tab {
		case TabFavorites:
			if !m.Favorite || m.Archived {
				continue
			}
		case TabArchived:
			if !m.Archived {
				continue
			}
		default:
			if m.Archived {
				continue
			}
		}
		filtered = append(filtered, m)
	}
	return filtered
}
