package quarantine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sahilm/fuzzy"
	"github.com/sukoonbot/sukoon/modbot/database/models"
)

const caseSearchWindow = 200

// SearchCases fuzzy-matches recent cases by number, username or reason, for
// command autocomplete. An empty query returns the most recent cases.
func (m *Manager) SearchCases(ctx context.Context, guildID snowflake.ID, query string, limit int) ([]*models.Mute, error) {
	cases, err := m.mutes.ListCases(ctx, guildID, caseSearchWindow)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		if len(cases) > limit {
			cases = cases[:limit]
		}
		return cases, nil
	}

	// An exact case number always wins.
	if n, err := strconv.ParseInt(query, 10, 64); err == nil {
		for _, c := range cases {
			if c.CaseNumber == n {
				return []*models.Mute{c}, nil
			}
		}
	}

	haystack := make([]string, len(cases))
	for i, c := range cases {
		haystack[i] = fmt.Sprintf("%d %s %s", c.CaseNumber, c.Username, c.Reason)
	}

	matches := fuzzy.Find(query, haystack)
	out := make([]*models.Mute, 0, limit)
	for _, match := range matches {
		out = append(out, cases[match.Index])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
