package chat

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/sibyl/core"
)

// DefaultSystemPrompt instructs the model how to use the knowledge entries.
const DefaultSystemPrompt = `You are Sibyl, a technical support assistant.
Answer the user's question using the numbered knowledge entries below when they are relevant.
Cite every entry you use with its marker, for example [1] or [2].
If the entries do not cover the question, say so briefly and answer from general knowledge.
Be concise and accurate.`

const noKnowledge = "No knowledge entries matched this question."

// promptEntryLimit caps the characters of one entry rendered into the prompt.
const promptEntryLimit = 1000

var citationPattern = regexp.MustCompile(`\[(\d{1,2})\]`)

// buildMessages assembles the conversation sent to the generation chain: the
// system instruction with the numbered entries, the prior history and the new
// user message.
func buildMessages(system, extra string, entries []core.Evidence, history []core.Message, message string, now time.Time) []core.Message {
	var b strings.Builder
	b.WriteString(system)
	if extra != "" {
		b.WriteString("\n\nAdditional context from the user:\n")
		b.WriteString(extra)
	}
	b.WriteString("\n\nKnowledge:\n")
	if len(entries) == 0 {
		b.WriteString(noKnowledge)
	}
	for i, e := range entries {
		fmt.Fprintf(&b, "[%d] (%s", i+1, e.Kind)
		if e.Origin.Title != "" {
			fmt.Fprintf(&b, ", %s", e.Origin.Title)
		}
		fmt.Fprintf(&b, ") %s\n", truncateRunes(e.Content, promptEntryLimit))
	}

	messages := make([]core.Message, 0, len(history)+2)
	messages = append(messages, core.Message{Role: core.RoleSystem, Text: strings.TrimRight(b.String(), "\n"), Timestamp: now})
	for _, m := range history {
		// Stored system turns are superseded by the fresh instruction
		if m.Role == core.RoleSystem {
			continue
		}
		messages = append(messages, m)
	}
	return append(messages, core.Message{Role: core.RoleUser, Text: message, Timestamp: now})
}

// citedIndexes returns the distinct zero based entry indexes cited in text as
// [n] markers, in entry order. Markers outside 1..count are ignored.
func citedIndexes(text string, count int) []int {
	var cited []int
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > count {
			continue
		}
		if !slices.Contains(cited, n-1) {
			cited = append(cited, n-1)
		}
	}
	slices.Sort(cited)
	return cited
}

// sources returns up to limit entries of the ranked context. Entries the reply
// cites come first in citation order, then the rest in rank order. The first
// prompted entries were numbered in the prompt and keep that number.
func sources(reply string, ranked []core.Evidence, prompted, limit, contentLimit int) []Source {
	prompted = min(prompted, len(ranked))
	cited := citedIndexes(reply, prompted)
	order := make([]int, 0, len(ranked))
	order = append(order, cited...)
	for i := range ranked {
		if !slices.Contains(cited, i) {
			order = append(order, i)
		}
	}
	if len(order) > limit {
		order = order[:limit]
	}

	out := make([]Source, 0, len(order))
	for _, i := range order {
		e := ranked[i]
		src := Source{
			Type:       e.Kind.String(),
			Content:    truncateRunes(e.Content, contentLimit),
			Relevance:  e.Score,
			DocumentID: e.Origin.DocumentID,
			ItemID:     e.Origin.ItemID,
			Title:      e.Origin.Title,
			Cited:      slices.Contains(cited, i),
		}
		if i < prompted {
			src.Citation = i + 1
		}
		out = append(out, src)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
