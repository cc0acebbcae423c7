// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import "strings"

// repairJSON fixes the formatting slips extraction models make most often:
// prose around the object, keys missing their quotes, and trailing commas.
// String contents are never modified.
func repairJSON(s string) string {
	if start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); start >= 0 && end > start {
		s = s[start : end+1]
	}

	var b strings.Builder
	b.Grow(len(s) + 16)
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			b.WriteByte(ch)
			continue
		case ',':
			if next := skipSpace(s, i+1); next < len(s) && (s[next] == '}' || s[next] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
		if ch != '{' && ch != ',' {
			continue
		}

		// A key may follow: copy the whitespace, then quote a bare identifier
		// ending in `":` or `:`.
		j := skipSpace(s, i+1)
		b.WriteString(s[i+1 : j])
		i = j - 1
		if j >= len(s) || !isLetter(rune(s[j])) {
			continue
		}
		k := j
		for k < len(s) && isKeyByte(s[k]) {
			k++
		}
		switch {
		case k+1 < len(s) && s[k] == '"' && s[k+1] == ':':
			b.WriteString(`"` + s[j:k] + `"`)
			i = k
		case k < len(s) && s[k] == ':':
			b.WriteString(`"` + s[j:k] + `"`)
			i = k - 1
		}
	}
	return b.String()
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\n' || s[i] == '\t' || s[i] == '\r') {
		i++
	}
	return i
}

func isKeyByte(c byte) bool {
	return c == '_' || isLetter(rune(c)) || (c >= '0' && c <= '9')
}
