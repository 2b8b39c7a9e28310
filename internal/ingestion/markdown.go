package ingestion

import (
	"regexp"
	"strings"
)

// Markdown cleanup patterns. The goal is readable plain text for embedding,
// not a faithful render: code is dropped entirely because API syntax drowns
// out the prose the embeddings should capture.
var (
	fencedCodeBlock = regexp.MustCompile("(?s)```.*?```")
	inlineCode      = regexp.MustCompile("`[^`]*`")
	htmlTag         = regexp.MustCompile(`<[^>]+>`)
	mdImage         = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink          = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdHeading       = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	mdEmphasis      = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
	mdListMarker    = regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s+`)
	mdBlockquote    = regexp.MustCompile(`(?m)^\s*>\s?`)
	mdTableRule     = regexp.MustCompile(`(?m)^\s*\|?[-:| ]+\|?\s*$`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// ExtractFrontmatter splits YAML frontmatter from a markdown document.
// Only simple key: value pairs are parsed; quoted values are unquoted.
// Documents without a leading "---" block return an empty map and the
// content unchanged.
func ExtractFrontmatter(content string) (map[string]string, string) {
	frontmatter := map[string]string{}
	body := content

	if strings.HasPrefix(content, "---") {
		parts := strings.SplitN(content, "---", 3)
		if len(parts) >= 3 {
			for _, line := range strings.Split(strings.TrimSpace(parts[1]), "\n") {
				key, value, ok := strings.Cut(line, ":")
				if !ok {
					continue
				}
				value = strings.TrimSpace(value)
				value = strings.Trim(value, `"`)
				value = strings.Trim(value, `'`)
				frontmatter[strings.TrimSpace(key)] = value
			}
			body = strings.TrimSpace(parts[2])
		}
	}

	return frontmatter, body
}

// TitleFromFrontmatter returns the document title, or fallback when the
// frontmatter has no title key.
func TitleFromFrontmatter(content, fallback string) string {
	frontmatter, _ := ExtractFrontmatter(content)
	if title, ok := frontmatter["title"]; ok && title != "" {
		return title
	}
	return fallback
}

// MarkdownToText flattens markdown (or MDX) into plain text suitable for
// embedding: frontmatter, code, tags, and formatting syntax are removed and
// whitespace is collapsed.
func MarkdownToText(content string) string {
	_, body := ExtractFrontmatter(content)

	body = fencedCodeBlock.ReplaceAllString(body, "")
	body = inlineCode.ReplaceAllString(body, "")
	body = mdImage.ReplaceAllString(body, "$1")
	body = mdLink.ReplaceAllString(body, "$1")
	body = htmlTag.ReplaceAllString(body, " ")
	body = mdHeading.ReplaceAllString(body, "")
	body = mdEmphasis.ReplaceAllString(body, "$1")
	body = mdListMarker.ReplaceAllString(body, "")
	body = mdBlockquote.ReplaceAllString(body, "")
	body = mdTableRule.ReplaceAllString(body, "")
	body = strings.ReplaceAll(body, "|", " ")

	return strings.TrimSpace(whitespaceRun.ReplaceAllString(body, " "))
}

// ChunkText splits text into overlapping word-window chunks. Text of at most
// chunkSize words is returned whole. Successive windows advance by
// chunkSize-overlap words so chunk boundaries never lose context.
func ChunkText(text string, chunkSize, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
