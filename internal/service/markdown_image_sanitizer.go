package service

import (
	"fmt"
	"regexp"
	"strings"
)

var markdownImagePattern = regexp.MustCompile(`!\[[^\]]*]\((<[^>]+>|[^)\s]+)([^)]*)\)`)

// markdownImagePlaceholders 记录被压缩的图片链接数量。
// 衍生稿是纯文本产物，不需要把占位符还原回去。
type markdownImagePlaceholders struct {
	count int
}

// compressMarkdownImageURLs 将草稿 Markdown 中的图片长链接替换为
// 短占位符，降低 Prompt 的 Token 消耗。
func compressMarkdownImageURLs(input string) (string, *markdownImagePlaceholders) {
	if !markdownImagePattern.MatchString(input) {
		return input, &markdownImagePlaceholders{}
	}

	index := 1
	placeholders := &markdownImagePlaceholders{}

	result := markdownImagePattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := markdownImagePattern.FindStringSubmatch(match)
		if len(groups) < 3 {
			return match
		}

		original := groups[1]
		placeholder := fmt.Sprintf("image://asset-%d", index)
		index++
		placeholders.count++

		if strings.HasPrefix(original, "<") && strings.HasSuffix(original, ">") {
			placeholder = fmt.Sprintf("<%s>", placeholder)
		}
		return strings.Replace(match, original, placeholder, 1)
	})

	return result, placeholders
}

// Count 返回被替换的图片数量。
func (p *markdownImagePlaceholders) Count() int {
	if p == nil {
		return 0
	}
	return p.count
}
