package collector

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainText 去掉 HTML 标签并压缩空白
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes 按 rune 截断，超长时追加 "..."
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if limit <= 0 || len(rs) <= limit {
		return s
	}
	return strings.TrimSpace(string(rs[:limit])) + "..."
}

// extractDescription 从正文 HTML 中提取不超过 200 字符的摘要
func extractDescription(body string) string {
	return truncateRunes(plainText(body), 200)
}

// HashURL 对 URL 做 sha1，作为无稳定 ID 的数据源的外部标识
func HashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
