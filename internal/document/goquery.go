package document

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse 用 goquery 解析 HTML 并返回文档根节点。
func Parse(r io.Reader) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return Wrap(doc.Selection), nil
}

func ParseBytes(html []byte) (Node, error) {
	return Parse(bytes.NewReader(html))
}

// Wrap 把一个 goquery.Selection（只取第一个元素）适配为 Node。
func Wrap(s *goquery.Selection) Node {
	return selection{s: s.First()}
}

type selection struct {
	s *goquery.Selection
}

func (n selection) Find(tag string, m ...Matcher) (Node, bool) {
	found := n.s.Find(compile(tag, m)).First()
	if found.Length() == 0 {
		return nil, false
	}
	return selection{s: found}, true
}

func (n selection) FindAll(tag string, m ...Matcher) []Node {
	found := n.s.Find(compile(tag, m))
	out := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, selection{s: s})
	})
	return out
}

func (n selection) Text() string { return n.s.Text() }

func (n selection) Attr(name string) (string, bool) { return n.s.Attr(name) }

// compile 把 tag + matchers 编译为 CSS 选择器（由 cascadia 执行）。
// class 使用 ~= 以获得 token 语义，其余属性使用 = 精确匹配。
func compile(tag string, m []Matcher) string {
	var b strings.Builder
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = "*"
	}
	b.WriteString(tag)
	for _, x := range m {
		op := "="
		if strings.EqualFold(x.Name, "class") {
			op = "~="
		}
		b.WriteByte('[')
		b.WriteString(x.Name)
		b.WriteString(op)
		b.WriteString(quote(x.Value))
		b.WriteByte(']')
	}
	return b.String()
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
