package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/bookmeta/internal/document"
	"github.com/John-Robertt/bookmeta/internal/domain"
)

// Options 控制“容器缺失”的处理方式。
//
// 默认（零值）：信息框 / 类型容器缺失时只省略对应字段；
// 置为 true：缺失即 MissingFieldError。
type Options struct {
	RequireDataBox bool
	RequireGenres  bool
}

// FieldExtractor 把书目详情页抽取为 FieldRecord。
//
// 约束：
// - 纯函数：不做 I/O、不持有可变状态，可并发用于不同文档
// - 要么完整成功，要么返回错误（不返回部分结果）
type FieldExtractor struct {
	Options Options
}

// MissingFieldError 表示结构上必需的元素（或调用方要求必须存在的容器）不存在。
type MissingFieldError struct {
	Field   string
	Locator string
}

func (e *MissingFieldError) Error() string {
	if e == nil {
		return "missing field"
	}
	if e.Locator == "" {
		return fmt.Sprintf("缺少必需字段 %s", e.Field)
	}
	return fmt.Sprintf("缺少必需字段 %s（%s）", e.Field, e.Locator)
}

func IsMissingField(err error) bool {
	var e *MissingFieldError
	return errors.As(err, &e)
}

// 保留字段：信息框行标签不能覆盖它们。
var reserved = map[string]struct{}{
	domain.KeyURL:    {},
	domain.KeyTitle:  {},
	domain.KeyAuthor: {},
	domain.KeyGenres: {},
}

// Extract 使用默认 Options 抽取。
func Extract(doc document.Node, sourceURL string) (domain.FieldRecord, error) {
	return FieldExtractor{}.Extract(doc, sourceURL)
}

func (x FieldExtractor) Extract(doc document.Node, sourceURL string) (domain.FieldRecord, error) {
	if doc == nil {
		return domain.FieldRecord{}, errors.New("document 为空")
	}

	fields := make(map[string]domain.Value, 16)
	fields[domain.KeyURL] = domain.Text(sourceURL)

	title, ok := findText(doc, "h1", document.ID("bookTitle"))
	if !ok || title == "" {
		return domain.FieldRecord{}, &MissingFieldError{Field: domain.KeyTitle, Locator: "h1#bookTitle"}
	}
	fields[domain.KeyTitle] = domain.Text(title)

	author := ""
	if a, ok := doc.Find("a", document.Class("authorName")); ok {
		author, _ = findText(a, "span", document.AttrEq("itemprop", "name"))
	}
	if author == "" {
		return domain.FieldRecord{}, &MissingFieldError{Field: domain.KeyAuthor, Locator: "a.authorName span[itemprop=name]"}
	}
	fields[domain.KeyAuthor] = domain.Text(author)

	if img, ok := doc.Find("img", document.ID("coverImage")); ok {
		if src, ok := img.Attr("src"); ok {
			fields[domain.KeyCover] = domain.Text(src)
		}
	}
	if s, ok := findText(doc, "div", document.ID("description")); ok {
		fields[domain.KeyDescription] = domain.Text(s)
	}
	if s, ok := findText(doc, "nobr", document.Class("greyText")); ok {
		fields[domain.KeyFirstPublished] = domain.Text(s)
	}

	box, ok := doc.Find("div", document.ID("bookDataBox"))
	if ok {
		for _, row := range dataBoxRows(box) {
			if _, r := reserved[row.label]; r {
				continue
			}
			fields[row.label] = domain.Text(row.value)
		}
	} else if x.Options.RequireDataBox {
		return domain.FieldRecord{}, &MissingFieldError{Field: "data box", Locator: "div#bookDataBox"}
	}

	right, ok := doc.Find("div", document.Class("rightContainer"))
	if ok {
		fields[domain.KeyGenres] = domain.List(Genres(right.FindAll("a", document.Class("bookPageGenreLink"))))
	} else if x.Options.RequireGenres {
		return domain.FieldRecord{}, &MissingFieldError{Field: domain.KeyGenres, Locator: "div.rightContainer"}
	}

	return domain.NewFieldRecord(fields), nil
}

type dataBoxRow struct {
	label string
	value string
}

// dataBoxRows 按文档顺序返回信息框中的“标签/值”行；缺少任一部分或标签为空的行被跳过。
func dataBoxRows(box document.Node) []dataBoxRow {
	rows := box.FindAll("div", document.Class("clearFloats"))
	out := make([]dataBoxRow, 0, len(rows))
	for _, r := range rows {
		label, ok := findText(r, "div", document.Class("infoBoxRowTitle"))
		if !ok || label == "" {
			continue
		}
		value, ok := findText(r, "div", document.Class("infoBoxRowItem"))
		if !ok {
			continue
		}
		out = append(out, dataBoxRow{label: label, value: value})
	}
	return out
}

func findText(n document.Node, tag string, m ...document.Matcher) (string, bool) {
	found, ok := n.Find(tag, m...)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(found.Text()), true
}
