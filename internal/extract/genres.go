package extract

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/John-Robertt/bookmeta/internal/document"
)

// 这些类型过于宽泛，总是被排除（比较发生在 title case 之后，因此大小写无关）。
var genreStoplist = map[string]struct{}{
	"Science Fiction": {},
	"Fiction":         {},
	"Literature":      {},
	"Audiobook":       {},
}

// mutedClass 标记的链接属于“次要”类型，直接排除。
var mutedClass = document.Class("greyText")

// Genres 对类型链接做 过滤(muted) -> 规范化(title case) -> 过滤(stoplist)，
// 保持文档顺序，不去重。
func Genres(links []document.Node) []string {
	// cases.Caser 不是并发安全的，每次调用单独创建。
	title := cases.Title(language.English)

	out := make([]string, 0, len(links))
	for _, a := range links {
		if mutedClass.Match(a) {
			continue
		}
		name := title.String(strings.TrimSpace(a.Text()))
		if name == "" {
			continue
		}
		if _, stop := genreStoplist[name]; stop {
			continue
		}
		out = append(out, name)
	}
	return out
}
