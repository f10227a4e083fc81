package document

import (
	"strings"
)

// Node 是解析后 HTML 树上的只读节点（文档根本身也是一个 Node）。
//
// 约束：
// - 只暴露四种查询能力：Find / FindAll / Text / Attr
// - 实现必须只读，允许多个 goroutine 并发查询同一棵树
type Node interface {
	// Find 返回文档顺序中第一个匹配 tag + matchers 的后代节点。
	Find(tag string, m ...Matcher) (Node, bool)
	// FindAll 按文档顺序返回所有匹配的后代节点（无匹配时返回空切片）。
	FindAll(tag string, m ...Matcher) []Node
	// Text 返回节点及其后代的文本内容（不做 trim，由调用方决定）。
	Text() string
	// Attr 读取属性值；属性不存在时 ok=false。
	Attr(name string) (string, bool)
}

// Matcher 是一个属性谓词。
//
// class 按 HTML 语义匹配：只要 class 属性的某个空白分隔 token 等于 Value 即可；
// 其他属性要求完全相等。
type Matcher struct {
	Name  string
	Value string
}

func ID(v string) Matcher { return Matcher{Name: "id", Value: v} }

func Class(v string) Matcher { return Matcher{Name: "class", Value: v} }

func AttrEq(name, v string) Matcher { return Matcher{Name: name, Value: v} }

// Match 在不依赖具体解析库的情况下判断 n 是否满足 m。
func (m Matcher) Match(n Node) bool {
	v, ok := n.Attr(m.Name)
	if !ok {
		return false
	}
	if strings.EqualFold(m.Name, "class") {
		return HasClass(v, m.Value)
	}
	return v == m.Value
}

// HasClass 判断 class 属性值 classes 中是否包含 token name。
func HasClass(classes, name string) bool {
	for _, c := range strings.Fields(classes) {
		if c == name {
			return true
		}
	}
	return false
}
