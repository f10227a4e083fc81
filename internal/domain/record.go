package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// 固定字段名。书目信息框（data box）的行标签也会成为字段名，因此字段集合是开放的。
const (
	KeyURL            = "url"
	KeyTitle          = "Title"
	KeyAuthor         = "Author"
	KeyCover          = "Cover"
	KeyDescription    = "Description"
	KeyFirstPublished = "First published"
	KeyGenres         = "Genres"
)

// Value 是单个字段的值：要么是文本，要么是有序字符串列表（例如 Genres）。
type Value struct {
	text  string
	list  []string
	multi bool
}

func Text(s string) Value { return Value{text: s} }

// List 复制 items，调用方之后修改原切片不影响 Value。
func List(items []string) Value {
	return Value{list: append(make([]string, 0, len(items)), items...), multi: true}
}

func (v Value) IsList() bool { return v.multi }

// String 返回文本值；列表值以 ", " 拼接（用于终端展示）。
func (v Value) String() string {
	if v.multi {
		return strings.Join(v.list, ", ")
	}
	return v.text
}

// Strings 返回列表副本；文本值返回单元素切片。
func (v Value) Strings() []string {
	if v.multi {
		return append([]string(nil), v.list...)
	}
	return []string{v.text}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.multi {
		return json.Marshal(v.list)
	}
	return json.Marshal(v.text)
}

// FieldRecord 是一次抽取的结果：字段名 -> 值。
//
// 约束：
// - 构造后不可变（内部 map 不对外暴露）
// - 可选字段缺失 = key 不存在，绝不用空串占位
type FieldRecord struct {
	fields map[string]Value
}

// NewFieldRecord 复制 fields 构造 FieldRecord。
func NewFieldRecord(fields map[string]Value) FieldRecord {
	m := make(map[string]Value, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return FieldRecord{fields: m}
}

func (r FieldRecord) Len() int { return len(r.fields) }

func (r FieldRecord) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

func (r FieldRecord) Get(key string) (Value, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Text 读取文本字段；key 不存在或是列表值时 ok=false。
func (r FieldRecord) Text(key string) (string, bool) {
	v, ok := r.fields[key]
	if !ok || v.multi {
		return "", false
	}
	return v.text, true
}

// List 读取列表字段（返回副本）；key 不存在或是文本值时 ok=false。
func (r FieldRecord) List(key string) ([]string, bool) {
	v, ok := r.fields[key]
	if !ok || !v.multi {
		return nil, false
	}
	return v.Strings(), true
}

// Keys 按字典序返回所有字段名。
func (r FieldRecord) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r FieldRecord) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.fields)
}
