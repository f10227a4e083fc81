package domain

import (
	"encoding/json"
	"testing"
)

func TestFieldRecord_CopiesInput(t *testing.T) {
	genres := []string{"Horror", "Classics"}
	in := map[string]Value{
		KeyTitle:  Text("Dune"),
		KeyGenres: List(genres),
	}
	r := NewFieldRecord(in)

	in[KeyTitle] = Text("changed")
	delete(in, KeyGenres)
	genres[0] = "changed"

	if got, _ := r.Text(KeyTitle); got != "Dune" {
		t.Fatalf("修改输入 map 不应影响 record：Title=%q", got)
	}
	list, ok := r.List(KeyGenres)
	if !ok || list[0] != "Horror" {
		t.Fatalf("修改输入切片不应影响 record：%v", list)
	}

	list[1] = "changed"
	again, _ := r.List(KeyGenres)
	if again[1] != "Classics" {
		t.Fatalf("List 应返回副本：%v", again)
	}
}

func TestFieldRecord_TypedAccessors(t *testing.T) {
	r := NewFieldRecord(map[string]Value{
		KeyTitle:  Text("Dune"),
		KeyGenres: List(nil),
	})

	if _, ok := r.List(KeyTitle); ok {
		t.Fatalf("文本字段不应能按列表读取")
	}
	if _, ok := r.Text(KeyGenres); ok {
		t.Fatalf("列表字段不应能按文本读取")
	}
	if r.Has(KeyCover) {
		t.Fatalf("不存在的字段 Has 应为 false")
	}
	keys := r.Keys()
	if len(keys) != 2 || keys[0] != KeyGenres || keys[1] != KeyTitle {
		t.Fatalf("Keys 应按字典序：%v", keys)
	}
}

func TestFieldRecord_MarshalJSON(t *testing.T) {
	r := NewFieldRecord(map[string]Value{
		KeyURL:    Text("https://example.test/b/1"),
		KeyGenres: List([]string{"Horror"}),
		"Pages":   Text("250"),
	})
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	want := `{"Genres":["Horror"],"Pages":"250","url":"https://example.test/b/1"}`
	if string(b) != want {
		t.Fatalf("JSON 不符合预期：\n got=%s\nwant=%s", b, want)
	}

	empty, err := json.Marshal(NewFieldRecord(map[string]Value{KeyGenres: List(nil)}))
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if string(empty) != `{"Genres":[]}` {
		t.Fatalf("空列表应输出 []：%s", empty)
	}

	var zero FieldRecord
	z, _ := json.Marshal(zero)
	if string(z) != "{}" {
		t.Fatalf("零值 record 应输出 {}：%s", z)
	}
}
