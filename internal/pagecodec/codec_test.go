package pagecodec

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"pkt.systems/todosync/schema"
)

func TestDecodeTodoParagraphs(t *testing.T) {
	page := `<div id="d1"><p data-tag="to-do">Buy milk</p><p data-tag="to-do:completed">Pay bills</p></div>`
	got, err := Decode(strings.NewReader(page))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := schema.TodoList{{Task: "Buy milk"}, {Task: "Pay bills", Done: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected list: %#v", got)
	}
}

func TestDecodeSkipsOtherParagraphs(t *testing.T) {
	page := `<html><head><title>ToDoGraphDemo: My To Dos</title></head><body>` +
		`<div id="div:{1}{2}"><p>placeholder</p>` +
		`<p data-tag="important">Not a todo</p>` +
		`<p data-tag="to-do">Call <b>mom</b> today</p>` +
		`<span data-tag="to-do">Not a paragraph</span>` +
		`<p data-tag="to-do:completed"></p>` +
		`</div></body></html>`
	got, err := Decode(strings.NewReader(page))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := schema.TodoList{{Task: "Call mom today"}, {Task: "", Done: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected list: %#v", got)
	}
}

func TestDecodeEmptyPage(t *testing.T) {
	got, err := Decode(strings.NewReader(`<div id="d1"><p>placeholder</p></div>`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestEncodeCompletedItem(t *testing.T) {
	got, err := Encode(schema.TodoList{{Task: "Buy milk", Done: true}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != `<p data-tag="to-do:completed">Buy milk</p>` {
		t.Fatalf("unexpected fragment %q", got)
	}
}

func TestEncodeKeepsOrder(t *testing.T) {
	got, err := Encode(schema.TodoList{{Task: "a"}, {Task: "b", Done: true}, {Task: "c"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `<p data-tag="to-do">a</p><p data-tag="to-do:completed">b</p><p data-tag="to-do">c</p>`
	if got != want {
		t.Fatalf("unexpected fragment %q", got)
	}
}

func TestEncodeEmptyList(t *testing.T) {
	got, err := Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty fragment, got %q", got)
	}
}

func TestEncodeEscapesMarkup(t *testing.T) {
	got, err := Encode(schema.TodoList{{Task: `<script>alert("x")</script> & more`}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(got, "<script>") {
		t.Fatalf("markup not escaped: %q", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") || !strings.Contains(got, "&amp; more") {
		t.Fatalf("unexpected escaping: %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	lists := []schema.TodoList{
		{},
		{{Task: "Buy milk"}},
		{{Task: "Buy milk", Done: true}, {Task: "Pay bills"}, {Task: "Buy milk"}},
		{{Task: `Fix <b>bold</b> & "quotes" 'too'`, Done: true}},
		{{Task: "Ünïcödé ✓"}},
	}
	for _, list := range lists {
		fragment, err := Encode(list)
		if err != nil {
			t.Fatalf("encode %#v: %v", list, err)
		}
		page := `<div id="d1">` + fragment + `</div>`
		got, err := Decode(strings.NewReader(page))
		if err != nil {
			t.Fatalf("decode %q: %v", page, err)
		}
		if !reflect.DeepEqual(got, list) {
			t.Fatalf("round trip mismatch: got %#v want %#v", got, list)
		}
	}
}

func TestAnchorFirstDiv(t *testing.T) {
	page := `<html><body data-absolute-enabled="true"><div id="div:{a}{30}" style="position:absolute"><div id="inner"></div><p>placeholder</p></div><div id="second"></div></body></html>`
	got, err := Anchor(strings.NewReader(page))
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}
	if got != "div:{a}{30}" {
		t.Fatalf("unexpected anchor %q", got)
	}
}

func TestAnchorMissing(t *testing.T) {
	cases := []string{
		`<html><body><p data-tag="to-do">x</p></body></html>`,
		`<div><p>no id</p></div>`,
		`<div id="  "></div>`,
	}
	for _, page := range cases {
		if _, err := Anchor(strings.NewReader(page)); !errors.Is(err, schema.ErrMalformedDocument) {
			t.Fatalf("expected malformed document for %q, got %v", page, err)
		}
	}
}

func TestNewPage(t *testing.T) {
	got := NewPage("ToDoGraphDemo: My To Dos")
	want := `<html><head><title>ToDoGraphDemo: My To Dos</title></head><body><div><p>placeholder</p></div></body></html>`
	if got != want {
		t.Fatalf("unexpected page %q", got)
	}
	list, err := Decode(strings.NewReader(got))
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list from new page, got %#v err=%v", list, err)
	}
	if got := NewPage("a<b"); !strings.Contains(got, "<title>a&lt;b</title>") {
		t.Fatalf("title not escaped: %q", got)
	}
}
