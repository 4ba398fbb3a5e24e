package parse

import (
	"errors"
	"reflect"
	"testing"
)

func TestJSON(t *testing.T) {
	type finding struct {
		Query  string `json:"query"`
		Copied bool   `json:"copied"`
	}

	tests := []struct {
		name    string
		content string
		want    finding
		wantErr bool
	}{
		{name: "valid", content: `{"query":"a","copied":true}`, want: finding{Query: "a", Copied: true}},
		{name: "prose around", content: "Here you go: {\"query\":\"b\",\"copied\":false} hope it helps", want: finding{Query: "b"}},
		{name: "fenced", content: "```json\n{\"query\":\"c\",\"copied\":true}\n```", want: finding{Query: "c", Copied: true}},
		{name: "repaired quotes and comma", content: `{'query': 'd', 'copied': true,}`, want: finding{Query: "d", Copied: true}},
		{name: "truncated", content: `{"query": "e", "copied": true`, want: finding{Query: "e", Copied: true}},
		{name: "wrong type", content: `{"query": 12}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSON[finding](tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("JSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("JSON() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestJSON_NoValue(t *testing.T) {
	if _, err := JSON[[]string]("no brackets here"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"  plain  ":               "plain",
		"```\n[1]\n```":           "[1]",
		"```json\n{\"a\":1}\n```": "{\"a\":1}",
		"```":                     "",
	}
	for input, want := range tests {
		if got := StripCodeFence(input); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestQueries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "marker", content: "A. split_here B.", want: []string{"A.", "B."}},
		{name: "marker with newlines", content: "First sentence.\nsplit_here\nSecond sentence.\nsplit_here\n", want: []string{"First sentence.", "Second sentence."}},
		{name: "single", content: "Only one sentence.", want: []string{"Only one sentence."}},
		{name: "blank", content: "  split_here \n split_here", want: []string{}},
		{name: "empty", content: "", want: []string{}},
		{name: "json array", content: `["A.", "B.", "  "]`, want: []string{"A.", "B."}},
		{name: "fenced broken array", content: "```json\n['A.', 'B.',\n```", want: []string{"A.", "B."}},
		{name: "bracket text is not json", content: "[1] is a citation split_here next", want: []string{"[1] is a citation", "next"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Queries(tt.content)
			if got == nil || !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Queries(%q) = %#v, want %#v", tt.content, got, tt.want)
			}
		})
	}
}
