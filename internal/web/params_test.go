package web

import (
	"reflect"
	"testing"
)

func TestDecodeParams(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "decodes plus and percent",
			input: "a=1&b=hello+world&c=100%25",
			want:  map[string]string{"a": "1", "b": "hello world", "c": "100%"},
		},
		{
			name:  "double percent",
			input: "p=50%%",
			want:  map[string]string{"p": "50%"},
		},
		{
			name:  "segment without equals",
			input: "flag&x=1",
			want:  map[string]string{"flag": "", "x": "1"},
		},
		{
			name:  "last write wins",
			input: "k=first&k=second",
			want:  map[string]string{"k": "second"},
		},
		{
			name:  "value keeps later equals",
			input: "expr=a=b",
			want:  map[string]string{"expr": "a=b"},
		},
		{
			name:  "invalid escape kept",
			input: "v=%zz",
			want:  map[string]string{"v": "%zz"},
		},
		{
			name:  "empty segments kept under empty name",
			input: "&&a=1&",
			want:  map[string]string{"": "", "a": "1"},
		},
		{
			name:  "empty name kept",
			input: "=v&b=2",
			want:  map[string]string{"": "v", "b": "2"},
		},
		{
			name:  "empty",
			input: "",
			want:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeParams(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeParams(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeParamsIdempotentOnPlainInput(t *testing.T) {
	input := "name=alice&city=paris&n=42"
	first := DecodeParams(input)
	second := DecodeParams(input)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated decoding differs: %v vs %v", first, second)
	}
	if unescape(input) != input {
		t.Errorf("unescape(%q) = %q, want input unchanged", input, unescape(input))
	}
}

func TestDecodeCookies(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "leading blank and two cookies",
			input: " SID=abc123; foo=bar",
			want:  map[string]string{"SID": "abc123", "foo": "bar"},
		},
		{
			name:  "segment without equals dropped",
			input: "noeq; a=1",
			want:  map[string]string{"a": "1"},
		},
		{
			name:  "empty value kept",
			input: "a=; b=2",
			want:  map[string]string{"a": "", "b": "2"},
		},
		{
			name:  "empty name dropped",
			input: "=x; c=3",
			want:  map[string]string{"c": "3"},
		},
		{
			name:  "control characters trimmed",
			input: "\t\x01tok=v",
			want:  map[string]string{"tok": "v"},
		},
		{
			name:  "value with equals",
			input: "data=a=b",
			want:  map[string]string{"data": "a=b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeCookies(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeCookies(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
