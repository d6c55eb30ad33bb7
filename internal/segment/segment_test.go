package segment_test

import (
	"slices"
	"testing"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/segment"
)

func text(s string) segment.Segment {
	return segment.Segment{Kind: segment.KindText, Content: s}
}

func code(lang, s string) segment.Segment {
	return segment.Segment{Kind: segment.KindCode, Language: lang, Content: s}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []segment.Segment
	}{
		{
			name:  "Empty",
			input: "",
			want:  nil,
		},
		{
			name:  "Prose only",
			input: "just *words*",
			want:  []segment.Segment{text("just *words*")},
		},
		{
			name:  "Fence between prose",
			input: "before```py\nprint(1)\n```after",
			want:  []segment.Segment{text("before"), code("py", "print(1)\n"), text("after")},
		},
		{
			name:  "Unterminated fence",
			input: "abc```py\nprint(1)",
			want:  []segment.Segment{text("abc```py\nprint(1)")},
		},
		{
			name:  "Default language",
			input: "```\nplain\n```",
			want:  []segment.Segment{code("text", "plain\n")},
		},
		{
			name:  "Empty fence body",
			input: "a```go\n```b",
			want:  []segment.Segment{text("a"), code("go", ""), text("b")},
		},
		{
			name:  "Two fences",
			input: "x\n```go\nfmt.Println()\n```\nand\n```sh\nls\n```\n",
			want: []segment.Segment{
				text("x\n"), code("go", "fmt.Println()\n"), text("\nand\n"), code("sh", "ls\n"), text("\n"),
			},
		},
		{
			name:  "Tag must be followed by newline",
			input: "```py print(1)```",
			want:  []segment.Segment{text("```py print(1)```")},
		},
		{
			name:  "Extra backtick before opener",
			input: "````js\nx\n```",
			want:  []segment.Segment{text("`"), code("js", "x\n")},
		},
		{
			name:  "Closer not on its own line",
			input: "```c\nint x;```rest",
			want:  []segment.Segment{code("c", "int x;"), text("rest")},
		},
		{
			name:  "Non-word tag",
			input: "```c++\nx\n```",
			want:  []segment.Segment{text("```c++\nx\n```")},
		},
		{
			name:  "Failed opener later becomes closer",
			input: "```py x\n```\ny\n```",
			want:  []segment.Segment{text("```py x\n"), code("text", "y\n")},
		},
		{
			name:  "Unterminated after closed",
			input: "```a\n1\n```mid```b\n2",
			want:  []segment.Segment{code("a", "1\n"), text("mid```b\n2")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := segment.Parse(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseStablePrefix(t *testing.T) {
	inputs := []string{
		"Here is code:\n```go\nfunc main() {}\n```\nThen more ```py\nx = 1\n``` end ```",
		"````js\nx\n``` and ```\nplain\n```tail",
		"no fences at all, just prose that keeps growing",
	}

	for _, full := range inputs {
		whole := segment.Parse(full)

		for n := 0; n <= len(full); n++ {
			prefix := segment.Parse(full[:n])
			if len(prefix) == 0 {
				continue
			}

			stable := prefix[:len(prefix)-1]
			if last := prefix[len(prefix)-1]; last.Kind == segment.KindCode {
				stable = prefix
			}

			if len(stable) > len(whole) {
				t.Fatalf("prefix %q has %d stable segments, full text has %d", full[:n], len(stable), len(whole))
			}
			if !slices.Equal(stable, whole[:len(stable)]) {
				t.Fatalf("prefix %q: stable segments %+v differ from %+v", full[:n], stable, whole[:len(stable)])
			}
		}
	}
}

func TestParseIdempotent(t *testing.T) {
	input := "a```go\nb\n```c"
	first := segment.Parse(input)
	second := segment.Parse(input)
	if !slices.Equal(first, second) {
		t.Errorf("Parse() not deterministic: %+v vs %+v", first, second)
	}
}
