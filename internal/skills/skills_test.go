package skills

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spigell/cv-matcher/internal/vocabulary"
)

func TestWordTokenizer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "symbol suffixes and dotted names",
			text: "C++, C# and Node.js.",
			want: []string{"c++", ",", "c#", "and", "node.js", "."},
		},
		{
			name: "slash splits",
			text: "CI/CD",
			want: []string{"ci", "/", "cd"},
		},
		{
			name: "leading plus is a token",
			text: "+1 year",
			want: []string{"+", "1", "year"},
		},
		{
			name: "leading dot is a token",
			text: "worked with .NET",
			want: []string{"worked", "with", ".", "net"},
		},
		{
			name: "suffix run before a word is punctuation",
			text: "Python+Django, C#/.NET",
			want: []string{"python", "+", "django", ",", "c#", "/", ".", "net"},
		},
		{
			name: "suffix ends the word",
			text: "c++11 or c++ 17",
			want: []string{"c", "+", "+", "11", "or", "c++", "17"},
		},
		{
			name: "whitespace only",
			text: " \n\t ",
			want: []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := WordTokenizer{}.Tokenize(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tokenize(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenSetDropsPunctuation(t *testing.T) {
	t.Parallel()

	got := TokenSet(nil, "Docker, Kubernetes / AWS.")
	want := map[string]struct{}{"docker": {}, "kubernetes": {}, "aws": {}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TokenSet = %v, want %v", got, want)
	}
}

func TestTokenSetSplitsDottedCompounds(t *testing.T) {
	t.Parallel()

	got := TokenSet(nil, "Docker.Compose, CI/CD")
	want := map[string]struct{}{"docker.compose": {}, "docker": {}, "compose": {}, "ci": {}, "cd": {}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TokenSet = %v, want %v", got, want)
	}
}

func mustDefault(t *testing.T) *vocabulary.Data {
	t.Helper()

	data, err := vocabulary.Default()
	if err != nil {
		t.Fatalf("loading default vocabulary: %v", err)
	}
	return data
}

func detectors(vocab []string) []Detector {
	return []Detector{New(vocab, nil), New(vocab, WordTokenizer{})}
}

func TestDetectorsFindVocabularySkills(t *testing.T) {
	t.Parallel()

	vocab := []string{"Python", "SQL", "Machine Learning", "Docker", "Java", "Go", "C++"}
	text := "Experienced in Python, SQL and machine learning.\nShipped everything in DOCKER."
	want := []string{"Docker", "Machine Learning", "Python", "SQL"}

	for _, d := range detectors(vocab) {
		d := d
		t.Run(d.Name(), func(t *testing.T) {
			t.Parallel()

			got := d.Detect(text)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("Detect = %q, want %q", got, want)
			}
		})
	}
}

func TestDetectorsRequireWholeWords(t *testing.T) {
	t.Parallel()

	vocab := []string{"Java", "JavaScript", "Go", "Git"}
	text := "JavaScript on the frontend, a good eye for GitHub workflows."
	want := []string{"JavaScript"}

	for _, d := range detectors(vocab) {
		d := d
		t.Run(d.Name(), func(t *testing.T) {
			t.Parallel()

			got := d.Detect(text)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("Detect = %q, want %q", got, want)
			}
		})
	}
}

func TestDetectorsMatchEveryCasing(t *testing.T) {
	t.Parallel()

	vocab := mustDefault(t).SkillList()

	for _, d := range detectors(vocab) {
		d := d
		t.Run(d.Name(), func(t *testing.T) {
			t.Parallel()

			for _, skill := range vocab {
				for _, variant := range []string{skill, strings.ToLower(skill), strings.ToUpper(skill)} {
					text := "Day to day I use " + variant + " (mostly)."
					got := d.Detect(text)
					if !contains(got, skill) {
						t.Fatalf("Detect(%q) = %q, missing %q", text, got, skill)
					}
				}
			}
		})
	}
}

func TestDetectorsAgreeOnGluedSkills(t *testing.T) {
	t.Parallel()

	vocab := []string{"Python", "Django", "Docker", "Compose", "C#", ".NET", "C++", "Node.js", "Apache Spark"}
	tests := []struct {
		text string
		want []string
	}{
		{text: "Python+Django", want: []string{"Django", "Python"}},
		{text: "Docker.Compose files", want: []string{"Compose", "Docker"}},
		{text: "C#/.NET", want: []string{".NET", "C#"}},
		{text: "c++", want: []string{"C++"}},
		{text: "Node.js and Apache Spark.SQL", want: []string{"Apache Spark", "Node.js"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			lexical := New(vocab, nil).Detect(tt.text)
			tokenized := New(vocab, WordTokenizer{}).Detect(tt.text)
			if !reflect.DeepEqual(lexical, tt.want) {
				t.Fatalf("lexical Detect(%q) = %q, want %q", tt.text, lexical, tt.want)
			}
			if !reflect.DeepEqual(tokenized, lexical) {
				t.Fatalf("tokenized Detect(%q) = %q, lexical found %q", tt.text, tokenized, lexical)
			}
		})
	}
}

func TestDetectorsReturnCanonicalSortedUniqueSkills(t *testing.T) {
	t.Parallel()

	vocab := []string{"SQL", "AWS", "Python"}
	text := "python, PYTHON, Python. sql and aws, then SQL again"
	want := []string{"AWS", "Python", "SQL"}

	for _, d := range detectors(vocab) {
		d := d
		t.Run(d.Name(), func(t *testing.T) {
			t.Parallel()

			first := d.Detect(text)
			if !reflect.DeepEqual(first, want) {
				t.Fatalf("Detect = %q, want %q", first, want)
			}
			if second := d.Detect(text); !reflect.DeepEqual(first, second) {
				t.Fatalf("Detect is not deterministic: %q then %q", first, second)
			}
		})
	}
}

func TestDetectorsEmptyInput(t *testing.T) {
	t.Parallel()

	for _, d := range detectors([]string{"Python"}) {
		if got := d.Detect(""); len(got) != 0 {
			t.Fatalf("%s: Detect(\"\") = %q, want empty", d.Name(), got)
		}
	}
}

func TestTokenizedCueLookahead(t *testing.T) {
	t.Parallel()

	vocab := []string{"Node.js", "Power BI", "Kotlin"}

	tokenized := New(vocab, WordTokenizer{}).Detect("Expert in NodeJS and PowerBI, some Kotlin")
	want := []string{"Kotlin", "Node.js", "Power BI"}
	if !reflect.DeepEqual(tokenized, want) {
		t.Fatalf("tokenized Detect = %q, want %q", tokenized, want)
	}

	// Compact spellings only count right after a cue word.
	far := New(vocab, WordTokenizer{}).Detect("Expert at many things, for example NodeJS")
	if len(far) != 0 {
		t.Fatalf("tokenized Detect outside the cue window = %q, want empty", far)
	}

	lexical := New(vocab, nil).Detect("Expert in NodeJS and PowerBI, some Kotlin")
	if !reflect.DeepEqual(lexical, []string{"Kotlin"}) {
		t.Fatalf("lexical Detect = %q, want [Kotlin]", lexical)
	}
}

func TestNewPicksStrategy(t *testing.T) {
	t.Parallel()

	if got := New(nil, nil).Name(); got != "lexical" {
		t.Fatalf("New without tokenizer = %s, want lexical", got)
	}
	if got := New(nil, WordTokenizer{}).Name(); got != "tokenized" {
		t.Fatalf("New with tokenizer = %s, want tokenized", got)
	}

	d, err := ForStrategy(StrategyLexical, []string{"Go"})
	if err != nil || d.Name() != "lexical" {
		t.Fatalf("ForStrategy(lexical) = %v, %v", d, err)
	}
	if _, err := ForStrategy("fuzzy", nil); err == nil {
		t.Fatalf("ForStrategy(fuzzy) expected error")
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "", want: StrategyTokenized},
		{in: "Lexical", want: StrategyLexical},
		{in: " tokenized ", want: StrategyTokenized},
		{in: "spacy", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseStrategy(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseStrategy(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestSortJoinSplit(t *testing.T) {
	t.Parallel()

	list := []string{"sql", "Python", "SQL", "aws"}
	Sort(list)
	if want := []string{"aws", "Python", "SQL", "sql"}; !reflect.DeepEqual(list, want) {
		t.Fatalf("Sort = %q, want %q", list, want)
	}

	joined := Join([]string{"Go", "SQL"})
	if joined != "Go, SQL" {
		t.Fatalf("Join = %q", joined)
	}
	if got := Split(" Go ,, SQL ,"); !reflect.DeepEqual(got, []string{"Go", "SQL"}) {
		t.Fatalf("Split = %q", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
