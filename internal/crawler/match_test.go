package crawler

import "testing"

func TestContainsPhrase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		term string
		want bool
	}{
		{name: "exact word", text: "We use Java daily", term: "java", want: true},
		{name: "prefix of longer word", text: "We use JavaScript daily", term: "java", want: false},
		{name: "c sharp inside identifier", text: "Experience with objective-c# is rare", term: "c#", want: false},
		{name: "c sharp standalone", text: "Strong C# skills.", term: "c#", want: true},
		{name: "c is not c++", text: "Modern C++ codebase", term: "c", want: false},
		{name: "c++ followed by punctuation", text: "Modern C++, Rust", term: "c++", want: true},
		{name: "multi word with extra whitespace", text: "Senior Software  Engineer.", term: "software engineer", want: true},
		{name: "multi word split by newline", text: "Software\nEngineer", term: "software engineer", want: true},
		{name: "later occurrence matches", text: "javascript and java", term: "java", want: true},
		{name: "empty term", text: "anything", term: "  ", want: false},
		{name: "unicode neighbour", text: "éjava", term: "java", want: false},
		{name: "hyphenated suffix", text: "Python-based services", term: "python", want: true},
		{name: "hyphenated compound", text: "A Java-heavy stack", term: "java", want: true},
		{name: "hyphen before match", text: "Experience with pre-java tooling", term: "java", want: false},
		{name: "term containing hyphen", text: "Hands-on role", term: "hands-on", want: true},
		{name: "absent", text: "python only", term: "rust", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ContainsPhrase(tt.text, tt.term); got != tt.want {
				t.Fatalf("ContainsPhrase(%q, %q) = %v, want %v", tt.text, tt.term, got, tt.want)
			}
		})
	}
}
