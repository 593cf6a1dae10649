// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "testing"

func TestNormalizeAuthor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Leo Tolstoy", "leo tolstoy"},
		{"Tolstoy, Leo", "leo tolstoy"},
		{"Smith, John", "john smith"},
		{"John Smith", "john smith"},
		{"St. Augustine", "augustine"},
		{"Saint Augustine", "augustine"},
		{"Fyodor M. Dostoevsky", "fyodor m dostoevsky"},
		{"  Søren   Kierkegaard ", "søren kierkegaard"},
		{"Émile Zola", "emile zola"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAuthor(tt.in); got != tt.want {
			t.Errorf("NormalizeAuthor(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Republic", "republic"},
		{"A Tale of Two Cities", "tale of two cities"},
		{"On the Nature of Things", "nature of things"},
		{"Les Misérables", "misérables"},
		{"Gödel, Escher, Bach: An Eternal Golden Braid", "gödel escher bach an eternal golden braid"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizationIdempotent(t *testing.T) {
	authors := []string{
		"Leo Tolstoy", "St. Augustine", "Émile Zola", "Tolstoy, Leo",
		"Johann Wolfgang von Goethe", "plato",
	}
	for _, a := range authors {
		once := NormalizeAuthor(a)
		if twice := NormalizeAuthor(once); twice != once {
			t.Errorf("NormalizeAuthor not idempotent for %q: %q -> %q", a, once, twice)
		}
	}

	titles := []string{
		"The Republic", "On the Nature of Things", "A la recherche du temps perdu",
		"The Two Cultures: And A Second Look", "Iliad",
	}
	for _, ti := range titles {
		once := NormalizeTitle(ti)
		if twice := NormalizeTitle(once); twice != once {
			t.Errorf("NormalizeTitle not idempotent for %q: %q -> %q", ti, once, twice)
		}
	}
}

func TestSyntheticBookIDStable(t *testing.T) {
	a := SyntheticBookID("The Iliad", "Homer")
	b := SyntheticBookID("Iliad", "homer")
	if a != b {
		t.Errorf("normalization-equivalent inputs produced different ids: %q vs %q", a, b)
	}
	if len(a) != len("web_")+8 {
		t.Errorf("id %q has wrong shape", a)
	}
	if c := SyntheticBookID("The Odyssey", "Homer"); c == a {
		t.Error("distinct works share an id")
	}
}
