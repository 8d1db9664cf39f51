package reconcile

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductSlug(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		want      string
	}{
		{name: "Huile Motul 7100 10W40 4L", reference: "ACC-HUI-001", want: "huile-motul-7100-10w40-4l-acc-hui-001"},
		{name: "Pneu Été Très Léger", reference: "PN-1", want: "pneu-ete-tres-leger-pn-1"},
		{name: "  --Batterie / 12V!!  ", reference: "BAT", want: "batterie-12v-bat"},
		{name: "Chaîne & Kit Ø520", reference: "K-520", want: "chaine-kit-520-k-520"},
		{name: "Pneu Michelin Road 6", reference: "PN 120/70", want: "pneu-michelin-road-6-pn-120-70"},
		{name: "Kit Chaîne", reference: "Réf-É 12", want: "kit-chaine-ref-e-12"},
		{name: "!!!", reference: "BAT-1", want: "bat-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProductSlug(tt.name, tt.reference))
		})
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	long := strings.Repeat("abc ", 100)
	slug := Slugify(long)
	assert.LessOrEqual(t, len(slug), 200)
	assert.True(t, strings.HasPrefix(slug, "abc-abc"))
}

func TestProductSlugLongName(t *testing.T) {
	name := strings.Repeat("a", 199) + " b"
	slug := ProductSlug(name, "R1")

	assert.Equal(t, strings.Repeat("a", 199)+"-r1", slug)
	assert.NotContains(t, slug, "--")
}

func TestProductSlugIsURLSafe(t *testing.T) {
	urlSafe := regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	inputs := [][2]string{
		{"Pneu Michelin Road 6", "PN 120/70"},
		{strings.Repeat("Huile ", 60), "ACC HUI 001"},
		{"Batterie 12V  6Ah (Lithium)", "bat_ltx9?x=1"},
	}
	for _, in := range inputs {
		slug := ProductSlug(in[0], in[1])
		assert.Regexp(t, urlSafe, slug, "name %q reference %q", in[0], in[1])
	}
}
