package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sanidad", "sanidad"},
		{"Promesa Cumplida", "promesa_cumplida"},
		{"#promesa_cumplída", "promesa_cumplida"},
		{"  Provisión  ", "provision"},
		{"Fe y Obediencia!", "fe_y_obediencia"},
		{"niño", "nino"},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTag(tt.in))
		})
	}
}

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		want    []string
	}{
		{
			name:    "current format",
			summary: "La hermana fue sanada.\n\nEtiquetas: sanidad, fe, promesa_cumplida",
			want:    []string{"sanidad", "fe", "promesa_cumplida"},
		},
		{
			name:    "legacy bold heading",
			summary: "**Resumen:** Texto.\n\n**Etiquetas doctrinales:** Sanidad Divina, Fe",
			want:    []string{"sanidad_divina", "fe"},
		},
		{
			name:    "hashtags and duplicates",
			summary: "Texto.\nEtiquetas: #fe #Fe #provisión",
			want:    []string{"fe", "provision"},
		},
		{
			name:    "no tag line",
			summary: "Solo el resumen.",
			want:    nil,
		},
		{
			name:    "capped at seven",
			summary: "Texto.\nEtiquetas: a, b, c, d, e, f, g, h, i",
			want:    []string{"a", "b", "c", "d", "e", "f", "g"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTags(tt.summary))
		})
	}
}

func TestSplitSummaryBody(t *testing.T) {
	body, tags := SplitSummary("El hermano recibió una promesa.\nEtiquetas: fe, profecia")
	assert.Equal(t, "El hermano recibió una promesa.", body)
	assert.Equal(t, []string{"fe", "profecia"}, tags)
}

func TestStripLegacySections(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"both sections", "**Resumen:** La hermana oró.\n\n**Etiquetas doctrinales:** fe, oracion", "La hermana oró."},
		{"only header", "**Resumen:**\nEl hermano testificó.", "El hermano testificó."},
		{"only tail", "Texto limpio.\n**Etiquetas doctrinales:** fe", "Texto limpio."},
		{"already clean", "Texto limpio.", "Texto limpio."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripLegacySections(tt.in))
		})
	}
}
