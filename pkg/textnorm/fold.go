package textnorm

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold normaliza un texto libre para comparaciones tolerantes:
// recorta espacios, compone a NFC y aplica case folding Unicode ("Peluquería" == "PELUQUERÍA").
func Fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(norm.NFC.String(s))
}

// Equal compara dos textos tras Fold.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}
