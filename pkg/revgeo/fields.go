package revgeo

import (
	"strings"

	"github.com/jonas-p/go-shp"
)

// fieldIndex finds the first candidate attribute present in the shapefile.
func fieldIndex(fields []shp.Field, candidates []string) int {
	for _, want := range candidates {
		for i, f := range fields {
			if strings.EqualFold(f.String(), want) {
				return i
			}
		}
	}
	return -1
}
