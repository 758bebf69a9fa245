package meta

import "strings"

// Owner identifies which vendor XML supplies the transform for a mesh.
type Owner string

const (
	OwnerConstruction Owner = "constructionInfo"
	OwnerModel        Owner = "modelInfo"
	OwnerNone         Owner = "none"
)

// ArbitrateOwner decides the single transform source for a mesh filename.
// When both sources reference the file, model components (gingiva, base,
// jaw scans) belong to modelInfo and everything else (crowns, abutments,
// scanbodies) to constructionInfo. Exactly one source ever wins so a mesh
// is never transformed twice.
func ArbitrateOwner(ciMatch, miMatch bool, basename string) Owner {
	switch {
	case ciMatch && miMatch:
		if looksLikeModelComponent(strings.ToLower(basename)) {
			return OwnerModel
		}
		return OwnerConstruction
	case ciMatch:
		return OwnerConstruction
	case miMatch:
		return OwnerModel
	default:
		return OwnerNone
	}
}
