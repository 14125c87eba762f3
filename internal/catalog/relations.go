package catalog

import "github.com/ShayCichocki/steptest/pkg/models"

func rel(names ...string) []models.Ref {
	refs := make([]models.Ref, 0, len(names))
	for _, n := range names {
		refs = append(refs, models.Named(RelationsNamespace+"."+n))
	}
	return refs
}

// Relations returns a three-level relation tree. Some relations are declared
// on one side only, which verbose enumeration reports.
func Relations() []*models.StepDefinition {
	return []*models.StepDefinition{
		{Name: "lvl1_1", Children: rel("lvl2_1", "lvl2_2")},
		{Name: "lvl1_2", Children: rel("lvl3_2")},
		{Name: "lvl1_3"},
		{Name: "lvl1_4"},
		{Name: "lvl1_5"},

		{Name: "lvl2_1", Dependencies: rel("lvl1_1", "lvl1_2"), Children: rel("lvl3_1", "lvl3_2")},
		{Name: "lvl2_2", Dependencies: rel("lvl1_1", "lvl1_2")},
		{Name: "lvl2_3", Dependencies: rel("lvl1_3")},

		{Name: "lvl3_1", Dependencies: rel("lvl2_1", "lvl2_3", "lvl1_4")},
		{Name: "lvl3_2", Dependencies: rel("lvl2_1")},
		{Name: "lvl3_3"},
		{Name: "lvl3_4"},
		{Name: "lvl3_5"},
	}
}
