package main

import "orquidea/providers/orcid"

func sampleWorks() []orcid.Work {
	return []orcid.Work{
		{Title: &orcid.WorkTitle{Title: &orcid.Value{Value: "Pathological Literature: a test publication"}}},
	}
}
