package orders

import (
	"fmt"
	"sort"
	"strings"
)

// CohortKey selects how records are grouped into cohorts that share stage specs.
type CohortKey string

const (
	CohortAll            CohortKey = "all"
	CohortCategory       CohortKey = "category"
	CohortRegion         CohortKey = "region"
	CohortCategoryRegion CohortKey = "category_region"
)

// ParseCohortKey accepts the names above; an empty string means CohortAll.
func ParseCohortKey(s string) (CohortKey, error) {
	switch k := CohortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return CohortAll, nil
	case CohortAll, CohortCategory, CohortRegion, CohortCategoryRegion:
		return k, nil
	default:
		return "", fmt.Errorf("unknown cohort key %q", s)
	}
}

// Of returns the cohort label of a record. Blank attributes map to "unknown".
func (k CohortKey) Of(r Record) string {
	switch k {
	case CohortCategory:
		return orUnknown(r.Category)
	case CohortRegion:
		return orUnknown(r.Region)
	case CohortCategoryRegion:
		return orUnknown(r.Category) + "/" + orUnknown(r.Region)
	default:
		return string(CohortAll)
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// Cohort is a named group of records.
type Cohort struct {
	Key     string
	Records []Record
}

// GroupBy partitions records into cohorts sorted by label. Record order within a
// cohort follows the input.
func GroupBy(records []Record, key CohortKey) []Cohort {
	index := make(map[string]int)
	var cohorts []Cohort
	for _, r := range records {
		label := key.Of(r)
		i, ok := index[label]
		if !ok {
			i = len(cohorts)
			index[label] = i
			cohorts = append(cohorts, Cohort{Key: label})
		}
		cohorts[i].Records = append(cohorts[i].Records, r)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].Key < cohorts[j].Key })
	return cohorts
}
