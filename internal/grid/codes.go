package grid

import "sort"

// Codes maps raw service and category identifiers to dense integer codes.
// Codes are assigned by lexicographic order of the distinct raw values,
// so repeated runs over unchanged reference data always produce the same
// mapping. A non-deterministic assignment here would silently change the
// meaning of the service_id/category_id features of an already trained
// estimator.
type Codes struct {
	services   map[string]int
	categories map[string]int
}

// BuildCodes derives the code mapping from the distinct raw identifiers
// present in the facts.
func BuildCodes(facts []BookingFact) Codes {
	serviceSet := make(map[string]struct{})
	categorySet := make(map[string]struct{})
	for _, f := range facts {
		serviceSet[f.RawServiceID] = struct{}{}
		categorySet[f.RawCategoryID] = struct{}{}
	}
	return Codes{
		services:   enumerate(serviceSet),
		categories: enumerate(categorySet),
	}
}

// enumerate assigns 0..n-1 to the sorted distinct values.
func enumerate(set map[string]struct{}) map[string]int {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)

	codes := make(map[string]int, len(values))
	for i, v := range values {
		codes[v] = i
	}
	return codes
}

// ServiceCode returns the dense code for a raw service id, or -1 when the
// id was not part of the distinct-value set.
func (c Codes) ServiceCode(raw string) int {
	if code, ok := c.services[raw]; ok {
		return code
	}
	return -1
}

// CategoryCode returns the dense code for a raw category id, or -1 when
// unknown.
func (c Codes) CategoryCode(raw string) int {
	if code, ok := c.categories[raw]; ok {
		return code
	}
	return -1
}

// ServiceCount returns the number of distinct raw service ids.
func (c Codes) ServiceCount() int {
	return len(c.services)
}
