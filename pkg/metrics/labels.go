package metrics

// normalizeLabel keeps label cardinality sane when a caller passes an
// empty value.
func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
