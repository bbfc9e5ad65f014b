package dialect

// Feature identifies one optional SQL capability. Version differences within
// a family are expressed as feature flags rather than separate code paths:
// MySQL 5.7 and MySQL 8.0 share a lowering adapter and differ only in their
// feature sets.
type Feature uint

// Optional SQL capabilities.
const (
	// FeatureCTE enables WITH clauses.
	FeatureCTE Feature = iota
	// FeatureRecursiveCTE enables WITH RECURSIVE.
	FeatureRecursiveCTE
	// FeatureWindowFunctions enables OVER clauses and window functions.
	FeatureWindowFunctions
	// FeatureReturning enables RETURNING on INSERT, UPDATE and DELETE.
	FeatureReturning
	// FeatureLateral enables LATERAL derived tables.
	FeatureLateral
	// FeatureFullOuterJoin enables FULL [OUTER] JOIN.
	FeatureFullOuterJoin
	// FeatureIlike enables the ILIKE operator.
	FeatureIlike
	// FeatureCastOperator enables the :: cast shorthand.
	FeatureCastOperator
	// FeatureLimitCommaOffset enables the LIMIT offset, count form.
	FeatureLimitCommaOffset
	// FeatureDistinctOn enables SELECT DISTINCT ON (...).
	FeatureDistinctOn
	// FeatureDollarParams enables $1-style bind parameters.
	FeatureDollarParams
	// FeatureOnDuplicateKey enables INSERT ... ON DUPLICATE KEY UPDATE.
	FeatureOnDuplicateKey
	// FeatureOnConflict enables INSERT ... ON CONFLICT.
	FeatureOnConflict

	featureCount
)

var featureNames = map[Feature]string{
	FeatureCTE:              "cte",
	FeatureRecursiveCTE:     "recursive-cte",
	FeatureWindowFunctions:  "window-functions",
	FeatureReturning:        "returning",
	FeatureLateral:          "lateral",
	FeatureFullOuterJoin:    "full-outer-join",
	FeatureIlike:            "ilike",
	FeatureCastOperator:     "cast-operator",
	FeatureLimitCommaOffset: "limit-comma-offset",
	FeatureDistinctOn:       "distinct-on",
	FeatureDollarParams:     "dollar-params",
	FeatureOnDuplicateKey:   "on-duplicate-key",
	FeatureOnConflict:       "on-conflict",
}

// String returns the feature's wire name, used in diagnostics.
func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return "unknown"
}

// FeatureSet is an immutable set of features. The zero value is empty.
type FeatureSet uint64

// Has reports whether f is in the set.
func (s FeatureSet) Has(f Feature) bool {
	return s&(1<<f) != 0
}

// With returns a set with f added.
func (s FeatureSet) With(f Feature) FeatureSet {
	return s | 1<<f
}

// Without returns a set with f removed.
func (s FeatureSet) Without(f Feature) FeatureSet {
	return s &^ (1 << f)
}

// List returns the features in the set in declaration order.
func (s FeatureSet) List() []Feature {
	var out []Feature
	for f := Feature(0); f < featureCount; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}
