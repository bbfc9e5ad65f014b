// Package dialect provides SQL dialect configuration: identifier rules,
// feature capabilities, keyword and function inventories. Concrete dialect
// values are registered from pkg/dialects/*/ packages.
//
// Dialects are plain values, not a type hierarchy. The lowering engine and
// the completion layer dispatch on capability flags via Supports, never on
// the dialect's concrete identity.
package dialect

import "strings"

// Family groups dialects that share clause ordering and literal forms.
type Family string

// Dialect families.
const (
	FamilyMySQL    Family = "mysql"
	FamilyPostgres Family = "postgres"
)

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase.
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase.
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly.
	NormCaseSensitive
)

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         byte // quote character: " or `
	Normalization NormalizationStrategy
}

// FunctionKind classifies callable routines for completion and hover.
type FunctionKind int

// Function kinds.
const (
	FuncScalar FunctionKind = iota
	FuncAggregate
	FuncWindow
)

// FunctionDoc carries hover and completion metadata for one function.
type FunctionDoc struct {
	Kind        FunctionKind
	Signature   string
	Description string
}

// Dialect is one SQL dialect configuration, including its version-dependent
// feature set.
type Dialect struct {
	Name        string // e.g. "mysql-8.0", "postgres"
	Family      Family
	Identifiers IdentifierConfig

	// DefaultSchema is the schema unqualified tables resolve against.
	// "public" for the Postgres family; empty for MySQL, where the
	// connection's database plays that role.
	DefaultSchema string

	features  FeatureSet
	keywords  []string
	dataTypes []string
	functions map[string]FunctionDoc
	reserved  map[string]struct{}
}

// Supports reports whether the dialect, at its configured version, supports
// the feature.
func (d *Dialect) Supports(f Feature) bool {
	return d.features.Has(f)
}

// Features returns the dialect's feature set.
func (d *Dialect) Features() FeatureSet {
	return d.features
}

// NormalizeName normalizes an unquoted identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case NormUppercase:
		return strings.ToUpper(name)
	case NormCaseSensitive:
		return name
	default:
		return strings.ToLower(name)
	}
}

// Keywords returns the completion keyword list.
func (d *Dialect) Keywords() []string {
	return d.keywords
}

// DataTypes returns the supported data type names.
func (d *Dialect) DataTypes() []string {
	return d.dataTypes
}

// LookupFunction returns documentation for a function name.
func (d *Dialect) LookupFunction(name string) (FunctionDoc, bool) {
	doc, ok := d.functions[strings.ToLower(name)]
	return doc, ok
}

// Functions returns every known function name, unsorted.
func (d *Dialect) Functions() []string {
	out := make([]string, 0, len(d.functions))
	for name := range d.functions {
		out = append(out, name)
	}
	return out
}

// IsAggregate reports whether the function aggregates rows.
func (d *Dialect) IsAggregate(name string) bool {
	doc, ok := d.LookupFunction(name)
	return ok && doc.Kind == FuncAggregate
}

// IsWindowFunction reports whether the function requires an OVER clause.
func (d *Dialect) IsWindowFunction(name string) bool {
	doc, ok := d.LookupFunction(name)
	return ok && doc.Kind == FuncWindow
}

// IsReservedWord reports whether the word needs quoting when used as an
// identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reserved[strings.ToLower(word)]
	return ok
}

// QuoteIdentifier quotes an identifier with the dialect's quote character.
// Embedded quote characters are escaped by doubling.
func (d *Dialect) QuoteIdentifier(name string) string {
	q := string(d.Identifiers.Quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	d *Dialect
}

// New creates a dialect builder with family-appropriate identifier defaults.
func New(name string, family Family) *Builder {
	ident := IdentifierConfig{Quote: '"', Normalization: NormLowercase}
	if family == FamilyMySQL {
		ident = IdentifierConfig{Quote: '`', Normalization: NormCaseSensitive}
	}
	return &Builder{d: &Dialect{
		Name:        name,
		Family:      family,
		Identifiers: ident,
		functions:   make(map[string]FunctionDoc),
		reserved:    make(map[string]struct{}),
	}}
}

// Identifiers overrides the identifier configuration.
func (b *Builder) Identifiers(quote byte, norm NormalizationStrategy) *Builder {
	b.d.Identifiers = IdentifierConfig{Quote: quote, Normalization: norm}
	return b
}

// DefaultSchema sets the schema unqualified tables resolve against.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.d.DefaultSchema = schema
	return b
}

// Features adds feature flags.
func (b *Builder) Features(fs ...Feature) *Builder {
	for _, f := range fs {
		b.d.features = b.d.features.With(f)
	}
	return b
}

// Keywords appends completion keywords.
func (b *Builder) Keywords(kws ...string) *Builder {
	b.d.keywords = append(b.d.keywords, kws...)
	return b
}

// DataTypes appends supported data type names.
func (b *Builder) DataTypes(types ...string) *Builder {
	b.d.dataTypes = append(b.d.dataTypes, types...)
	return b
}

// Function registers one function with documentation. Names are stored
// lowercase.
func (b *Builder) Function(name string, doc FunctionDoc) *Builder {
	b.d.functions[strings.ToLower(name)] = doc
	return b
}

// Reserved registers words that need quoting as identifiers.
func (b *Builder) Reserved(words ...string) *Builder {
	for _, w := range words {
		b.d.reserved[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.d
}
