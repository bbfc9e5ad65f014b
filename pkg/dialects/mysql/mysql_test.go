package mysql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlscope/pkg/dialect"
	"github.com/leapstack-labs/sqlscope/pkg/dialects/mysql"
)

func TestConstructorsRegistered(t *testing.T) {
	for _, name := range []string{mysql.Name57, mysql.Name80} {
		d, err := dialect.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name)
		assert.Equal(t, dialect.FamilyMySQL, d.Family)
	}
}

func TestVersionFeatureSplit(t *testing.T) {
	d57 := mysql.New57()
	d80 := mysql.New80()

	assert.False(t, d57.Supports(dialect.FeatureCTE))
	assert.False(t, d57.Supports(dialect.FeatureWindowFunctions))
	assert.True(t, d80.Supports(dialect.FeatureCTE))
	assert.True(t, d80.Supports(dialect.FeatureRecursiveCTE))
	assert.True(t, d80.Supports(dialect.FeatureWindowFunctions))

	// Shared base features.
	assert.True(t, d57.Supports(dialect.FeatureLimitCommaOffset))
	assert.True(t, d80.Supports(dialect.FeatureLimitCommaOffset))
}

func TestWindowFunctionDocsOnlyOn80(t *testing.T) {
	doc, ok := mysql.New80().LookupFunction("row_number")
	require.True(t, ok)
	assert.Equal(t, dialect.FuncWindow, doc.Kind)

	_, ok = mysql.New57().LookupFunction("row_number")
	assert.False(t, ok)
}
