package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/config"
)

func TestReportValidation(t *testing.T) {
	ok := &config.ValidationResult{
		Warnings: []config.ValidationWarning{{Field: "server.graphiql", Message: "GraphiQL is enabled"}},
	}
	assert.NoError(t, reportValidation(ok))

	failed := &config.ValidationResult{
		Errors: []config.ValidationError{{Field: "server.port", Message: "port 0 is out of valid range (1-65535)"}},
	}
	err := reportValidation(failed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}
