package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportProgressPercentage(t *testing.T) {
	assert.Equal(t, 0, (&Import{}).ProgressPercentage())
	assert.Equal(t, 50, (&Import{TotalRows: 2, ProcessedRows: 1}).ProgressPercentage())
	assert.Equal(t, 33, (&Import{TotalRows: 3, ProcessedRows: 1}).ProgressPercentage())
	assert.Equal(t, 100, (&Import{TotalRows: 4, ProcessedRows: 4}).ProgressPercentage())
}

func TestImportAppendErrorCapped(t *testing.T) {
	imp := Import{}
	for i := 0; i < MaxImportErrors+10; i++ {
		imp.AppendError(fmt.Sprintf("Row %d: bad", i+2))
	}

	assert.Len(t, imp.Errors, MaxImportErrors)
	assert.Equal(t, "Row 2: bad", imp.Errors[0])
}
