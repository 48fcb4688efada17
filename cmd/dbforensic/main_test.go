package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/dbforensic/dbforensic"
	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/connector"
	"github.com/dbforensic/dbforensic/issues"
)

func TestExitCodeForConnectionFailure(t *testing.T) {
	err := &connector.ConnectionError{Err: errors.New("dial tcp: timeout")}
	assert.Equal(t, 2, exitCodeFor(err))
}

func TestExitCodeForNoConnectionConfigured(t *testing.T) {
	assert.Equal(t, 2, exitCodeFor(dbforensic.ErrNoConnectionConfigured))
}

func TestExitCodeForCatalogIntegrityError(t *testing.T) {
	err := fmt.Errorf("%w: sales.orders", catalog.ErrUnknownPKColumn)
	assert.Equal(t, 3, exitCodeFor(err))
}

func TestExitCodeForThresholdExceeded(t *testing.T) {
	err := fmt.Errorf("%w: score 40 < 60", errThresholdExceeded)
	assert.Equal(t, 4, exitCodeFor(err))
}

func TestExitCodeForUnclassifiedError(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(errors.New("unexpected")))
}

func TestFilterBySeverityAndCategoryKeepsOnlyListedCategories(t *testing.T) {
	issueList := []issues.Issue{
		{ID: "a", Category: issues.CategoryMissingPK},
		{ID: "b", Category: issues.CategoryUnusedIndex},
		{ID: "c", Category: issues.CategoryDeadTable},
	}

	filtered := filterBySeverityAndCategory(issueList, map[issues.Category]bool{issues.CategoryUnusedIndex: true})

	assert.Equal(t, 1, len(filtered))
	assert.Equal(t, "b", filtered[0].ID)
}

func TestRoutineLabel(t *testing.T) {
	assert.Equal(t, "FUNCTION", routineLabel(catalog.RoutineFunction))
	assert.Equal(t, "PROCEDURE", routineLabel(catalog.RoutineProcedure))
}
