package postgres

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseError_IsRetryable(t *testing.T) {
	assert.True(t, (&DatabaseError{Code: "40001"}).IsRetryable())
	assert.False(t, (&DatabaseError{Code: "23505"}).IsRetryable())
}

func TestDatabaseError_IsConnectionError(t *testing.T) {
	assert.True(t, (&DatabaseError{Code: "08006"}).IsConnectionError())
	assert.False(t, (&DatabaseError{Code: "40001"}).IsConnectionError())
}

func TestDatabaseError_Error_IncludesOperationWhenSet(t *testing.T) {
	err := NewDatabaseError("08006", "connection reset").WithOperation("FetchNewActive")
	assert.Contains(t, err.Error(), "FetchNewActive")
	assert.Contains(t, err.Error(), "08006")
}

func TestIsRetryable_ChecksDatabaseErrorConnectionAndTimeout(t *testing.T) {
	assert.True(t, IsRetryable(&DatabaseError{Code: "40001"}))
	assert.True(t, IsRetryable(&ConnectionError{Operation: "dial", Reason: "refused"}))
	assert.True(t, IsRetryable(&TimeoutError{Operation: "query", Timeout: "5s"}))
	assert.False(t, IsRetryable(fmt.Errorf("some unrelated error")))
}

func TestIsConnectionError_MatchesBothErrorShapes(t *testing.T) {
	assert.True(t, IsConnectionError(&ConnectionError{Operation: "dial", Reason: "refused"}))
	assert.True(t, IsConnectionError(&DatabaseError{Code: "08003"}))
	assert.False(t, IsConnectionError(&DatabaseError{Code: "40001"}))
}

func TestIsTimeout_MatchesOnlyTimeoutError(t *testing.T) {
	assert.True(t, IsTimeout(&TimeoutError{Operation: "query"}))
	assert.False(t, IsTimeout(&DatabaseError{Code: "57P01"}))
}

func TestClassifyError_WrapsPgErrorAsRetryableDatabaseError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	classified := classifyError(pgErr, "Exec")

	var dbErr *DatabaseError
	require.ErrorAs(t, classified, &dbErr)
	assert.Equal(t, "40001", dbErr.Code)
	assert.True(t, IsRetryable(classified))
}

func TestClassifyError_PassesThroughNonPgErrors(t *testing.T) {
	plain := fmt.Errorf("context canceled")
	assert.Same(t, plain, classifyError(plain, "Exec"))
}

func TestClassifyError_NilStaysNil(t *testing.T) {
	assert.Nil(t, classifyError(nil, "Exec"))
}

func TestTimeoutError_Error_OmitsQueryWhenEmpty(t *testing.T) {
	err := NewTimeoutError("health check", "2s")
	assert.NotContains(t, err.Error(), ":")
	err = err.WithQuery("SELECT 1")
	assert.Contains(t, err.Error(), "SELECT 1")
}
