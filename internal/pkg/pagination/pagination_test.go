package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func ctxWithQuery(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+rawQuery, nil)
	return c
}

func TestFromContextDefaults(t *testing.T) {
	q := FromContext(ctxWithQuery(t, ""))
	assert.Equal(t, Query{PageNo: 1, PageSize: 10}, q)
}

func TestFromContextBounds(t *testing.T) {
	assert.Equal(t, Query{PageNo: 3, PageSize: 25}, FromContext(ctxWithQuery(t, "pageNo=3&pageSize=25")))
	assert.Equal(t, Query{PageNo: 1, PageSize: 10}, FromContext(ctxWithQuery(t, "pageNo=-4&pageSize=0")))
	assert.Equal(t, Query{PageNo: 1, PageSize: MaxPageSize}, FromContext(ctxWithQuery(t, "pageSize=5000")))
	assert.Equal(t, Query{PageNo: 1, PageSize: 10}, FromContext(ctxWithQuery(t, "pageNo=abc&pageSize=xyz")))
}

func TestSortClause(t *testing.T) {
	allowed := map[string]string{"createdAt": "created_at", "title": "title"}

	c := ctxWithQuery(t, "sortBy=createdAt&sortOrder=desc")
	assert.Equal(t, "created_at DESC", SortClause(c, "sortBy", "sortOrder", allowed, "id ASC"))

	c = ctxWithQuery(t, "sortBy=title")
	assert.Equal(t, "title ASC", SortClause(c, "sortBy", "sortOrder", allowed, "id ASC"))

	// Unknown columns fall back rather than reaching the SQL string.
	c = ctxWithQuery(t, "sortBy=password;DROP&sortOrder=desc")
	assert.Equal(t, "id ASC", SortClause(c, "sortBy", "sortOrder", allowed, "id ASC"))

	c = ctxWithQuery(t, "")
	assert.Equal(t, "id ASC", SortClause(c, "sortBy", "sortOrder", allowed, "id ASC"))
}

type widget struct {
	ID   int64
	Name string
}

func mockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func TestPaginate(t *testing.T) {
	gdb, mock := mockDB(t)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(12))
	mock.ExpectQuery("SELECT \\* FROM `widgets` LIMIT \\? OFFSET \\?").
		WithArgs(5, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(6, "f").AddRow(7, "g"))

	result, err := Paginate[widget](gdb.Model(&widget{}), Query{PageNo: 2, PageSize: 5})
	require.NoError(t, err)

	assert.Equal(t, int64(12), result.Total)
	assert.Equal(t, 2, result.PageNo)
	assert.Equal(t, 5, result.PageSize)
	require.Len(t, result.List, 2)
	assert.Equal(t, "f", result.List[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaginateEmptyPageIsNotNil(t *testing.T) {
	gdb, mock := mockDB(t)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	mock.ExpectQuery("SELECT \\* FROM `widgets`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	result, err := Paginate[widget](gdb.Model(&widget{}), Query{PageNo: 1, PageSize: 10})
	require.NoError(t, err)
	assert.NotNil(t, result.List)
	assert.Empty(t, result.List)
}

func TestMap(t *testing.T) {
	in := Result[int]{List: []int{1, 2, 3}, PageNo: 2, PageSize: 3, Total: 9}
	out := Map(in, func(n int) string { return string(rune('a' + n - 1)) })

	assert.Equal(t, []string{"a", "b", "c"}, out.List)
	assert.Equal(t, in.PageNo, out.PageNo)
	assert.Equal(t, in.PageSize, out.PageSize)
	assert.Equal(t, in.Total, out.Total)
}
