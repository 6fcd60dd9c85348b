package template

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ratepoint/core/internal/modules/template/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func mockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return NewService(gdb), mock
}

func TestCreateRejectsIncompleteTemplate(t *testing.T) {
	svc, mock := mockService(t)

	_, err := svc.Create(&SaveTemplateDTO{Name: "   ", DisplayName: "Movies"}, 1)
	assert.ErrorIs(t, err, schema.ErrTemplateIncomplete)

	_, err = svc.Create(&SaveTemplateDTO{Name: "movies", DisplayName: ""}, 1)
	assert.ErrorIs(t, err, schema.ErrTemplateIncomplete)

	// The gate fires before any SQL runs.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	svc, mock := mockService(t)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

	_, err := svc.Create(&SaveTemplateDTO{Name: "movies", DisplayName: "Movies"}, 1)
	assert.ErrorIs(t, err, errDuplicateName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	svc, mock := mockService(t)

	mock.ExpectQuery("SELECT \\* FROM `templates`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := svc.GetByID(42)
	assert.ErrorIs(t, err, errTemplateNotFound)
}

func TestDeleteRefusedWhileItemsExist(t *testing.T) {
	svc, mock := mockService(t)

	mock.ExpectQuery("SELECT \\* FROM `templates`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "is_published"}).
			AddRow(7, "movies", "Movies", true))
	mock.ExpectQuery("SELECT \\* FROM `template_fields`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_id", "name"}))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(3))

	err := svc.Delete(7)
	assert.ErrorIs(t, err, errTemplateInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTemplateDTOFullMarksDefault(t *testing.T) {
	dto := SaveTemplateDTO{Name: "books", DisplayName: "Books"}
	tpl := dto.toSchema(0, false)
	assert.Equal(t, 10, tpl.FullMarks)

	dto.FullMarks = 5
	assert.Equal(t, 5, dto.toSchema(0, false).FullMarks)
}
