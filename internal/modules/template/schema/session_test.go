package schema

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmInsertAssignsPlaceholderAndOrder(t *testing.T) {
	s := NewSession(ModeCreate, Blank())

	s.OpenForCreate()
	s.Buffer().Name = "title"
	s.Buffer().DisplayName = "Title"
	require.NoError(t, s.Confirm())

	s.OpenForCreate()
	s.Buffer().Name = "year"
	s.Buffer().DisplayName = "Year"
	s.Buffer().FieldType = FieldNumber
	require.NoError(t, s.Confirm())

	fields := s.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "title", fields[0].Name)
	assert.Equal(t, 1, fields[0].DisplayOrder)
	assert.Equal(t, int64(-1), fields[0].ID)
	assert.Equal(t, "year", fields[1].Name)
	assert.Equal(t, 2, fields[1].DisplayOrder)
	assert.Equal(t, int64(-2), fields[1].ID)
}

func TestConfirmPlaceholderIsBelowExistingIDs(t *testing.T) {
	tpl := Blank()
	tpl.Fields = []Field{
		{ID: 12, Name: "a", DisplayName: "A", FieldType: FieldText, DisplayOrder: 1},
		{ID: -3, Name: "b", DisplayName: "B", FieldType: FieldText, DisplayOrder: 2},
	}
	s := NewSession(ModeEdit, tpl)

	s.OpenForCreate()
	s.Buffer().Name = "c"
	s.Buffer().DisplayName = "C"
	require.NoError(t, s.Confirm())

	assert.Equal(t, int64(-4), s.Fields()[2].ID)
}

func TestConfirmUpdateKeepsPositionWithoutExplicitOrder(t *testing.T) {
	tpl := Blank()
	tpl.Fields = []Field{
		{ID: 1, Name: "a", DisplayName: "A", FieldType: FieldText, DisplayOrder: 1},
		{ID: 2, Name: "b", DisplayName: "B", FieldType: FieldText, DisplayOrder: 2},
		{ID: 3, Name: "c", DisplayName: "C", FieldType: FieldText, DisplayOrder: 3},
	}
	s := NewSession(ModeEdit, tpl)

	s.OpenForEdit(tpl.Fields[1])
	s.Buffer().DisplayName = "B renamed"
	s.Buffer().DisplayOrder = 0
	require.NoError(t, s.Confirm())

	fields := s.Fields()
	assert.Equal(t, "B renamed", fields[1].DisplayName)
	assert.Equal(t, 2, fields[1].DisplayOrder)
}

func TestConfirmResortsByDisplayOrder(t *testing.T) {
	tpl := Blank()
	tpl.Fields = []Field{
		{ID: 1, Name: "a", DisplayName: "A", FieldType: FieldText, DisplayOrder: 1},
		{ID: 2, Name: "b", DisplayName: "B", FieldType: FieldText, DisplayOrder: 2},
	}
	s := NewSession(ModeEdit, tpl)

	s.OpenForEdit(tpl.Fields[1])
	s.Buffer().DisplayOrder = 1 // tie with field a; stable sort keeps a first
	require.NoError(t, s.Confirm())

	fields := s.Fields()
	assert.Equal(t, "a", fields[0].Name)
	assert.Equal(t, "b", fields[1].Name)
}

func TestConfirmRequiresNames(t *testing.T) {
	s := NewSession(ModeCreate, Blank())
	s.OpenForCreate()
	s.Buffer().Name = "  "
	s.Buffer().DisplayName = "X"
	assert.ErrorIs(t, s.Confirm(), ErrFieldIncomplete)
	assert.Empty(t, s.Fields())
}

func TestDeleteClosesGap(t *testing.T) {
	tpl := Blank()
	tpl.Fields = []Field{
		{ID: 1, Name: "a", DisplayName: "A", FieldType: FieldText, DisplayOrder: 1},
		{ID: 2, Name: "b", DisplayName: "B", FieldType: FieldText, DisplayOrder: 2},
		{ID: 3, Name: "c", DisplayName: "C", FieldType: FieldText, DisplayOrder: 3},
	}
	s := NewSession(ModeEdit, tpl)

	require.NoError(t, s.DeleteField(2))

	fields := s.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Name)
	assert.Equal(t, 1, fields[0].DisplayOrder)
	assert.Equal(t, "c", fields[1].Name)
	assert.Equal(t, 2, fields[1].DisplayOrder)
}

func TestDeleteAbsentIDIsNoop(t *testing.T) {
	tpl := Blank()
	tpl.Fields = []Field{{ID: 1, Name: "a", DisplayName: "A", FieldType: FieldText, DisplayOrder: 1}}
	s := NewSession(ModeEdit, tpl)
	require.NoError(t, s.DeleteField(99))
	assert.Len(t, s.Fields(), 1)
}

func TestSetFieldTypeClearsDataSource(t *testing.T) {
	s := NewSession(ModeCreate, Blank())
	s.OpenForCreate()
	s.Buffer().Name = "genre"
	s.Buffer().DisplayName = "Genre"
	s.SetFieldType(FieldSelect)
	ds := int64(3)
	s.Buffer().DataSourceID = &ds

	s.SetFieldType(FieldText)
	assert.Nil(t, s.Buffer().DataSourceID)
}

func TestViewModeRejectsMutations(t *testing.T) {
	tpl := Blank()
	tpl.Fields = []Field{{ID: 1, Name: "a", DisplayName: "A", FieldType: FieldText, DisplayOrder: 1}}
	s := NewSession(ModeView, tpl)
	s.OpenForEdit(tpl.Fields[0])
	assert.ErrorIs(t, s.Confirm(), ErrReadOnly)
	assert.ErrorIs(t, s.DeleteField(1), ErrReadOnly)
}

func TestPrepareForSubmissionGate(t *testing.T) {
	tpl := Blank()
	tpl.DisplayName = "Movies"
	s := NewSession(ModeCreate, tpl)
	_, err := s.PrepareForSubmission()
	assert.ErrorIs(t, err, ErrTemplateIncomplete)
}

func TestPrepareForSubmissionStripsNullRules(t *testing.T) {
	tpl := Blank()
	tpl.Name = "movie"
	tpl.DisplayName = "Movie"
	tpl.Fields = []Field{{
		ID: 1, Name: "year", DisplayName: "Year", FieldType: FieldNumber,
		DisplayOrder: 1,
		Rules:        &RuleSet{Min: FloatRule(1900), Max: nil},
	}}
	s := NewSession(ModeEdit, tpl)

	out, err := s.PrepareForSubmission()
	require.NoError(t, err)
	require.NotNil(t, out.Fields[0].Rules)
	require.NotNil(t, out.Fields[0].Rules.Min)
	assert.Equal(t, float64(1900), *out.Fields[0].Rules.Min)
	assert.Nil(t, out.Fields[0].Rules.Max)
}

func TestPrepareForSubmissionNullsEmptyRules(t *testing.T) {
	tpl := Blank()
	tpl.Name = "movie"
	tpl.DisplayName = "Movie"
	tpl.Fields = []Field{{
		ID: 1, Name: "watched", DisplayName: "Watched", FieldType: FieldCheckbox,
		DisplayOrder: 1,
		Rules:        &RuleSet{MinLength: IntRule(3)}, // unrecognized for checkbox
	}}
	s := NewSession(ModeEdit, tpl)

	out, err := s.PrepareForSubmission()
	require.NoError(t, err)
	assert.Nil(t, out.Fields[0].Rules)
}

func TestPrepareForSubmissionIsIdempotent(t *testing.T) {
	tpl := Blank()
	tpl.Name = "movie"
	tpl.DisplayName = "Movie"
	tpl.Fields = []Field{
		{ID: 5, Name: "a", DisplayName: "A", FieldType: FieldText, DisplayOrder: 7,
			Rules: &RuleSet{MaxLength: IntRule(500)}},
		{ID: -1, Name: "b", DisplayName: "B", FieldType: FieldDate, DisplayOrder: 9},
	}
	s := NewSession(ModeEdit, tpl)

	first, err := s.PrepareForSubmission()
	require.NoError(t, err)
	second := NewSession(ModeEdit, first)
	again, err := second.PrepareForSubmission()
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestDisplayOrderDenseAfterRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewSession(ModeCreate, Template{Name: "t", DisplayName: "T", FullMarks: 10})

	for i := 0; i < 200; i++ {
		if rng.Intn(3) == 0 && len(s.Fields()) > 0 {
			victim := s.Fields()[rng.Intn(len(s.Fields()))]
			require.NoError(t, s.DeleteField(victim.ID))
			continue
		}
		s.OpenForCreate()
		s.Buffer().Name = "f"
		s.Buffer().DisplayName = "F"
		require.NoError(t, s.Confirm())
	}

	out, err := s.PrepareForSubmission()
	require.NoError(t, err)
	seen := map[int64]bool{}
	for i, f := range out.Fields {
		assert.Equal(t, i+1, f.DisplayOrder)
		assert.False(t, seen[f.ID], "duplicate id %d", f.ID)
		seen[f.ID] = true
	}
}

func TestSetRule(t *testing.T) {
	s := NewSession(ModeCreate, Blank())
	s.OpenForCreate()

	require.NoError(t, s.SetRule(RuleMin, 1900))
	require.NoError(t, s.SetRule(RuleMax, nil))
	require.Error(t, s.SetRule("bogus", 1))

	require.NotNil(t, s.Buffer().Rules.Min)
	assert.Equal(t, float64(1900), *s.Buffer().Rules.Min)
	assert.Nil(t, s.Buffer().Rules.Max)
}
