package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTest() *Test {
	return &Test{
		ID:   "t1",
		Name: "Biology",
		Questions: []Question{
			{ID: "q1", Text: "Cell powerhouse?", Options: []string{"A", "B", "C"}},
			{ID: "q2", Text: "DNA shape?", Options: []string{"A", "B"}},
		},
	}
}

func TestTest_Validate(t *testing.T) {
	require.NoError(t, sampleTest().Validate())

	empty := &Test{ID: "t2"}
	assert.ErrorContains(t, empty.Validate(), "no questions")

	dup := sampleTest()
	dup.Questions[1].ID = "q1"
	assert.ErrorContains(t, dup.Validate(), "duplicate")

	noOpts := sampleTest()
	noOpts.Questions[0].Options = nil
	assert.ErrorContains(t, noOpts.Validate(), "no options")
}

func TestAnswers_CheckAgainst(t *testing.T) {
	test := sampleTest()

	assert.NoError(t, Answers{"q1": "B"}.CheckAgainst(test))
	assert.ErrorContains(t, Answers{"q3": "A"}.CheckAgainst(test), "not part of test")
	assert.ErrorContains(t, Answers{"q2": "C"}.CheckAgainst(test), "not an option")
}

func TestAnswers_CloneIsIndependent(t *testing.T) {
	a := Answers{"q1": "A"}
	c := a.Clone()
	c["q2"] = "B"
	assert.Len(t, a, 1)

	var nilAnswers Answers
	assert.NotNil(t, nilAnswers.Clone())
}

func TestSubmissionResult_CorrectCount(t *testing.T) {
	r := SubmissionResult{Score: 50, Correctness: map[string]bool{"q1": true, "q2": false}}
	assert.Equal(t, 1, r.CorrectCount())
	assert.True(t, r.Passed(50))
	assert.Equal(t, -1, SubmissionResult{}.CorrectCount())
}

func TestDocument_Validate(t *testing.T) {
	doc := NewDocument("/tmp/notes.pdf", []byte("%PDF-1.4"))
	assert.Equal(t, "notes.pdf", doc.Name)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.NoError(t, doc.Validate(1024))

	assert.ErrorContains(t, Document{}.Validate(0), "no file selected")
	assert.ErrorContains(t, NewDocument("a.txt", nil).Validate(0), "empty")
	assert.ErrorContains(t, doc.Validate(2), "limit")
}

func TestNewDocument_FallsBackToExtension(t *testing.T) {
	doc := NewDocument("export.json", []byte{0x00, 0x01, 0x02, 0x03})
	assert.Equal(t, "application/json", doc.ContentType)

	doc = NewDocument("notes.bin", []byte{0x00, 0x01, 0x02, 0x03})
	assert.Equal(t, "application/octet-stream", doc.ContentType)
}
