package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

func TestGradeHandlerGrade(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, &committee, http.MethodPost, "/api/v1/students/7/grade", `{"rubric":[5,5,4,4,5,4]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var grade models.Grade
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &grade))
	require.Equal(t, models.LetterA, grade.Letter)
	require.InDelta(t, 4.5, *grade.Average, 1e-9)
	require.Equal(t, []int{5, 5, 4, 4, 5, 4}, ts.grading.lastScores)
}

func TestGradeHandlerRubricOutOfRange(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{"rubric":[5,5,5,5,5,6]}`, `{"rubric":[0,1,1,1,1,1]}`, `{"rubric":[3,3,3]}`} {
		rec := ts.do(t, &supervisor, http.MethodPost, "/api/v1/students/7/grade", body)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
		require.Equal(t, appErrors.ErrRubricOutOfRange.Code, decodeEnvelope(t, rec).Error.Code)
	}
}

func TestGradeHandlerMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, &supervisor, http.MethodPost, "/api/v1/students/7/grade", `{"rubric":"high"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, ts.grading.lastScores)
}

func TestGradeHandlerGetMissing(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, &student7, http.MethodGet, "/api/v1/students/7/grade", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
