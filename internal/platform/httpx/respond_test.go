package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{fmt.Errorf("funko 3: %w", ErrNotFound), http.StatusNotFound, "Not Found"},
		{fmt.Errorf("%w: category marvel already exists", ErrDuplicate), http.StatusBadRequest, "Duplicate"},
		{fmt.Errorf("%w: not enough stock", ErrValidation), http.StatusBadRequest, "Validation Failed"},
		{ErrForbidden, http.StatusForbidden, "Forbidden"},
		{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)

		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, tc.status, StatusFor(tc.err))
		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		assert.Equal(t, tc.title, problem.Title)
		if tc.status == http.StatusInternalServerError {
			assert.Empty(t, problem.Detail)
		}
	}
}

type sampleBody struct {
	Name  string  `json:"name" validate:"required,min=3,max=100"`
	Price float64 `json:"price" validate:"gte=0"`
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ab","price":-1}`))
	var body sampleBody
	err := DecodeAndValidate(req, &body)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Name must be at least 3")
	assert.Contains(t, err.Error(), "Price must be at least 0")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"marvel","extra":1}`))
	err = DecodeAndValidate(req, &body)
	require.ErrorIs(t, err, ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"marvel","price":2}`))
	require.NoError(t, DecodeAndValidate(req, &body))
	assert.Equal(t, "marvel", body.Name)
}
