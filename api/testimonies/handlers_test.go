package testimonies_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/killallgit/testimony-api/api/testimonies"
	"github.com/killallgit/testimony-api/api/types"
	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/ingestion"
	testimonyRepo "github.com/killallgit/testimony-api/internal/services/testimonies"
	"github.com/killallgit/testimony-api/internal/testutil"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

type fakeIngester struct {
	limit int64
	last  ingestion.Request
	res   *ingestion.Result
	err   error
}

func (f *fakeIngester) Ingest(_ context.Context, req ingestion.Request) (*ingestion.Result, error) {
	f.last = req
	return f.res, f.err
}

func (f *fakeIngester) MaxUploadBytes() int64 { return f.limit }

type TestimonyTestSuite struct {
	t        *testing.T
	db       *gorm.DB
	ingester *fakeIngester
	router   *gin.Engine
}

func setupSuite(t *testing.T) *TestimonyTestSuite {
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	ing := &fakeIngester{limit: 1024}
	deps := &types.Dependencies{
		Ingestion:   ing,
		Testimonies: testimonyRepo.NewRepository(db),
	}

	router := gin.New()
	testimonies.RegisterRoutes(router.Group("/api/v1/testimonies"), deps)

	return &TestimonyTestSuite{t: t, db: db, ingester: ing, router: router}
}

func (s *TestimonyTestSuite) upload(fields map[string]string, fileName string, data []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(s.t, err)
		_, err = fw.Write(data)
		require.NoError(s.t, err)
	}
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/testimonies", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *TestimonyTestSuite) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestPost_NewTestimony(t *testing.T) {
	s := setupSuite(t)
	jobID := uint(7)
	s.ingester.res = &ingestion.Result{Testimony: &models.Testimony{ID: 3, Origin: "lausanne"}, JobID: &jobID}

	w := s.upload(map[string]string{"origin": "lausanne", "tags": "fe, sanidad", "recorded_at": "2025-06-01"}, "maria.mp3", []byte("ID3 audio"))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp types.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Duplicate)
	require.NotNil(t, resp.JobID)
	assert.Equal(t, uint(7), *resp.JobID)
	assert.Equal(t, uint(3), resp.Testimony.ID)

	assert.Equal(t, "maria.mp3", s.ingester.last.FileName)
	assert.Equal(t, "lausanne", s.ingester.last.Origin)
	assert.Equal(t, "fe, sanidad", s.ingester.last.Tags)
	assert.Equal(t, "2025-06-01", s.ingester.last.RecordedAt)
	assert.Equal(t, "api", s.ingester.last.CreatedBy)
	assert.Equal(t, []byte("ID3 audio"), s.ingester.last.Audio)
}

func TestPost_DuplicateReturns200(t *testing.T) {
	s := setupSuite(t)
	s.ingester.res = &ingestion.Result{Testimony: &models.Testimony{ID: 3}, Duplicate: true}

	w := s.upload(nil, "maria.mp3", []byte("ID3 audio"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp types.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Duplicate)
	assert.Nil(t, resp.JobID)
}

func TestPost_Errors(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		ingestErr  error
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{name: "missing file", data: nil, wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeMissingField},
		{name: "too large", data: bytes.Repeat([]byte("a"), 2048), wantStatus: http.StatusRequestEntityTooLarge, wantCode: apperrors.ErrCodePayloadTooLarge},
		{name: "invalid origin", data: []byte("x"), ingestErr: apperrors.InvalidOrigin("paris", []string{"lausanne"}), wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeInvalidOrigin},
		{name: "undecodable audio", data: []byte("x"), ingestErr: apperrors.UnsupportedMedia("x.mp3", fmt.Errorf("probe failed")), wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeUnsupportedMedia},
		{name: "unexpected failure", data: []byte("x"), ingestErr: fmt.Errorf("boom"), wantStatus: http.StatusInternalServerError, wantCode: apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupSuite(t)
			s.ingester.err = tt.ingestErr

			w := s.upload(nil, "x.mp3", tt.data)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp types.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, types.StatusError, resp.Status)
			assert.Equal(t, string(tt.wantCode), resp.Error)
		})
	}
}

func TestGet(t *testing.T) {
	s := setupSuite(t)
	tm := testutil.CreateTestimony(t, s.db, nil)

	w := s.get(fmt.Sprintf("/api/v1/testimonies/%d", tm.ID))
	assert.Equal(t, http.StatusOK, w.Code)
	var resp types.TestimonyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, tm.ID, resp.Testimony.ID)
	assert.Equal(t, models.TranscriptPending, resp.Testimony.TranscriptStatus)

	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/testimonies/999").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/testimonies/abc").Code)
}

func TestList(t *testing.T) {
	s := setupSuite(t)
	testutil.CreateTestimony(t, s.db, func(tm *models.Testimony) { tm.AudioHash = "a" })
	testutil.CreateTestimony(t, s.db, func(tm *models.Testimony) { tm.AudioHash = "b"; tm.Origin = "geneve" })
	testutil.CreateTestimony(t, s.db, func(tm *models.Testimony) { tm.AudioHash = "c" })

	w := s.get("/api/v1/testimonies?origin=lausanne&limit=1")
	assert.Equal(t, http.StatusOK, w.Code)
	var resp types.TestimoniesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 1, resp.Limit)

	w = s.get("/api/v1/testimonies?status=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.get("/api/v1/testimonies?status=failed")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(0), resp.Total)
	assert.NotNil(t, resp.Testimonies)

	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/testimonies?limit=-1").Code)
}
